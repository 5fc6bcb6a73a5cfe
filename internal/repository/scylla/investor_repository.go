package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"onboarding-service/internal/models"
)

// InvestorRepository stores the PAN/DOB identity extension of AppUser.
// The pan_to_user lookup enforces one owner per PAN.
type InvestorRepository interface {
	Create(ctx context.Context, inv *models.InvestorDetails) error
	GetActiveByUser(ctx context.Context, appUserID string) ([]*models.InvestorDetails, error)
	GetPanOwner(ctx context.Context, panCardNumber string) (string, error)
	Update(ctx context.Context, inv *models.InvestorDetails) error
}

type investorRepository struct {
	client *ScyllaClient
}

func NewInvestorRepository(client *ScyllaClient) InvestorRepository {
	return &investorRepository{client: client}
}

func (r *investorRepository) Create(ctx context.Context, inv *models.InvestorDetails) error {
	if inv.PanCardNumber != "" {
		var owner string
		applied, err := r.client.Prepared.CreatePanToUser.
			Bind(inv.PanCardNumber, inv.AppUserID, inv.CreatedAt).
			WithContext(ctx).
			ScanCAS(&owner)
		if err != nil {
			return fmt.Errorf("failed to reserve pan: %w", err)
		}
		if !applied && owner != inv.AppUserID {
			return fmt.Errorf("pan already linked to user %s: %w", owner, ErrConditionFailed)
		}
	}

	q := r.client.Prepared.CreateInvestor.Bind(
		inv.AppUserID, inv.InvestorID, inv.PanCardNumber, inv.PanEncrypted, inv.PanKeyID,
		inv.DateOfBirth, inv.InvestorType, inv.IdentificationNumbers, inv.IdentificationTypes,
		inv.AddressID, inv.IsActive, inv.CreatedAt, inv.UpdatedAt,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(q, 2); err != nil {
		return fmt.Errorf("failed to create investor details: %w", err)
	}
	return nil
}

func (r *investorRepository) GetActiveByUser(ctx context.Context, appUserID string) ([]*models.InvestorDetails, error) {
	iter := r.client.Prepared.GetInvestorsByUser.Bind(appUserID).WithContext(ctx).Iter()

	var out []*models.InvestorDetails
	for {
		var inv models.InvestorDetails
		if !iter.Scan(
			&inv.AppUserID, &inv.InvestorID, &inv.PanCardNumber, &inv.PanEncrypted, &inv.PanKeyID,
			&inv.DateOfBirth, &inv.InvestorType, &inv.IdentificationNumbers, &inv.IdentificationTypes,
			&inv.AddressID, &inv.IsActive, &inv.CreatedAt, &inv.UpdatedAt,
		) {
			break
		}
		if inv.IsActive {
			cp := inv
			out = append(out, &cp)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list investor details: %w", err)
	}
	return out, nil
}

func (r *investorRepository) GetPanOwner(ctx context.Context, panCardNumber string) (string, error) {
	var owner string
	q := r.client.Prepared.GetPanOwner.Bind(panCardNumber).WithContext(ctx)
	if err := r.client.ScanWithRetry(q, &owner); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("pan lookup failed: %w", err)
	}
	return owner, nil
}

func (r *investorRepository) Update(ctx context.Context, inv *models.InvestorDetails) error {
	now := time.Now().UTC()
	inv.UpdatedAt = &now

	q := r.client.Prepared.UpdateInvestor.Bind(
		inv.PanCardNumber, inv.PanEncrypted, inv.PanKeyID,
		inv.DateOfBirth, inv.InvestorType, inv.IdentificationNumbers, inv.IdentificationTypes,
		inv.AddressID, inv.IsActive, inv.UpdatedAt,
		inv.AppUserID, inv.InvestorID,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(q, 2); err != nil {
		return fmt.Errorf("failed to update investor details: %w", err)
	}
	return nil
}
