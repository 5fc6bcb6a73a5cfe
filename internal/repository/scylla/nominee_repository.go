package scylla

import (
	"context"
	"fmt"

	"onboarding-service/internal/models"
)

// NomineeRepository stores nominee links per investment account.
type NomineeRepository interface {
	Create(ctx context.Context, rec *models.InvestorNominee) error
	ListByAccount(ctx context.Context, accountID string) ([]*models.InvestorNominee, error)
}

type nomineeRepository struct {
	client *ScyllaClient
}

func NewNomineeRepository(client *ScyllaClient) NomineeRepository {
	return &nomineeRepository{client: client}
}

func (r *nomineeRepository) Create(ctx context.Context, rec *models.InvestorNominee) error {
	q := r.client.Prepared.CreateNominee.Bind(
		rec.AccountID, rec.NomineeID, rec.AppUserID, rec.NomineeAppUserID, rec.Relationship,
		rec.SharePercent, rec.IsMinor, rec.GuardianName, rec.IsActive, rec.CreatedAt, rec.UpdatedAt,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(q, 2); err != nil {
		return fmt.Errorf("failed to create nominee: %w", err)
	}
	return nil
}

func (r *nomineeRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.InvestorNominee, error) {
	iter := r.client.Prepared.GetNomineesByAccount.Bind(accountID).WithContext(ctx).Iter()

	var out []*models.InvestorNominee
	for {
		var rec models.InvestorNominee
		if !iter.Scan(
			&rec.AccountID, &rec.NomineeID, &rec.AppUserID, &rec.NomineeAppUserID, &rec.Relationship,
			&rec.SharePercent, &rec.IsMinor, &rec.GuardianName, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt,
		) {
			break
		}
		if rec.IsActive {
			cp := rec
			out = append(out, &cp)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list nominees: %w", err)
	}
	return out, nil
}
