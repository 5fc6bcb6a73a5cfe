package scylla

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocql/gocql"

	"onboarding-service/internal/models"
)

// UamRepository stores the versioned external identity-sync records.
// Appending a version flips the previous row's is_latest in the same
// logged batch so exactly one row per user stays latest.
type UamRepository interface {
	Append(ctx context.Context, rec *models.UamIntegration) error
	GetLatest(ctx context.Context, appUserID string) (*models.UamIntegration, error)
}

type uamRepository struct {
	client *ScyllaClient
}

func NewUamRepository(client *ScyllaClient) UamRepository {
	return &uamRepository{client: client}
}

func (r *uamRepository) Append(ctx context.Context, rec *models.UamIntegration) error {
	batch := r.client.Batch(gocql.LoggedBatch)
	batch.WithContext(ctx)
	batch.Query(r.client.Prepared.CreateUamRecord.Statement(),
		rec.AppUserID, rec.Version, rec.RecordID, string(rec.Activity),
		rec.EmployeeID, rec.Department, rec.Designation, rec.IsLatest, rec.CreatedAt)
	if rec.Version > 1 {
		batch.Query(r.client.Prepared.UnsetUamLatest.Statement(), rec.AppUserID, rec.Version-1)
	}

	if err := r.client.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to append uam record: %w", err)
	}
	return nil
}

func (r *uamRepository) GetLatest(ctx context.Context, appUserID string) (*models.UamIntegration, error) {
	var rec models.UamIntegration
	var activity string
	q := r.client.Prepared.GetLatestUam.Bind(appUserID).WithContext(ctx)
	err := r.client.ScanWithRetry(q,
		&rec.AppUserID, &rec.Version, &rec.RecordID, &activity,
		&rec.EmployeeID, &rec.Department, &rec.Designation, &rec.IsLatest, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("uam lookup failed: %w", err)
	}
	rec.Activity = models.UamActivity(activity)
	return &rec, nil
}
