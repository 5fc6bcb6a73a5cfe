package scylla

import (
	"context"
	"fmt"

	"onboarding-service/internal/models"
)

// MpinHistoryRepository is the append-only prior-hash log behind MPIN
// reuse checks. Rows are clustered newest-first on created_at.
type MpinHistoryRepository interface {
	Append(ctx context.Context, rec *models.MpinHistory) error
	Recent(ctx context.Context, appUserID string, limit int) ([]*models.MpinHistory, error)
}

type mpinHistoryRepository struct {
	client *ScyllaClient
}

func NewMpinHistoryRepository(client *ScyllaClient) MpinHistoryRepository {
	return &mpinHistoryRepository{client: client}
}

func (r *mpinHistoryRepository) Append(ctx context.Context, rec *models.MpinHistory) error {
	q := r.client.Prepared.AppendMpinHistory.
		Bind(rec.AppUserID, rec.CreatedAt, rec.HistoryID, rec.MPINHash).
		WithContext(ctx)
	if err := r.client.ExecuteWithRetry(q, 2); err != nil {
		return fmt.Errorf("failed to append mpin history: %w", err)
	}
	return nil
}

func (r *mpinHistoryRepository) Recent(ctx context.Context, appUserID string, limit int) ([]*models.MpinHistory, error) {
	iter := r.client.Prepared.GetMpinHistory.Bind(appUserID, limit).WithContext(ctx).Iter()

	var out []*models.MpinHistory
	for {
		var rec models.MpinHistory
		if !iter.Scan(&rec.AppUserID, &rec.CreatedAt, &rec.HistoryID, &rec.MPINHash) {
			break
		}
		cp := rec
		out = append(out, &cp)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to read mpin history: %w", err)
	}
	return out, nil
}
