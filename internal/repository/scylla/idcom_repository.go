package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"onboarding-service/internal/models"
)

// IdcomRepository stores identity-provider authorization attempts keyed by
// the base64-encoded authCode. MarkCallbackStatus is a conditional write on
// the pending state so callback handling is exactly-once.
type IdcomRepository interface {
	Create(ctx context.Context, rec *models.IdcomDetails) error
	GetActiveByAuthCode(ctx context.Context, authCode string) (*models.IdcomDetails, error)
	GetByUserAndAuthCode(ctx context.Context, appUserID, authCode string) (*models.IdcomDetails, error)
	MarkCallbackStatus(ctx context.Context, authCode string, status models.CallbackStatus) error
}

type idcomRepository struct {
	client *ScyllaClient
}

func NewIdcomRepository(client *ScyllaClient) IdcomRepository {
	return &idcomRepository{client: client}
}

func (r *idcomRepository) Create(ctx context.Context, rec *models.IdcomDetails) error {
	q := r.client.Prepared.CreateIdcom.Bind(
		rec.AuthCode, rec.IdcomID, rec.AppUserID, rec.DeviceID, rec.RedirectURL,
		string(rec.HandleCallbackStatus), rec.IsActive, rec.CreatedAt, rec.UpdatedAt,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(q, 2); err != nil {
		return fmt.Errorf("failed to create idcom record: %w", err)
	}
	return nil
}

func (r *idcomRepository) scan(q *gocql.Query) (*models.IdcomDetails, error) {
	var rec models.IdcomDetails
	var status string
	err := r.client.ScanWithRetry(q,
		&rec.AuthCode, &rec.IdcomID, &rec.AppUserID, &rec.DeviceID, &rec.RedirectURL,
		&status, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("idcom lookup failed: %w", err)
	}
	rec.HandleCallbackStatus = models.CallbackStatus(status)
	return &rec, nil
}

func (r *idcomRepository) GetActiveByAuthCode(ctx context.Context, authCode string) (*models.IdcomDetails, error) {
	rec, err := r.scan(r.client.Prepared.GetIdcomByAuthCode.Bind(authCode).WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if !rec.IsActive {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (r *idcomRepository) GetByUserAndAuthCode(ctx context.Context, appUserID, authCode string) (*models.IdcomDetails, error) {
	rec, err := r.scan(r.client.Prepared.GetIdcomByAuthCode.Bind(authCode).WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if rec.AppUserID != appUserID {
		return nil, ErrNotFound
	}
	return rec, nil
}

// MarkCallbackStatus records the callback outcome once. A second call for
// the same authCode loses the IF condition and reports ErrConditionFailed.
func (r *idcomRepository) MarkCallbackStatus(ctx context.Context, authCode string, status models.CallbackStatus) error {
	q := r.client.Query(`
        UPDATE idcom_details SET handle_callback_status = ?, updated_at = ?
        WHERE auth_code = ? IF handle_callback_status = ?`,
		string(status), time.Now().UTC(), authCode, string(models.CallbackPending),
	).WithContext(ctx)

	var current string
	applied, err := r.client.ExecCAS(q, &current)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("callback already handled with status %q: %w", current, ErrConditionFailed)
	}
	return nil
}
