package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"onboarding-service/internal/models"
)

// TwoFaRepository stores transaction-scoped OTP rows keyed by txnRefNo.
// Counters and the verified flag move through conditional updates.
type TwoFaRepository interface {
	Create(ctx context.Context, rec *models.TransactionTwoFa) error
	GetByRefNo(ctx context.Context, txnRefNo string) (*models.TransactionTwoFa, error)
	CASCounters(ctx context.Context, txnRefNo string, expRetry, nextRetry, expVerify, nextVerify int) error
	SetGeneration(ctx context.Context, txnRefNo, gatewayRefNo string, generation, expiry time.Time) error
	MarkVerified(ctx context.Context, txnRefNo string, verificationCount int) error
}

type twoFaRepository struct {
	client *ScyllaClient
}

func NewTwoFaRepository(client *ScyllaClient) TwoFaRepository {
	return &twoFaRepository{client: client}
}

func (r *twoFaRepository) Create(ctx context.Context, rec *models.TransactionTwoFa) error {
	q := r.client.Prepared.CreateTwoFa.Bind(
		rec.TxnRefNo, rec.AccountID, string(rec.Channel), rec.TargetContact, rec.GatewayRefNo,
		rec.RetryCount, rec.VerificationCount, rec.OTPVerified, rec.OTPExpiry, rec.OTPGeneration,
		rec.CartItemIDs, rec.CreatedAt, rec.UpdatedAt,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(q, 2); err != nil {
		return fmt.Errorf("failed to create txn twofa record: %w", err)
	}
	return nil
}

func (r *twoFaRepository) GetByRefNo(ctx context.Context, txnRefNo string) (*models.TransactionTwoFa, error) {
	var rec models.TransactionTwoFa
	var channel string
	q := r.client.Prepared.GetTwoFa.Bind(txnRefNo).WithContext(ctx)
	err := r.client.ScanWithRetry(q,
		&rec.TxnRefNo, &rec.AccountID, &channel, &rec.TargetContact, &rec.GatewayRefNo,
		&rec.RetryCount, &rec.VerificationCount, &rec.OTPVerified, &rec.OTPExpiry, &rec.OTPGeneration,
		&rec.CartItemIDs, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("txn twofa lookup failed: %w", err)
	}
	rec.Channel = models.TwoFaChannel(channel)
	return &rec, nil
}

func (r *twoFaRepository) CASCounters(ctx context.Context, txnRefNo string, expRetry, nextRetry, expVerify, nextVerify int) error {
	q := r.client.Query(`
        UPDATE transaction_twofa SET retry_count = ?, verification_count = ?, updated_at = ?
        WHERE txn_ref_no = ? IF retry_count = ? AND verification_count = ?`,
		nextRetry, nextVerify, time.Now().UTC(), txnRefNo, expRetry, expVerify,
	).WithContext(ctx)

	var curRetry, curVerify int
	applied, err := r.client.ExecCAS(q, &curRetry, &curVerify)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("twofa counters moved to (%d,%d): %w", curRetry, curVerify, ErrConditionFailed)
	}
	return nil
}

func (r *twoFaRepository) SetGeneration(ctx context.Context, txnRefNo, gatewayRefNo string, generation, expiry time.Time) error {
	q := r.client.Query(`
        UPDATE transaction_twofa SET gateway_ref_no = ?, otp_generation = ?, otp_expiry = ?, updated_at = ?
        WHERE txn_ref_no = ?`,
		gatewayRefNo, generation, expiry, time.Now().UTC(), txnRefNo,
	).WithContext(ctx)
	if err := r.client.ExecuteWithRetry(q, 2); err != nil {
		return fmt.Errorf("failed to record twofa generation: %w", err)
	}
	return nil
}

// MarkVerified flips otp_verified exactly once per row.
func (r *twoFaRepository) MarkVerified(ctx context.Context, txnRefNo string, verificationCount int) error {
	q := r.client.Prepared.MarkTwoFaUsed.
		Bind(verificationCount, time.Now().UTC(), txnRefNo).
		WithContext(ctx)

	var alreadyVerified bool
	applied, err := r.client.ExecCAS(q, &alreadyVerified)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("otp already consumed for %s: %w", txnRefNo, ErrConditionFailed)
	}
	return nil
}
