package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"onboarding-service/internal/bucketing"
	"onboarding-service/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ErrConditionFailed is returned when a conditional update loses the race;
// callers decide whether to re-read and retry or surface a conflict.
var ErrConditionFailed = errors.New("conditional update not applied")

// UserRepository is the AppUser store. All counter mutations go through
// conditional updates keyed on the previously read value.
type UserRepository interface {
	Create(ctx context.Context, user *models.AppUser) error
	GetByID(ctx context.Context, userID string) (*models.AppUser, error)
	GetByContactHash(ctx context.Context, contactHash string) (*models.AppUser, error)
	Update(ctx context.Context, user *models.AppUser) error
	UpdateStatus(ctx context.Context, userID string, status models.AppUserStatus, remarks string, active bool) error
	CASLoginRetryCount(ctx context.Context, userID string, expected, next int) error
	CASOTPCounters(ctx context.Context, userID string, expRetry, nextRetry, expVerify, nextVerify int) error
	CASTxnOTPCounters(ctx context.Context, userID string, expRetry, nextRetry, expVerify, nextVerify int) error
	SetOTPGeneration(ctx context.Context, userID, refNo string, generation, expiry time.Time) error
	SetTxnOTPGeneration(ctx context.Context, userID, refNo string, generation, expiry time.Time) error
	SetMPIN(ctx context.Context, userID, mpinHash string, resetAt time.Time) error
	RecordLogin(ctx context.Context, userID string, at time.Time) error
	SetLoginWindow(ctx context.Context, userID string, at time.Time) error
}

type userRepository struct {
	client  *ScyllaClient
	buckets *bucketing.BucketingManager
}

func NewUserRepository(client *ScyllaClient, buckets *bucketing.BucketingManager) UserRepository {
	return &userRepository{client: client, buckets: buckets}
}

func (r *userRepository) bucket(userID string) int {
	return r.buckets.GetUserBucket(userID)
}

func (r *userRepository) Create(ctx context.Context, user *models.AppUser) error {
	user.UserBucket = r.bucket(user.UserID)

	// Shadow identities (nominees) carry no contact and skip the
	// uniqueness reservation.
	if user.ContactHash != "" {
		var existingBucket int
		var existingID string
		applied, err := r.client.Prepared.CreateContactToUser.
			Bind(user.ContactHash, user.UserBucket, user.UserID, user.CreatedAt).
			WithContext(ctx).
			ScanCAS(&existingBucket, &existingID)
		if err != nil {
			return fmt.Errorf("failed to reserve contact: %w", err)
		}
		if !applied && existingID != user.UserID {
			return fmt.Errorf("contact already registered to another user: %w", ErrConditionFailed)
		}
	}

	q := r.client.Prepared.CreateUser.Bind(
		user.UserBucket, user.UserID, user.UserCode, user.ContactNumber, user.CountryCode, user.ContactHash,
		user.PasswordHash, user.MPINHash, user.MPINSetup, string(user.Status), user.StatusRemarks,
		user.LoginRetryCount, user.LastLoginAt,
		user.OTPRetryCount, user.OTPVerificationCount, user.OTPExpiry, user.OTPGeneration, user.OTPRefNo,
		user.TxnOTPRetryCount, user.TxnOTPVerificationCount, user.TxnOTPExpiry, user.TxnOTPGeneration, user.TxnOTPRefNo,
		user.BosCode, user.DematAccNumber, user.DematDpID, user.Roles, user.MPINResetAt,
		user.IsActive, user.CreatedAt, user.UpdatedAt,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(q, 2); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) scanUser(q *gocql.Query) (*models.AppUser, error) {
	var u models.AppUser
	var status string
	err := q.Scan(
		&u.UserBucket, &u.UserID, &u.UserCode, &u.ContactNumber, &u.CountryCode, &u.ContactHash,
		&u.PasswordHash, &u.MPINHash, &u.MPINSetup, &status, &u.StatusRemarks,
		&u.LoginRetryCount, &u.LastLoginAt,
		&u.OTPRetryCount, &u.OTPVerificationCount, &u.OTPExpiry, &u.OTPGeneration, &u.OTPRefNo,
		&u.TxnOTPRetryCount, &u.TxnOTPVerificationCount, &u.TxnOTPExpiry, &u.TxnOTPGeneration, &u.TxnOTPRefNo,
		&u.BosCode, &u.DematAccNumber, &u.DematDpID, &u.Roles, &u.MPINResetAt,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.Status = models.AppUserStatus(status)
	return &u, nil
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (*models.AppUser, error) {
	q := r.client.Prepared.GetUserByID.Bind(r.bucket(userID), userID).WithContext(ctx)
	return r.scanUser(q)
}

func (r *userRepository) GetByContactHash(ctx context.Context, contactHash string) (*models.AppUser, error) {
	var bucket int
	var userID string
	q := r.client.Prepared.GetUserByContact.Bind(contactHash).WithContext(ctx)
	if err := r.client.ScanWithRetry(q, &bucket, &userID); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("contact lookup failed: %w", err)
	}
	return r.scanUser(r.client.Prepared.GetUserByID.Bind(bucket, userID).WithContext(ctx))
}

func (r *userRepository) Update(ctx context.Context, user *models.AppUser) error {
	now := time.Now().UTC()
	user.UpdatedAt = &now

	q := r.client.Prepared.UpdateUser.Bind(
		user.UserCode, user.PasswordHash, user.MPINHash, user.MPINSetup,
		string(user.Status), user.StatusRemarks, user.LoginRetryCount, user.LastLoginAt,
		user.OTPRetryCount, user.OTPVerificationCount, user.OTPExpiry, user.OTPGeneration, user.OTPRefNo,
		user.TxnOTPRetryCount, user.TxnOTPVerificationCount, user.TxnOTPExpiry, user.TxnOTPGeneration, user.TxnOTPRefNo,
		user.BosCode, user.DematAccNumber, user.DematDpID, user.Roles, user.MPINResetAt,
		user.IsActive, user.UpdatedAt,
		user.UserBucket, user.UserID,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(q, 2); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *userRepository) UpdateStatus(ctx context.Context, userID string, status models.AppUserStatus, remarks string, active bool) error {
	q := r.client.Prepared.UpdateUserStatus.
		Bind(string(status), remarks, active, time.Now().UTC(), r.bucket(userID), userID).
		WithContext(ctx)
	if err := r.client.ExecuteWithRetry(q, 2); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

func (r *userRepository) CASLoginRetryCount(ctx context.Context, userID string, expected, next int) error {
	q := r.client.Query(`
        UPDATE app_users SET login_retry_count = ?, updated_at = ?
        WHERE user_bucket = ? AND user_id = ? IF login_retry_count = ?`,
		next, time.Now().UTC(), r.bucket(userID), userID, expected,
	).WithContext(ctx)

	var current int
	applied, err := r.client.ExecCAS(q, &current)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("login_retry_count moved from %d to %d: %w", expected, current, ErrConditionFailed)
	}
	return nil
}

func (r *userRepository) CASOTPCounters(ctx context.Context, userID string, expRetry, nextRetry, expVerify, nextVerify int) error {
	q := r.client.Query(`
        UPDATE app_users SET otp_retry_count = ?, otp_verification_count = ?, updated_at = ?
        WHERE user_bucket = ? AND user_id = ?
        IF otp_retry_count = ? AND otp_verification_count = ?`,
		nextRetry, nextVerify, time.Now().UTC(), r.bucket(userID), userID, expRetry, expVerify,
	).WithContext(ctx)

	var curRetry, curVerify int
	applied, err := r.client.ExecCAS(q, &curRetry, &curVerify)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("otp counters moved to (%d,%d): %w", curRetry, curVerify, ErrConditionFailed)
	}
	return nil
}

func (r *userRepository) CASTxnOTPCounters(ctx context.Context, userID string, expRetry, nextRetry, expVerify, nextVerify int) error {
	q := r.client.Query(`
        UPDATE app_users SET txn_otp_retry_count = ?, txn_otp_verification_count = ?, updated_at = ?
        WHERE user_bucket = ? AND user_id = ?
        IF txn_otp_retry_count = ? AND txn_otp_verification_count = ?`,
		nextRetry, nextVerify, time.Now().UTC(), r.bucket(userID), userID, expRetry, expVerify,
	).WithContext(ctx)

	var curRetry, curVerify int
	applied, err := r.client.ExecCAS(q, &curRetry, &curVerify)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("txn otp counters moved to (%d,%d): %w", curRetry, curVerify, ErrConditionFailed)
	}
	return nil
}

func (r *userRepository) SetOTPGeneration(ctx context.Context, userID, refNo string, generation, expiry time.Time) error {
	q := r.client.Prepared.SetOTPGeneration.
		Bind(generation, expiry, refNo, time.Now().UTC(), r.bucket(userID), userID).
		WithContext(ctx)
	if err := r.client.ExecuteWithRetry(q, 2); err != nil {
		return fmt.Errorf("failed to record otp generation: %w", err)
	}
	return nil
}

func (r *userRepository) SetTxnOTPGeneration(ctx context.Context, userID, refNo string, generation, expiry time.Time) error {
	q := r.client.Query(`
        UPDATE app_users SET txn_otp_generation = ?, txn_otp_expiry = ?, txn_otp_ref_no = ?, updated_at = ?
        WHERE user_bucket = ? AND user_id = ?`,
		generation, expiry, refNo, time.Now().UTC(), r.bucket(userID), userID,
	).WithContext(ctx)
	if err := r.client.ExecuteWithRetry(q, 2); err != nil {
		return fmt.Errorf("failed to record txn otp generation: %w", err)
	}
	return nil
}

func (r *userRepository) SetMPIN(ctx context.Context, userID, mpinHash string, resetAt time.Time) error {
	q := r.client.Query(`
        UPDATE app_users SET mpin_hash = ?, mpin_setup = true, mpin_reset_at = ?, updated_at = ?
        WHERE user_bucket = ? AND user_id = ?`,
		mpinHash, resetAt, time.Now().UTC(), r.bucket(userID), userID,
	).WithContext(ctx)
	if err := r.client.ExecuteWithRetry(q, 2); err != nil {
		return fmt.Errorf("failed to set mpin: %w", err)
	}
	return nil
}

func (r *userRepository) SetLoginWindow(ctx context.Context, userID string, at time.Time) error {
	q := r.client.Query(`
        UPDATE app_users SET last_login_at = ?, updated_at = ?
        WHERE user_bucket = ? AND user_id = ?`,
		at, time.Now().UTC(), r.bucket(userID), userID,
	).WithContext(ctx)
	if err := r.client.ExecuteWithRetry(q, 2); err != nil {
		return fmt.Errorf("failed to set login window: %w", err)
	}
	return nil
}

func (r *userRepository) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	q := r.client.Query(`
        UPDATE app_users SET last_login_at = ?, login_retry_count = 0, updated_at = ?
        WHERE user_bucket = ? AND user_id = ?`,
		at, time.Now().UTC(), r.bucket(userID), userID,
	).WithContext(ctx)
	if err := r.client.ExecuteWithRetry(q, 2); err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}
