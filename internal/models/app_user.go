package models

import "time"

// AppUser is the application identity row. Contact details are stored
// hashed (partition lookup) plus KMS-encrypted (recovery); counters are
// updated with conditional writes to survive concurrent requests.
type AppUser struct {
	UserBucket    int    `db:"user_bucket"`
	UserID        string `db:"user_id"`
	UserCode      string `db:"user_code"` // external bank customer code, empty until resolved
	ContactNumber string `db:"contact_number"`
	CountryCode   string `db:"country_code"`
	ContactHash   string `db:"contact_hash"`

	PasswordHash string `db:"password_hash"`
	MPINHash     string `db:"mpin_hash"`
	MPINSetup    bool   `db:"mpin_setup"`

	Status          AppUserStatus `db:"status"`
	StatusRemarks   string        `db:"status_remarks"`
	LoginRetryCount int           `db:"login_retry_count"`
	LastLoginAt     *time.Time    `db:"last_login_at"`

	OTPRetryCount        int        `db:"otp_retry_count"`
	OTPVerificationCount int        `db:"otp_verification_count"`
	OTPExpiry            *time.Time `db:"otp_expiry"`
	OTPGeneration        *time.Time `db:"otp_generation"`
	OTPRefNo             string     `db:"otp_ref_no"`

	TxnOTPRetryCount        int        `db:"txn_otp_retry_count"`
	TxnOTPVerificationCount int        `db:"txn_otp_verification_count"`
	TxnOTPExpiry            *time.Time `db:"txn_otp_expiry"`
	TxnOTPGeneration        *time.Time `db:"txn_otp_generation"`
	TxnOTPRefNo             string     `db:"txn_otp_ref_no"`

	BosCode        string `db:"bos_code"` // core-banking customer identifier
	DematAccNumber string `db:"demat_acc_number"`
	DematDpID      string `db:"demat_dp_id"`

	Roles          []string   `db:"roles"`
	MPINResetAt    *time.Time `db:"mpin_reset_at"`
	IsActive       bool       `db:"is_active"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at"`
}

// HasRole reports whether the user's role set contains role.
func (u *AppUser) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleClient marks consumer-app sessions; token refresh during onboarding
// applies to this role only.
const RoleClient = "CLIENT"
