package models

import "time"

// TransactionTwoFa is one transaction-scoped OTP row, keyed by txnRefNo.
// The delivery channel and target contact are captured at creation so a
// later contact change never redirects an in-flight OTP.
type TransactionTwoFa struct {
	TxnRefNo          string       `db:"txn_ref_no"`
	AccountID         string       `db:"account_id"`
	Channel           TwoFaChannel `db:"channel"`
	TargetContact     string       `db:"target_contact"`
	GatewayRefNo      string       `db:"gateway_ref_no"`
	RetryCount        int          `db:"retry_count"`
	VerificationCount int          `db:"verification_count"`
	OTPVerified       bool         `db:"otp_verified"`
	OTPExpiry         *time.Time   `db:"otp_expiry"`
	OTPGeneration     *time.Time   `db:"otp_generation"`
	CartItemIDs       []string     `db:"cart_item_ids"`
	CreatedAt         time.Time    `db:"created_at"`
	UpdatedAt         *time.Time   `db:"updated_at"`
}
