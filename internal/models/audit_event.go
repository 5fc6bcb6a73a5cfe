package models

import "time"

// AuditEvent is one append-only security/onboarding event, sunk to
// ClickHouse and indexed in Elasticsearch for operator search.
type AuditEvent struct {
	EventBucket int       `db:"event_bucket"`
	AppUserID   string    `db:"app_user_id"`
	EventDate   string    `db:"event_date"`
	EventTime   time.Time `db:"event_time"`
	EventType   string    `db:"event_type"`
	DeviceID    string    `db:"device_id"`
	TxnRefNo    string    `db:"txn_ref_no"`
	Outcome     string    `db:"outcome"`
	Details     string    `db:"details"`
}

// Event types recorded by the onboarding core.
const (
	EventLoginFailed      = "login_failed"
	EventAccountLocked    = "account_locked"
	EventOTPGenerated     = "otp_generated"
	EventOTPRejected      = "otp_rejected"
	EventOTPVerified      = "otp_verified"
	EventMPINChanged      = "mpin_changed"
	EventIdcomRedirect    = "idcom_redirect_issued"
	EventIdcomCallback    = "idcom_callback"
	EventStatusTransition = "status_transition"
	EventTxnOTPGenerated  = "txn_otp_generated"
	EventTxnOTPVerified   = "txn_otp_verified"
)
