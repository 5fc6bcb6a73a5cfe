package models

import "time"

// IdcomDetails records one identity-provider authorization attempt. The
// base64-encoded authCode is the idempotency key for callback handling;
// HandleCallbackStatus is written exactly once.
type IdcomDetails struct {
	IdcomID              string         `db:"idcom_id"`
	AuthCode             string         `db:"auth_code"` // stored base64-encoded
	AppUserID            string         `db:"app_user_id"`
	DeviceID             string         `db:"device_id"`
	RedirectURL          string         `db:"redirect_url"`
	HandleCallbackStatus CallbackStatus `db:"handle_callback_status"`
	IsActive             bool           `db:"is_active"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            *time.Time     `db:"updated_at"`
}
