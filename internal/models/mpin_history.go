package models

import "time"

// MpinHistory is an append-only log of prior MPIN hashes. Reuse checks
// read the newest N rows; nothing is ever deleted or updated.
type MpinHistory struct {
	AppUserID string    `db:"app_user_id"`
	HistoryID string    `db:"history_id"`
	MPINHash  string    `db:"mpin_hash"`
	CreatedAt time.Time `db:"created_at"`
}
