package models

import "time"

// UamIntegration is the versioned external identity-sync record. Exactly
// one row per user carries IsLatest=true; a lock event appends a new row
// (delta fields nulled, activity LOCK) and flips the prior row's flag.
type UamIntegration struct {
	AppUserID   string      `db:"app_user_id"`
	RecordID    string      `db:"record_id"`
	Version     int         `db:"version"`
	Activity    UamActivity `db:"activity"`
	EmployeeID  string      `db:"employee_id"`
	Department  string      `db:"department"`
	Designation string      `db:"designation"`
	IsLatest    bool        `db:"is_latest"`
	CreatedAt   time.Time   `db:"created_at"`
}

// MarkAsLocked derives the audit row appended on lockout: a copy of the
// latest record with delta fields nulled and activity set to LOCK.
func (u UamIntegration) MarkAsLocked() UamIntegration {
	return UamIntegration{
		AppUserID: u.AppUserID,
		Version:   u.Version + 1,
		Activity:  UamActivityLock,
		IsLatest:  true,
	}
}
