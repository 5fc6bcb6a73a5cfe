package models

import "time"

// Device is a physical/app installation. A uniqueId is bound to exactly
// one active user at a time; rebinding deactivates the prior binding in
// the same batch.
type Device struct {
	DeviceID       string    `db:"device_id"`
	UniqueID       string    `db:"unique_id"`
	AppUserID      string    `db:"app_user_id"`
	PublicKey      string    `db:"public_key"`
	BiometricToken string    `db:"biometric_token"`
	BiometricSetup bool      `db:"biometric_setup"`
	MPINSetup      bool      `db:"mpin_setup"`
	Fingerprint    string    `db:"fingerprint"` // sealed (uniqueId, os, versionCode, sdk)
	OSName         string    `db:"os_name"`
	VersionCode    string    `db:"version_code"`
	SDKVersion     string    `db:"sdk_version"`
	RegisteredDate time.Time `db:"registered_date"`
	IsActive       bool      `db:"is_active"`
}
