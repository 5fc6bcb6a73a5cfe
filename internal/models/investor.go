package models

import "time"

// InvestorDetails is the 1:1 extension of AppUser carrying PAN, DOB and
// tax-residency identification. At most one active row per user; the PAN,
// once set, changes only through explicit validation failure paths.
type InvestorDetails struct {
	InvestorID    string     `db:"investor_id"`
	AppUserID     string     `db:"app_user_id"`
	PanCardNumber string     `db:"pan_card_number"`
	PanEncrypted  []byte     `db:"pan_encrypted"`
	PanKeyID      string     `db:"pan_key_id"`
	DateOfBirth   *time.Time `db:"date_of_birth"`
	InvestorType  string     `db:"investor_type"`

	// Up to four identifications for multi-country tax residency.
	IdentificationNumbers []string `db:"identification_numbers"`
	IdentificationTypes   []string `db:"identification_types"`

	AddressID string     `db:"address_id"`
	IsActive  bool       `db:"is_active"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt *time.Time `db:"updated_at"`
}

// InvestorNominee links a nominee to an account. The nominee itself is
// materialized as a shadow AppUser plus InvestorDetails row.
type InvestorNominee struct {
	NomineeID        string     `db:"nominee_id"`
	AccountID        string     `db:"account_id"`
	AppUserID        string     `db:"app_user_id"`         // owner
	NomineeAppUserID string     `db:"nominee_app_user_id"` // shadow identity
	Relationship     string     `db:"relationship"`
	SharePercent     int        `db:"share_percent"`
	IsMinor          bool       `db:"is_minor"`
	GuardianName     string     `db:"guardian_name"`
	IsActive         bool       `db:"is_active"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        *time.Time `db:"updated_at"`
}
