package service

import "errors"

// Policy rejections carry a stable systemcode so clients can branch
// without parsing messages. Data-integrity faults are deliberately not
// converted: they surface as 500s because they indicate upstream
// corruption needing operator attention.
var (
	ErrBadRequest = errors.New("invalid request")

	// OTP lifecycle.
	ErrTooSoon                   = errors.New("otp resend requested too soon")
	ErrRetryLimitExceeded        = errors.New("otp retry limit exceeded")
	ErrVerificationLimitExceeded = errors.New("otp verification limit exceeded")
	ErrExpired                   = errors.New("otp expired")
	ErrOTPRejected               = errors.New("otp did not match")

	// Secret policy.
	ErrWeakSecret  = errors.New("secret is repetitive or sequential")
	ErrSecretReuse = errors.New("secret matches a recent prior value")

	// Login governor.
	ErrAttemptsExceededDaily = errors.New("daily login attempts exceeded")
	ErrAccountLocked         = errors.New("account locked")
	ErrAuditTrailMissing     = errors.New("no latest uam record for lock audit")
	ErrInvalidCredentials    = errors.New("invalid credentials")

	// Identity resolution.
	ErrPanMismatch            = errors.New("pan conflicts with stored value")
	ErrDobMismatch            = errors.New("dob conflicts with stored value")
	ErrPanAlreadyLinked       = errors.New("pan linked to a different user")
	ErrDataDiscrepancy        = errors.New("multiple active investor records")
	ErrBankUnreachable        = errors.New("core banking lookup failed")
	ErrETBSyncFailed          = errors.New("unrecognized core banking response")
	ErrCallbackRecordNotFound = errors.New("no active idcom record for auth code")
	ErrRestartOnboarding      = errors.New("onboarding must be restarted")

	// Device binding.
	ErrDeviceLimitExceeded = errors.New("device bind limit reached")
	ErrDeviceNotOwned      = errors.New("device not bound to user")

	ErrUserNotFound     = errors.New("user not found")
	ErrUserInactive     = errors.New("user inactive")
	ErrGatewayTimeout   = errors.New("external gateway timed out")
	ErrTxnOTPNotFound   = errors.New("no twofa record for transaction")
	ErrOTPAlreadyUsed   = errors.New("transaction otp already consumed")
	ErrReviewIncomplete = errors.New("mandatory review fields missing")
)

// System codes returned alongside policy rejections.
const (
	CodeAttemptsExceededDaily = 465
	CodeVerificationLimit     = 472
)
