package models

// AppUserStatus is the onboarding state machine checkpoint. The persisted
// status is the resumption point after a crash or an out-of-band step on
// the bank side, so values must stay wire-stable.
type AppUserStatus string

const (
	StatusRegistrationInitiated  AppUserStatus = "registrationInitiated"
	StatusNTBUser                AppUserStatus = "NTBUser"
	StatusSingleCustomerID       AppUserStatus = "singleCustomerID"
	StatusMultipleCustomerID     AppUserStatus = "multipleCustomerID"
	StatusIDCOMVerified          AppUserStatus = "IDCOMVerified"
	StatusPINSetupCompleted      AppUserStatus = "PINSetupCompleted"
	StatusFATCAReady             AppUserStatus = "FATCAReady"
	StatusDeclarationCompleted   AppUserStatus = "declarationCompleted"
	StatusNomineeCompleted       AppUserStatus = "nomineeCompleted"
	StatusInvestmentAccountReady AppUserStatus = "investmentAccountReady"
	StatusActive                 AppUserStatus = "active"
	StatusAdvisoryUser           AppUserStatus = "advisoryUser"
	StatusWealthfyDomesticUser   AppUserStatus = "wealthfyDomesticUser"
	StatusBlocked                AppUserStatus = "blocked"
	StatusLocked                 AppUserStatus = "locked"
)

// statusTransitions is the closed transition table. blocked and locked are
// reachable from every non-terminal state and therefore not listed per-row.
var statusTransitions = map[AppUserStatus][]AppUserStatus{
	StatusRegistrationInitiated:  {StatusNTBUser, StatusSingleCustomerID, StatusMultipleCustomerID, StatusAdvisoryUser, StatusWealthfyDomesticUser},
	StatusNTBUser:                {StatusSingleCustomerID, StatusMultipleCustomerID, StatusIDCOMVerified},
	StatusSingleCustomerID:       {StatusIDCOMVerified, StatusNTBUser, StatusAdvisoryUser, StatusWealthfyDomesticUser},
	StatusMultipleCustomerID:     {StatusIDCOMVerified, StatusSingleCustomerID, StatusNTBUser, StatusAdvisoryUser, StatusWealthfyDomesticUser},
	StatusIDCOMVerified:          {StatusPINSetupCompleted, StatusFATCAReady},
	StatusPINSetupCompleted:      {StatusFATCAReady, StatusDeclarationCompleted},
	StatusFATCAReady:             {StatusDeclarationCompleted},
	StatusDeclarationCompleted:   {StatusNomineeCompleted},
	StatusNomineeCompleted:       {StatusInvestmentAccountReady},
	StatusInvestmentAccountReady: {StatusActive},
	StatusActive:                 {},
	StatusAdvisoryUser:           {StatusSingleCustomerID},
	StatusWealthfyDomesticUser:   {StatusSingleCustomerID},
	StatusBlocked:                {},
	StatusLocked:                 {},
}

// CanTransition reports whether moving from s to next is a legal step.
func (s AppUserStatus) CanTransition(next AppUserStatus) bool {
	if s == next {
		return true
	}
	if next == StatusBlocked || next == StatusLocked {
		return !s.IsTerminal()
	}
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the onboarding core will not move s further.
// locked requires an administrative reset, blocked an operator review.
func (s AppUserStatus) IsTerminal() bool {
	return s == StatusActive || s == StatusBlocked || s == StatusLocked
}

func (s AppUserStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// UamActivity tags UamIntegration audit rows.
type UamActivity string

const (
	UamActivityCreate UamActivity = "CREATE"
	UamActivityUpdate UamActivity = "UPDATE"
	UamActivityLock   UamActivity = "LOCK"
	UamActivityUnlock UamActivity = "UNLOCK"
)

// CallbackStatus is the tri-state outcome recorded on an IdcomDetails row.
type CallbackStatus string

const (
	CallbackPending CallbackStatus = "pending"
	CallbackSuccess CallbackStatus = "success"
	CallbackFailure CallbackStatus = "failure"
)

// TwoFaChannel selects where a transaction OTP is delivered. The target
// contact is captured on the row at creation time.
type TwoFaChannel string

const (
	ChannelSMS   TwoFaChannel = "sms"
	ChannelEmail TwoFaChannel = "email"
)

// FatcaGenerationStatus tracks the FATCA declaration artifact per user.
type FatcaGenerationStatus string

const (
	FatcaPending   FatcaGenerationStatus = "pending"
	FatcaGenerated FatcaGenerationStatus = "generated"
	FatcaFailed    FatcaGenerationStatus = "failed"
)
