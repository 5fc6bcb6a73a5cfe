package models

import "testing"

func TestStatusHappyPathIsTraversable(t *testing.T) {
	path := []AppUserStatus{
		StatusRegistrationInitiated,
		StatusSingleCustomerID,
		StatusIDCOMVerified,
		StatusPINSetupCompleted,
		StatusFATCAReady,
		StatusDeclarationCompleted,
		StatusNomineeCompleted,
		StatusInvestmentAccountReady,
		StatusActive,
	}
	for i := 1; i < len(path); i++ {
		if !path[i-1].CanTransition(path[i]) {
			t.Errorf("%s -> %s rejected", path[i-1], path[i])
		}
	}
}

func TestStatusNoBackwardTransitions(t *testing.T) {
	cases := []struct{ from, to AppUserStatus }{
		{StatusActive, StatusRegistrationInitiated},
		{StatusIDCOMVerified, StatusSingleCustomerID},
		{StatusNomineeCompleted, StatusDeclarationCompleted},
		{StatusActive, StatusIDCOMVerified},
	}
	for _, c := range cases {
		if c.from.CanTransition(c.to) {
			t.Errorf("%s -> %s allowed", c.from, c.to)
		}
	}
}

func TestStatusSelfTransitionIsIdempotent(t *testing.T) {
	for s := range statusTransitions {
		if !s.CanTransition(s) {
			t.Errorf("%s -> %s rejected", s, s)
		}
	}
}

func TestBlockedAndLockedReachableFromNonTerminalOnly(t *testing.T) {
	if !StatusSingleCustomerID.CanTransition(StatusLocked) {
		t.Error("locked unreachable from singleCustomerID")
	}
	if !StatusRegistrationInitiated.CanTransition(StatusBlocked) {
		t.Error("blocked unreachable from registrationInitiated")
	}
	if StatusActive.CanTransition(StatusLocked) {
		t.Error("terminal state moved to locked")
	}
	if StatusBlocked.CanTransition(StatusLocked) {
		t.Error("blocked moved to locked")
	}
}

func TestAdvisoryAndWealthfyCanResume(t *testing.T) {
	if !StatusAdvisoryUser.CanTransition(StatusSingleCustomerID) {
		t.Error("advisory user cannot resume onboarding")
	}
	if !StatusWealthfyDomesticUser.CanTransition(StatusSingleCustomerID) {
		t.Error("wealthfy user cannot resume onboarding")
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusActive.Valid() {
		t.Error("active reported invalid")
	}
	if AppUserStatus("bogus").Valid() {
		t.Error("bogus status reported valid")
	}
}
