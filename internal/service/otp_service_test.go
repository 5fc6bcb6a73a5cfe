package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"onboarding-service/internal/audit"
	"onboarding-service/internal/gateway"
	"onboarding-service/internal/models"
	"onboarding-service/internal/notify"
)

type otpFixture struct {
	users    *fakeUserRepo
	devices  *fakeDeviceRepo
	gateway  *fakeOTPGateway
	cooldown *fakeCooldown
	sessions *fakeSessions
	svc      *OTPService
}

func newOTPFixture(users ...*models.AppUser) *otpFixture {
	cfg := testConfig()
	em := testEncryption()
	f := &otpFixture{
		users:    newFakeUserRepo(users...),
		devices:  newFakeDeviceRepo(),
		gateway:  &fakeOTPGateway{},
		cooldown: newFakeCooldown(),
		sessions: newFakeSessions(),
	}
	deviceSvc := NewDeviceService(f.devices, f.users, em,
		notify.NopDispatcher{}, audit.NopRecorder{}, cfg.Policy)
	f.svc = NewOTPService(f.users, f.gateway, f.cooldown, f.sessions,
		deviceSvc, testTokens(), em, notify.NopDispatcher{}, audit.NopRecorder{}, cfg.Policy)
	return f
}

func testRegistration() *DeviceRegistration {
	return &DeviceRegistration{
		UniqueID:    "imei-1",
		PublicKey:   "pk-1",
		OSName:      "android",
		VersionCode: "14",
		SDKVersion:  "34",
	}
}

func TestGenerateOTPCreatesUserOnFirstContact(t *testing.T) {
	f := newOTPFixture()

	userID, err := f.svc.GenerateOTP(context.Background(), "9876543210", "+91")
	if err != nil {
		t.Fatalf("GenerateOTP: %v", err)
	}
	u := f.users.stored(userID)
	if u == nil {
		t.Fatal("user not created")
	}
	if u.Status != models.StatusRegistrationInitiated {
		t.Errorf("status = %s, want registrationInitiated", u.Status)
	}
	if !u.HasRole(models.RoleClient) {
		t.Error("default role missing")
	}
	if u.OTPRetryCount != 1 {
		t.Errorf("retry count = %d, want 1", u.OTPRetryCount)
	}
	if u.OTPRefNo == "" || u.OTPExpiry == nil {
		t.Error("generation metadata not recorded")
	}
	if f.gateway.sends != 1 {
		t.Errorf("gateway sends = %d, want 1", f.gateway.sends)
	}
}

func TestGenerateOTPRejectsBadPhone(t *testing.T) {
	f := newOTPFixture()
	for _, tc := range []struct{ number, cc string }{
		{"", "+91"},
		{"98765", "+91"},
		{"98765432101", "+91"},
		{"98765x3210", "+91"},
		{"9876543210987", "+44"},
	} {
		if _, err := f.svc.GenerateOTP(context.Background(), tc.number, tc.cc); !errors.Is(err, ErrBadRequest) {
			t.Errorf("GenerateOTP(%q,%q) = %v, want ErrBadRequest", tc.number, tc.cc, err)
		}
	}
}

func TestGenerateOTPCooldownBlocksWithoutMovingCounter(t *testing.T) {
	f := newOTPFixture(testUser(models.StatusRegistrationInitiated))
	f.cooldown.deny = true

	_, err := f.svc.GenerateOTP(context.Background(), "9876543210", "+91")
	if !errors.Is(err, ErrTooSoon) {
		t.Fatalf("GenerateOTP = %v, want ErrTooSoon", err)
	}
	if got := f.users.stored("user-1").OTPRetryCount; got != 0 {
		t.Errorf("denied claim moved retry counter to %d", got)
	}
	if f.gateway.sends != 0 {
		t.Error("gateway called despite cooldown denial")
	}
}

func TestGenerateOTPRollsBackCounterOnSendFailure(t *testing.T) {
	f := newOTPFixture(testUser(models.StatusRegistrationInitiated))
	f.gateway.sendErr = errBoom

	_, err := f.svc.GenerateOTP(context.Background(), "9876543210", "+91")
	if err == nil {
		t.Fatal("send failure not surfaced")
	}
	if got := f.users.stored("user-1").OTPRetryCount; got != 0 {
		t.Errorf("failed send consumed budget: counter = %d, want 0", got)
	}
	if f.cooldown.releases != 1 {
		t.Errorf("cooldown releases = %d, want 1", f.cooldown.releases)
	}
}

func TestGenerateOTPTimeoutMapsToGatewayTimeout(t *testing.T) {
	f := newOTPFixture(testUser(models.StatusRegistrationInitiated))
	f.gateway.sendErr = gateway.ErrGatewayTimeout

	_, err := f.svc.GenerateOTP(context.Background(), "9876543210", "+91")
	if !errors.Is(err, ErrGatewayTimeout) {
		t.Fatalf("GenerateOTP = %v, want ErrGatewayTimeout", err)
	}
}

func TestGenerateOTPRetryCeiling(t *testing.T) {
	user := testUser(models.StatusRegistrationInitiated)
	user.OTPRetryCount = 3
	user.OTPGeneration = timePtr(time.Now().UTC())
	f := newOTPFixture(user)

	_, err := f.svc.GenerateOTP(context.Background(), "9876543210", "+91")
	if !errors.Is(err, ErrRetryLimitExceeded) {
		t.Fatalf("GenerateOTP = %v, want ErrRetryLimitExceeded", err)
	}
}

func TestGenerateOTPCountersResetAfterLockoutWindow(t *testing.T) {
	user := testUser(models.StatusRegistrationInitiated)
	user.OTPRetryCount = 3
	user.OTPVerificationCount = 2
	user.OTPGeneration = timePtr(time.Now().UTC().Add(-13 * time.Hour))
	f := newOTPFixture(user)

	if _, err := f.svc.GenerateOTP(context.Background(), "9876543210", "+91"); err != nil {
		t.Fatalf("GenerateOTP after window: %v", err)
	}
	u := f.users.stored("user-1")
	if u.OTPRetryCount != 1 || u.OTPVerificationCount != 0 {
		t.Errorf("counters after reset = (%d,%d), want (1,0)", u.OTPRetryCount, u.OTPVerificationCount)
	}
}

func TestGenerateOTPInactiveUser(t *testing.T) {
	user := testUser(models.StatusLocked)
	user.IsActive = false
	f := newOTPFixture(user)

	if _, err := f.svc.GenerateOTP(context.Background(), "9876543210", "+91"); !errors.Is(err, ErrUserInactive) {
		t.Fatalf("GenerateOTP = %v, want ErrUserInactive", err)
	}
}

func freshOTPUser() *models.AppUser {
	user := testUser(models.StatusRegistrationInitiated)
	user.OTPRetryCount = 1
	user.OTPRefNo = "REF-1"
	user.OTPGeneration = timePtr(time.Now().UTC())
	user.OTPExpiry = timePtr(time.Now().UTC().Add(5 * time.Minute))
	return user
}

func TestVerifyOTPSuccessBindsDeviceAndIssuesTokens(t *testing.T) {
	f := newOTPFixture(freshOTPUser())

	result, err := f.svc.VerifyOTP(context.Background(), "9876543210", "+91", "123456", testRegistration())
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Error("token pair not issued")
	}
	if result.DeviceID == "" {
		t.Error("device not bound")
	}
	if got := f.users.stored("user-1").OTPVerificationCount; got != 0 {
		t.Errorf("verification counter not reset: %d", got)
	}
	if len(f.sessions.sessions) != 1 {
		t.Errorf("sessions = %d, want 1", len(f.sessions.sessions))
	}
	d, err := f.devices.GetByUniqueID(context.Background(), "imei-1")
	if err != nil {
		t.Fatalf("device row: %v", err)
	}
	if d.AppUserID != "user-1" || !d.IsActive || d.Fingerprint == "" {
		t.Errorf("device binding incomplete: %+v", d)
	}
}

func TestVerifyOTPWrongCodeConsumesAttempt(t *testing.T) {
	f := newOTPFixture(freshOTPUser())

	_, err := f.svc.VerifyOTP(context.Background(), "9876543210", "+91", "000000", testRegistration())
	if !errors.Is(err, ErrOTPRejected) {
		t.Fatalf("VerifyOTP = %v, want ErrOTPRejected", err)
	}
	if got := f.users.stored("user-1").OTPVerificationCount; got != 1 {
		t.Errorf("rejected attempt not counted: %d", got)
	}
}

func TestVerifyOTPProviderFailureHandsAttemptBack(t *testing.T) {
	f := newOTPFixture(freshOTPUser())
	f.gateway.verifyErr = errBoom

	_, err := f.svc.VerifyOTP(context.Background(), "9876543210", "+91", "123456", testRegistration())
	if err == nil {
		t.Fatal("provider failure not surfaced")
	}
	if got := f.users.stored("user-1").OTPVerificationCount; got != 0 {
		t.Errorf("provider failure consumed budget: %d", got)
	}
}

func TestVerifyOTPExpired(t *testing.T) {
	user := freshOTPUser()
	user.OTPExpiry = timePtr(time.Now().UTC().Add(-time.Minute))
	f := newOTPFixture(user)

	_, err := f.svc.VerifyOTP(context.Background(), "9876543210", "+91", "123456", testRegistration())
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("VerifyOTP = %v, want ErrExpired", err)
	}
}

func TestVerifyOTPVerificationCeiling(t *testing.T) {
	user := freshOTPUser()
	user.OTPVerificationCount = 3
	f := newOTPFixture(user)

	_, err := f.svc.VerifyOTP(context.Background(), "9876543210", "+91", "123456", testRegistration())
	if !errors.Is(err, ErrVerificationLimitExceeded) {
		t.Fatalf("VerifyOTP = %v, want ErrVerificationLimitExceeded", err)
	}
	if f.gateway.verifies != 0 {
		t.Error("gateway consulted past the ceiling")
	}
}

func TestVerifyOTPUnknownDeviceAtBindLimit(t *testing.T) {
	f := newOTPFixture(freshOTPUser())
	f.devices.Upsert(context.Background(), &models.Device{
		DeviceID: "d-old", UniqueID: "imei-old", AppUserID: "user-1", IsActive: true,
	})

	_, err := f.svc.VerifyOTP(context.Background(), "9876543210", "+91", "123456", testRegistration())
	if !errors.Is(err, ErrDeviceLimitExceeded) {
		t.Fatalf("VerifyOTP = %v, want ErrDeviceLimitExceeded", err)
	}
}

func TestVerifyOTPUnknownUser(t *testing.T) {
	f := newOTPFixture()
	_, err := f.svc.VerifyOTP(context.Background(), "9876543210", "+91", "123456", testRegistration())
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("VerifyOTP = %v, want ErrUserNotFound", err)
	}
}
