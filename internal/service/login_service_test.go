package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"onboarding-service/internal/audit"
	"onboarding-service/internal/config"
	"onboarding-service/internal/hashing"
	"onboarding-service/internal/models"
	"onboarding-service/internal/notify"
	"onboarding-service/internal/repository/redis"
)

type loginFixture struct {
	users    *fakeUserRepo
	uam      *fakeUamRepo
	sessions *fakeSessions
	hasher   *hashing.Hasher
	svc      *LoginService
}

func newLoginFixture(t *testing.T, cfg *config.Config, users ...*models.AppUser) *loginFixture {
	t.Helper()
	f := &loginFixture{
		users:    newFakeUserRepo(users...),
		uam:      &fakeUamRepo{},
		sessions: newFakeSessions(),
		hasher:   testHasher(),
	}
	f.svc = NewLoginService(f.users, f.uam, f.sessions, testTokens(), f.hasher,
		notify.NopDispatcher{}, audit.NopRecorder{}, cfg)
	return f
}

func (f *loginFixture) installMPIN(t *testing.T, userID, mpin string) {
	t.Helper()
	result, err := f.hasher.HashMPIN(mpin)
	if err != nil {
		t.Fatalf("HashMPIN: %v", err)
	}
	encoded, err := result.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := f.users.SetMPIN(context.Background(), userID, encoded, time.Now().UTC()); err != nil {
		t.Fatalf("SetMPIN: %v", err)
	}
}

func TestConsumerLoginSucceedsAndMovesCounter(t *testing.T) {
	f := newLoginFixture(t, testConfig(), testUser(models.StatusActive))
	f.installMPIN(t, "user-1", "2580")

	result, err := f.svc.Login(context.Background(), "user-1", "dev-1", "2580", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Error("token pair not issued")
	}

	u := f.users.stored("user-1")
	if u.LoginRetryCount != 1 {
		t.Errorf("consumer counter = %d, want 1 (window attempts, not reset)", u.LoginRetryCount)
	}
	if u.LastLoginAt == nil {
		t.Error("window timestamp not set")
	}
	if len(f.sessions.sessions) != 1 {
		t.Errorf("sessions stored = %d, want 1", len(f.sessions.sessions))
	}
}

func TestConsumerLoginBlocksAtWindowCeilingWithoutLocking(t *testing.T) {
	user := testUser(models.StatusActive)
	user.LoginRetryCount = 5
	user.LastLoginAt = timePtr(time.Now().UTC().Add(-time.Hour))
	f := newLoginFixture(t, testConfig(), user)
	f.installMPIN(t, "user-1", "2580")

	_, err := f.svc.Login(context.Background(), "user-1", "dev-1", "2580", false)
	if !errors.Is(err, ErrAttemptsExceededDaily) {
		t.Fatalf("Login = %v, want ErrAttemptsExceededDaily", err)
	}

	u := f.users.stored("user-1")
	if u.Status == models.StatusLocked {
		t.Error("consumer policy must never lock the account")
	}
	if !u.IsActive {
		t.Error("consumer policy must not deactivate the account")
	}
}

func TestConsumerAttemptReachingCeilingIsRejected(t *testing.T) {
	user := testUser(models.StatusActive)
	user.LoginRetryCount = 4
	user.LastLoginAt = timePtr(time.Now().UTC().Add(-time.Hour))
	f := newLoginFixture(t, testConfig(), user)
	f.installMPIN(t, "user-1", "2580")

	// The attempt that raises the counter to the ceiling is itself
	// rejected, and it is still recorded.
	_, err := f.svc.Login(context.Background(), "user-1", "dev-1", "2580", false)
	if !errors.Is(err, ErrAttemptsExceededDaily) {
		t.Fatalf("Login = %v, want ErrAttemptsExceededDaily", err)
	}
	if got := f.users.stored("user-1").LoginRetryCount; got != 5 {
		t.Errorf("counter = %d, want 5", got)
	}
}

func TestConsumerCounterRestartsAfterWindowElapses(t *testing.T) {
	user := testUser(models.StatusActive)
	user.LoginRetryCount = 5
	user.LastLoginAt = timePtr(time.Now().UTC().Add(-25 * time.Hour))
	f := newLoginFixture(t, testConfig(), user)
	f.installMPIN(t, "user-1", "2580")

	if _, err := f.svc.Login(context.Background(), "user-1", "dev-1", "2580", false); err != nil {
		t.Fatalf("Login after window: %v", err)
	}
	// Rollover resets the counter; the login that opens the new window
	// does not consume its budget.
	if got := f.users.stored("user-1").LoginRetryCount; got != 0 {
		t.Errorf("counter after restart = %d, want 0", got)
	}
	if got := f.users.stored("user-1").LastLoginAt; got == nil || time.Since(*got) > time.Minute {
		t.Error("window marker not refreshed")
	}
}

func TestInternalLoginLocksAtExactlyMaxAttempts(t *testing.T) {
	user := testUser(models.StatusActive)
	user.LoginRetryCount = 4
	f := newLoginFixture(t, testConfig(), user)
	f.installMPIN(t, "user-1", "2580")
	f.uam.Append(context.Background(), &models.UamIntegration{
		AppUserID: "user-1", Version: 1, Activity: models.UamActivityCreate, IsLatest: true,
	})
	f.sessions.Store(context.Background(), "tok-1", sessionFor("user-1"), time.Hour)

	_, err := f.svc.Login(context.Background(), "user-1", "dev-1", "2580", true)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("5th attempt = %v, want ErrAccountLocked", err)
	}

	u := f.users.stored("user-1")
	if u.Status != models.StatusLocked || u.IsActive {
		t.Errorf("user not locked: status=%s active=%v", u.Status, u.IsActive)
	}
	if len(f.sessions.sessions) != 0 {
		t.Error("sessions not revoked on lock")
	}

	latest, err := f.uam.GetLatest(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if latest.Activity != models.UamActivityLock || latest.Version != 2 {
		t.Errorf("lock row = %+v, want LOCK at version 2", latest)
	}
}

func TestInternalLoginUnderCeilingDoesNotLock(t *testing.T) {
	user := testUser(models.StatusActive)
	user.LoginRetryCount = 3
	f := newLoginFixture(t, testConfig(), user)
	f.installMPIN(t, "user-1", "2580")

	if _, err := f.svc.Login(context.Background(), "user-1", "dev-1", "2580", true); err != nil {
		t.Fatalf("4th attempt: %v", err)
	}
	u := f.users.stored("user-1")
	if u.Status == models.StatusLocked {
		t.Error("locked below the ceiling")
	}
	if u.LoginRetryCount != 0 {
		t.Errorf("internal success must reset counter, got %d", u.LoginRetryCount)
	}
}

func TestLockSurfacesMissingAuditTrail(t *testing.T) {
	user := testUser(models.StatusActive)
	user.LoginRetryCount = 4
	f := newLoginFixture(t, testConfig(), user)
	f.installMPIN(t, "user-1", "2580")

	_, err := f.svc.Login(context.Background(), "user-1", "dev-1", "2580", true)
	if !errors.Is(err, ErrAuditTrailMissing) {
		t.Fatalf("lock without uam trail = %v, want ErrAuditTrailMissing", err)
	}
	// The lock itself still lands.
	if u := f.users.stored("user-1"); u.Status != models.StatusLocked {
		t.Errorf("status = %s, want locked", u.Status)
	}
}

func TestLoginWrongSecret(t *testing.T) {
	f := newLoginFixture(t, testConfig(), testUser(models.StatusActive))
	f.installMPIN(t, "user-1", "2580")

	_, err := f.svc.Login(context.Background(), "user-1", "dev-1", "9999", false)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login = %v, want ErrInvalidCredentials", err)
	}
	// The failed attempt still consumed window budget.
	if got := f.users.stored("user-1").LoginRetryCount; got != 1 {
		t.Errorf("counter = %d, want 1", got)
	}
}

func TestLoginLockedUserRejected(t *testing.T) {
	user := testUser(models.StatusLocked)
	f := newLoginFixture(t, testConfig(), user)

	_, err := f.svc.Login(context.Background(), "user-1", "dev-1", "2580", false)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("Login = %v, want ErrAccountLocked", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	f := newLoginFixture(t, testConfig(), testUser(models.StatusActive))
	f.installMPIN(t, "user-1", "2580")

	first, err := f.svc.Login(context.Background(), "user-1", "dev-1", "2580", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	second, err := f.svc.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Error("refresh token not rotated")
	}
	if len(f.sessions.sessions) != 1 {
		t.Errorf("sessions after rotation = %d, want 1", len(f.sessions.sessions))
	}

	// The consumed token's session is gone.
	if _, err := f.svc.Refresh(context.Background(), first.RefreshToken); err == nil {
		t.Error("replayed refresh token accepted")
	}
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	f := newLoginFixture(t, testConfig(), testUser(models.StatusActive))
	if _, err := f.svc.Refresh(context.Background(), "not-a-jwt"); err == nil {
		t.Fatal("garbage token accepted")
	}
}

func sessionFor(appUserID string) *redis.Session {
	return &redis.Session{AppUserID: appUserID, DeviceID: "dev-1", Role: models.RoleClient, IssuedAt: time.Now().UTC()}
}
