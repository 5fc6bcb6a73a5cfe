package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"onboarding-service/internal/audit"
	"onboarding-service/internal/config"
	"onboarding-service/internal/encryption"
	"onboarding-service/internal/gateway"
	"onboarding-service/internal/models"
	"onboarding-service/internal/notify"
	"onboarding-service/internal/repository/redis"
	"onboarding-service/internal/repository/scylla"
	"onboarding-service/internal/token"
	"onboarding-service/internal/util"
)

// VerifyOTPResult carries the outcome of a successful verification: the
// user, the bound device and a fresh token pair.
type VerifyOTPResult struct {
	AppUserID        string
	Status           models.AppUserStatus
	DeviceID         string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// OTPService runs the registration/login OTP lifecycle keyed by
// (contactNumber, countryCode). Counters move through conditional writes;
// gateway failures roll the just-taken increment back so a failed send
// never consumes the user's budget.
type OTPService struct {
	users      scylla.UserRepository
	gateway    gateway.OTPGateway
	cooldown   redis.OTPCooldownCache
	sessions   redis.SessionCache
	devices    *DeviceService
	tokens     *token.Manager
	encryption *encryption.EncryptionManager
	notify     notify.Dispatcher
	audit      audit.Recorder
	policy     config.PolicyConfig
}

func NewOTPService(
	users scylla.UserRepository,
	otpGateway gateway.OTPGateway,
	cooldown redis.OTPCooldownCache,
	sessions redis.SessionCache,
	devices *DeviceService,
	tokens *token.Manager,
	em *encryption.EncryptionManager,
	dispatcher notify.Dispatcher,
	recorder audit.Recorder,
	policy config.PolicyConfig,
) *OTPService {
	return &OTPService{
		users:      users,
		gateway:    otpGateway,
		cooldown:   cooldown,
		sessions:   sessions,
		devices:    devices,
		tokens:     tokens,
		encryption: em,
		notify:     dispatcher,
		audit:      recorder,
		policy:     policy,
	}
}

// validPhone accepts digits only: exactly 10 for +91, at most 12 for any
// other country code.
func validPhone(contactNumber, countryCode string) bool {
	if contactNumber == "" {
		return false
	}
	for i := 0; i < len(contactNumber); i++ {
		if contactNumber[i] < '0' || contactNumber[i] > '9' {
			return false
		}
	}
	if countryCode == "+91" {
		return len(contactNumber) == 10
	}
	return len(contactNumber) <= 12
}

func contactHash(contactNumber, countryCode string) string {
	sum := sha256.Sum256([]byte(countryCode + contactNumber))
	return hex.EncodeToString(sum[:])
}

func (s *OTPService) findUser(ctx context.Context, contactNumber, countryCode string) (*models.AppUser, error) {
	return s.users.GetByContactHash(ctx, contactHash(contactNumber, countryCode))
}

// createUser materializes a first-contact user with the default role set.
func (s *OTPService) createUser(ctx context.Context, contactNumber, countryCode string) (*models.AppUser, error) {
	now := time.Now().UTC()
	user := &models.AppUser{
		UserID:        uuid.NewString(),
		ContactNumber: contactNumber,
		CountryCode:   countryCode,
		ContactHash:   contactHash(contactNumber, countryCode),
		Status:        models.StatusRegistrationInitiated,
		Roles:         []string{models.RoleClient},
		IsActive:      true,
		CreatedAt:     now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	util.Info("user created on first otp request", zap.String("app_user_id", user.UserID))
	return user, nil
}

// resetCountersIfWindowElapsed clears both OTP counters once the lockout
// window since the last generation has passed.
func (s *OTPService) resetCountersIfWindowElapsed(ctx context.Context, user *models.AppUser) error {
	if user.OTPGeneration == nil {
		return nil
	}
	if time.Since(*user.OTPGeneration) < s.policy.OTPLockoutWindow {
		return nil
	}
	if user.OTPRetryCount == 0 && user.OTPVerificationCount == 0 {
		return nil
	}
	err := s.users.CASOTPCounters(ctx, user.UserID,
		user.OTPRetryCount, 0, user.OTPVerificationCount, 0)
	if err != nil {
		return err
	}
	user.OTPRetryCount = 0
	user.OTPVerificationCount = 0
	return nil
}

// GenerateOTP dispatches an OTP for a contact, creating the user on first
// sight.
func (s *OTPService) GenerateOTP(ctx context.Context, contactNumber, countryCode string) (string, error) {
	if !validPhone(contactNumber, countryCode) {
		return "", fmt.Errorf("invalid phone: %w", ErrBadRequest)
	}

	user, err := s.findUser(ctx, contactNumber, countryCode)
	if err != nil {
		if !errors.Is(err, scylla.ErrNotFound) {
			return "", err
		}
		user, err = s.createUser(ctx, contactNumber, countryCode)
		if err != nil {
			return "", err
		}
	}
	if !user.IsActive || user.Status == models.StatusLocked {
		return "", ErrUserInactive
	}

	if err := s.resetCountersIfWindowElapsed(ctx, user); err != nil {
		return "", err
	}
	if user.OTPRetryCount >= s.policy.OTPMaxRetryCount ||
		user.OTPVerificationCount >= s.policy.OTPMaxVerifyCount {
		return "", ErrRetryLimitExceeded
	}

	claimed, err := s.cooldown.Claim(ctx, "login", user.UserID, s.policy.OTPResendCooldown)
	if err != nil {
		return "", err
	}
	if !claimed {
		return "", ErrTooSoon
	}

	// Counter first, gateway second; a failed send rolls the counter back
	// and releases the cooldown claim.
	err = s.users.CASOTPCounters(ctx, user.UserID,
		user.OTPRetryCount, user.OTPRetryCount+1,
		user.OTPVerificationCount, user.OTPVerificationCount)
	if err != nil {
		_ = s.cooldown.Release(ctx, "login", user.UserID)
		return "", err
	}

	refNo, err := s.gateway.Send(ctx, "sms", countryCode+contactNumber)
	if err != nil {
		if casErr := s.users.CASOTPCounters(ctx, user.UserID,
			user.OTPRetryCount+1, user.OTPRetryCount,
			user.OTPVerificationCount, user.OTPVerificationCount); casErr != nil {
			util.Error("failed to roll back otp retry counter",
				zap.String("app_user_id", user.UserID), zap.Error(casErr))
		}
		_ = s.cooldown.Release(ctx, "login", user.UserID)
		if errors.Is(err, gateway.ErrGatewayTimeout) {
			return "", fmt.Errorf("otp dispatch: %w", ErrGatewayTimeout)
		}
		return "", err
	}

	now := time.Now().UTC()
	if err := s.users.SetOTPGeneration(ctx, user.UserID, refNo, now, now.Add(s.policy.OTPExpiry)); err != nil {
		return "", err
	}

	s.audit.Record(ctx, &models.AuditEvent{
		AppUserID: user.UserID,
		EventType: models.EventOTPGenerated,
		Outcome:   "sent",
	})
	return user.UserID, nil
}

// VerifyOTP validates the presented code and, on success, enforces the
// single-active-device invariant, binds the presented device and issues a
// token pair.
func (s *OTPService) VerifyOTP(ctx context.Context, contactNumber, countryCode, otp string, reg *DeviceRegistration) (*VerifyOTPResult, error) {
	if !validPhone(contactNumber, countryCode) {
		return nil, fmt.Errorf("invalid phone: %w", ErrBadRequest)
	}

	user, err := s.findUser(ctx, contactNumber, countryCode)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.IsActive || user.Status == models.StatusLocked {
		return nil, ErrUserInactive
	}

	if user.OTPVerificationCount+1 > s.policy.OTPMaxVerifyCount {
		return nil, ErrVerificationLimitExceeded
	}
	err = s.users.CASOTPCounters(ctx, user.UserID,
		user.OTPRetryCount, user.OTPRetryCount,
		user.OTPVerificationCount, user.OTPVerificationCount+1)
	if err != nil {
		return nil, err
	}
	verifyCount := user.OTPVerificationCount + 1

	if user.OTPExpiry == nil || time.Now().After(*user.OTPExpiry) {
		return nil, ErrExpired
	}

	valid, err := s.gateway.Verify(ctx, user.OTPRefNo, countryCode+contactNumber, otp)
	if err != nil {
		// Provider failure is symmetric to generation: the attempt is
		// handed back.
		if casErr := s.users.CASOTPCounters(ctx, user.UserID,
			user.OTPRetryCount, user.OTPRetryCount,
			verifyCount, verifyCount-1); casErr != nil {
			util.Error("failed to roll back otp verification counter",
				zap.String("app_user_id", user.UserID), zap.Error(casErr))
		}
		if errors.Is(err, gateway.ErrGatewayTimeout) {
			return nil, fmt.Errorf("otp verify: %w", ErrGatewayTimeout)
		}
		return nil, err
	}
	if !valid {
		s.audit.Record(ctx, &models.AuditEvent{
			AppUserID: user.UserID,
			EventType: models.EventOTPRejected,
			Outcome:   "rejected",
		})
		return nil, ErrOTPRejected
	}

	device, err := s.devices.BindOnVerify(ctx, user.UserID, reg)
	if err != nil {
		return nil, err
	}

	err = s.users.CASOTPCounters(ctx, user.UserID,
		user.OTPRetryCount, user.OTPRetryCount,
		verifyCount, 0)
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(user.UserID, device.DeviceID, models.RoleClient)
	if err != nil {
		return nil, err
	}
	err = s.sessions.Store(ctx, pair.RefreshTokenID, &redis.Session{
		AppUserID: user.UserID,
		DeviceID:  device.DeviceID,
		Role:      models.RoleClient,
		IssuedAt:  time.Now().UTC(),
	}, s.tokens.RefreshTTL())
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &models.AuditEvent{
		AppUserID: user.UserID,
		EventType: models.EventOTPVerified,
		DeviceID:  device.DeviceID,
		Outcome:   "success",
	})

	return &VerifyOTPResult{
		AppUserID:        user.UserID,
		Status:           user.Status,
		DeviceID:         device.DeviceID,
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}, nil
}
