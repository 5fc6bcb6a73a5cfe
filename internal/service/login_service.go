package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"onboarding-service/internal/audit"
	"onboarding-service/internal/config"
	"onboarding-service/internal/hashing"
	"onboarding-service/internal/models"
	"onboarding-service/internal/notify"
	"onboarding-service/internal/repository/redis"
	"onboarding-service/internal/repository/scylla"
	"onboarding-service/internal/token"
	"onboarding-service/internal/util"
)

const consumerLoginWindow = 24 * time.Hour

// LoginResult is the issued token pair plus the user the caller
// authenticated as.
type LoginResult struct {
	AppUserID        string
	Status           models.AppUserStatus
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// LoginService governs login attempts under two policies. The consumer
// policy is a rolling 24-hour attempt window that never locks the
// account; the internal policy is an absolute counter that locks at the
// configured ceiling and appends a UAM lock audit row. Which policy
// applies is the caller's choice, not derived from user attributes.
type LoginService struct {
	users    scylla.UserRepository
	uam      scylla.UamRepository
	sessions redis.SessionCache
	tokens   *token.Manager
	hasher   *hashing.Hasher
	notify   notify.Dispatcher
	audit    audit.Recorder
	policy   config.PolicyConfig
	adAuth   bool
}

func NewLoginService(
	users scylla.UserRepository,
	uam scylla.UamRepository,
	sessions redis.SessionCache,
	tokens *token.Manager,
	hasher *hashing.Hasher,
	dispatcher notify.Dispatcher,
	recorder audit.Recorder,
	cfg *config.Config,
) *LoginService {
	return &LoginService{
		users:    users,
		uam:      uam,
		sessions: sessions,
		tokens:   tokens,
		hasher:   hasher,
		notify:   dispatcher,
		audit:    recorder,
		policy:   cfg.Policy,
		adAuth:   cfg.Gateway.ADAuthenticationEnabled,
	}
}

// registerConsumerAttempt applies the rolling-window policy. Counter moves
// are conditional on the previously read value so concurrent logins
// cannot both slip under the ceiling.
func (s *LoginService) registerConsumerAttempt(ctx context.Context, user *models.AppUser) error {
	now := time.Now().UTC()

	if user.LastLoginAt == nil {
		if err := s.users.CASLoginRetryCount(ctx, user.UserID, user.LoginRetryCount, 1); err != nil {
			return err
		}
		return s.users.SetLoginWindow(ctx, user.UserID, now)
	}

	if now.Sub(*user.LastLoginAt) < consumerLoginWindow {
		next := user.LoginRetryCount + 1
		if err := s.users.CASLoginRetryCount(ctx, user.UserID, user.LoginRetryCount, next); err != nil {
			return err
		}
		if next >= s.policy.MaxDailyLoginAttempts {
			return fmt.Errorf("%d attempts in window: %w", next, ErrAttemptsExceededDaily)
		}
		return nil
	}

	// Window elapsed: the counter resets and a fresh window opens.
	if err := s.users.CASLoginRetryCount(ctx, user.UserID, user.LoginRetryCount, 0); err != nil {
		return err
	}
	return s.users.SetLoginWindow(ctx, user.UserID, now)
}

// registerInternalAttempt applies the absolute-counter policy and locks
// the account when the ceiling is reached.
func (s *LoginService) registerInternalAttempt(ctx context.Context, user *models.AppUser) error {
	next := user.LoginRetryCount + 1
	if err := s.users.CASLoginRetryCount(ctx, user.UserID, user.LoginRetryCount, next); err != nil {
		return err
	}
	if next >= s.policy.MaxLoginAttempts {
		return s.lockAccount(ctx, user)
	}
	return nil
}

// lockAccount deactivates the user and appends the UAM lock row. The lock
// always lands; a missing latest UAM record still locks but surfaces
// ErrAuditTrailMissing so the caller sees the inconsistent trail.
func (s *LoginService) lockAccount(ctx context.Context, user *models.AppUser) error {
	if err := s.users.UpdateStatus(ctx, user.UserID, models.StatusLocked, "login retry limit reached", false); err != nil {
		return err
	}
	if err := s.sessions.RevokeAllForUser(ctx, user.UserID); err != nil {
		util.Warn("failed to revoke sessions on lock",
			zap.String("app_user_id", user.UserID), zap.Error(err))
	}

	s.audit.Record(ctx, &models.AuditEvent{
		AppUserID: user.UserID,
		EventType: models.EventAccountLocked,
		Outcome:   "locked",
	})
	s.notify.Dispatch(ctx, &notify.Event{
		EventType:     notify.EventAccountLocked,
		AppUserID:     user.UserID,
		ContactNumber: user.ContactNumber,
		Channel:       "sms",
		TemplateID:    "account_locked",
	})

	latest, err := s.uam.GetLatest(ctx, user.UserID)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return fmt.Errorf("account locked: %w", ErrAuditTrailMissing)
		}
		return fmt.Errorf("account locked, uam read failed: %w", err)
	}

	locked := latest.MarkAsLocked()
	locked.RecordID = uuid.NewString()
	locked.CreatedAt = time.Now().UTC()
	if err := s.uam.Append(ctx, &locked); err != nil {
		return fmt.Errorf("account locked, uam append failed: %w", err)
	}
	return ErrAccountLocked
}

func (s *LoginService) issue(ctx context.Context, user *models.AppUser, deviceID string) (*LoginResult, error) {
	pair, err := s.tokens.IssuePair(user.UserID, deviceID, models.RoleClient)
	if err != nil {
		return nil, err
	}
	err = s.sessions.Store(ctx, pair.RefreshTokenID, &redis.Session{
		AppUserID: user.UserID,
		DeviceID:  deviceID,
		Role:      models.RoleClient,
		IssuedAt:  time.Now().UTC(),
	}, s.tokens.RefreshTTL())
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AppUserID:        user.UserID,
		Status:           user.Status,
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}, nil
}

// Login authenticates with MPIN under the policy selected by internalUser.
func (s *LoginService) Login(ctx context.Context, appUserID, deviceID, secret string, internalUser bool) (*LoginResult, error) {
	user, err := s.users.GetByID(ctx, appUserID)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.Status == models.StatusLocked {
		return nil, ErrAccountLocked
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	if internalUser {
		if err := s.registerInternalAttempt(ctx, user); err != nil {
			return nil, err
		}
	} else {
		if err := s.registerConsumerAttempt(ctx, user); err != nil {
			return nil, err
		}
	}

	ok, err := s.verifySecret(user, secret, internalUser)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.audit.Record(ctx, &models.AuditEvent{
			AppUserID: user.UserID,
			EventType: models.EventLoginFailed,
			DeviceID:  deviceID,
			Outcome:   "rejected",
		})
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if internalUser {
		if err := s.users.RecordLogin(ctx, user.UserID, now); err != nil {
			return nil, err
		}
	} else {
		// Consumer counter tracks logins per window, so success only
		// refreshes the timestamp.
		if err := s.users.SetLoginWindow(ctx, user.UserID, now); err != nil {
			return nil, err
		}
	}

	return s.issue(ctx, user, deviceID)
}

func (s *LoginService) verifySecret(user *models.AppUser, secret string, internalUser bool) (bool, error) {
	if internalUser && s.adAuth {
		if user.PasswordHash == "" {
			return false, fmt.Errorf("password not provisioned: %w", ErrBadRequest)
		}
		stored, err := hashing.DecodeResult(user.PasswordHash)
		if err != nil {
			return false, err
		}
		return s.hasher.VerifyPassword(secret, stored)
	}

	if !user.MPINSetup || user.MPINHash == "" {
		return false, fmt.Errorf("mpin not set up: %w", ErrBadRequest)
	}
	stored, err := hashing.DecodeResult(user.MPINHash)
	if err != nil {
		return false, err
	}
	return s.hasher.VerifyMPIN(secret, stored)
}

// Refresh rotates a refresh token: the old session entry is revoked and a
// fresh pair issued against the cached binding.
func (s *LoginService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.tokens.Parse(refreshToken)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.Get(ctx, claims.TokenID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.AppUserID != claims.AppUserID {
		return nil, token.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, claims.AppUserID)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.Status == models.StatusLocked || !user.IsActive {
		return nil, ErrAccountLocked
	}

	if err := s.sessions.Revoke(ctx, claims.TokenID); err != nil {
		return nil, err
	}
	return s.issue(ctx, user, session.DeviceID)
}
