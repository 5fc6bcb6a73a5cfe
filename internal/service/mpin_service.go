package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"onboarding-service/internal/audit"
	"onboarding-service/internal/config"
	"onboarding-service/internal/hashing"
	"onboarding-service/internal/models"
	"onboarding-service/internal/notify"
	"onboarding-service/internal/repository/scylla"
	"onboarding-service/internal/util"
)

// MPINService enforces the secret policy: weak-pattern denial, reuse
// denial against the recent hash history, and the persistence side
// effects of an accepted change.
type MPINService struct {
	users   scylla.UserRepository
	history scylla.MpinHistoryRepository
	devices scylla.DeviceRepository
	hasher  *hashing.Hasher
	notify  notify.Dispatcher
	audit   audit.Recorder
	policy  config.PolicyConfig
}

func NewMPINService(
	users scylla.UserRepository,
	history scylla.MpinHistoryRepository,
	devices scylla.DeviceRepository,
	hasher *hashing.Hasher,
	dispatcher notify.Dispatcher,
	recorder audit.Recorder,
	policy config.PolicyConfig,
) *MPINService {
	return &MPINService{
		users:   users,
		history: history,
		devices: devices,
		hasher:  hasher,
		notify:  dispatcher,
		audit:   recorder,
		policy:  policy,
	}
}

// isWeakSecret rejects constant, ascending and descending digit runs.
// Runs before any storage read so a denylisted candidate never costs a
// history lookup.
func isWeakSecret(mpin string) bool {
	if len(mpin) == 0 {
		return true
	}
	constant, ascending, descending := true, true, true
	for i := 1; i < len(mpin); i++ {
		if mpin[i] != mpin[i-1] {
			constant = false
		}
		if mpin[i] != mpin[i-1]+1 {
			ascending = false
		}
		if mpin[i] != mpin[i-1]-1 {
			descending = false
		}
	}
	return constant || ascending || descending
}

func validMPINFormat(mpin string) bool {
	if len(mpin) != 4 {
		return false
	}
	for i := 0; i < len(mpin); i++ {
		if mpin[i] < '0' || mpin[i] > '9' {
			return false
		}
	}
	return true
}

// SetMPIN validates and installs a new MPIN for the user. Acceptance
// persists the hash, appends one history row, flips the setup flag on the
// user and device, records the reset timestamp, and raises a notification.
func (s *MPINService) SetMPIN(ctx context.Context, appUserID, deviceUniqueID, mpin string) error {
	if !validMPINFormat(mpin) {
		return fmt.Errorf("mpin must be 4 digits: %w", ErrBadRequest)
	}
	if isWeakSecret(mpin) {
		return ErrWeakSecret
	}

	user, err := s.users.GetByID(ctx, appUserID)
	if err != nil {
		if err == scylla.ErrNotFound {
			return ErrUserNotFound
		}
		return err
	}
	if !user.IsActive {
		return ErrUserInactive
	}

	recent, err := s.history.Recent(ctx, appUserID, s.policy.MPINHistoryDepth)
	if err != nil {
		return err
	}
	for _, rec := range recent {
		prior, err := hashing.DecodeResult(rec.MPINHash)
		if err != nil {
			util.Warn("skipping undecodable mpin history row",
				zap.String("app_user_id", appUserID), zap.Error(err))
			continue
		}
		match, err := s.hasher.VerifyMPIN(mpin, prior)
		if err != nil {
			return fmt.Errorf("mpin history comparison failed: %w", err)
		}
		if match {
			return ErrSecretReuse
		}
	}

	result, err := s.hasher.HashMPIN(mpin)
	if err != nil {
		return fmt.Errorf("failed to hash mpin: %w", err)
	}
	encoded, err := result.Encode()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.users.SetMPIN(ctx, appUserID, encoded, now); err != nil {
		return err
	}
	if err := s.history.Append(ctx, &models.MpinHistory{
		AppUserID: appUserID,
		HistoryID: uuid.NewString(),
		MPINHash:  encoded,
		CreatedAt: now,
	}); err != nil {
		return err
	}
	if deviceUniqueID != "" {
		if err := s.devices.SetMPINFlag(ctx, deviceUniqueID, appUserID, true); err != nil {
			return err
		}
	}

	s.audit.Record(ctx, &models.AuditEvent{
		AppUserID: appUserID,
		EventType: models.EventMPINChanged,
		Outcome:   "success",
	})
	s.notify.Dispatch(ctx, &notify.Event{
		EventType:     notify.EventMPINChanged,
		AppUserID:     appUserID,
		ContactNumber: user.ContactNumber,
		Channel:       "sms",
		TemplateID:    "mpin_changed",
	})

	util.Info("mpin updated", zap.String("app_user_id", appUserID))
	return nil
}

// VerifyMPIN checks a candidate against the stored hash.
func (s *MPINService) VerifyMPIN(ctx context.Context, appUserID, mpin string) (bool, error) {
	user, err := s.users.GetByID(ctx, appUserID)
	if err != nil {
		if err == scylla.ErrNotFound {
			return false, ErrUserNotFound
		}
		return false, err
	}
	if !user.MPINSetup || user.MPINHash == "" {
		return false, fmt.Errorf("mpin not set up: %w", ErrBadRequest)
	}

	stored, err := hashing.DecodeResult(user.MPINHash)
	if err != nil {
		return false, err
	}
	return s.hasher.VerifyMPIN(mpin, stored)
}
