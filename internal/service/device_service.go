package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"onboarding-service/internal/audit"
	"onboarding-service/internal/config"
	"onboarding-service/internal/encryption"
	"onboarding-service/internal/models"
	"onboarding-service/internal/notify"
	"onboarding-service/internal/repository/scylla"
	"onboarding-service/internal/util"
)

// DeviceRegistration is the device identity presented by the client.
type DeviceRegistration struct {
	UniqueID    string
	PublicKey   string
	OSName      string
	VersionCode string
	SDKVersion  string
}

// DeviceService binds devices to users and manages biometric tokens. The
// single-active-device invariant is enforced lazily at OTP verification,
// not continuously.
type DeviceService struct {
	devices    scylla.DeviceRepository
	users      scylla.UserRepository
	encryption *encryption.EncryptionManager
	notify     notify.Dispatcher
	audit      audit.Recorder
	policy     config.PolicyConfig
}

func NewDeviceService(
	devices scylla.DeviceRepository,
	users scylla.UserRepository,
	em *encryption.EncryptionManager,
	dispatcher notify.Dispatcher,
	recorder audit.Recorder,
	policy config.PolicyConfig,
) *DeviceService {
	return &DeviceService{
		devices:    devices,
		users:      users,
		encryption: em,
		notify:     dispatcher,
		audit:      recorder,
		policy:     policy,
	}
}

// fingerprint seals the device identity tuple. Sealing, not hashing: the
// stored value is reversible for support tooling.
func (s *DeviceService) fingerprint(ctx context.Context, reg *DeviceRegistration) (string, error) {
	material := strings.Join([]string{reg.UniqueID, reg.OSName, reg.VersionCode, reg.SDKVersion}, "|")
	return s.encryption.SealField(ctx, material, "device-fingerprint")
}

// BindOnVerify (re)binds the presented device during OTP verification.
// An unknown device is rejected when the active set is already at the
// bind limit; otherwise every other active device is deactivated so
// exactly one remains.
func (s *DeviceService) BindOnVerify(ctx context.Context, appUserID string, reg *DeviceRegistration) (*models.Device, error) {
	if reg == nil || reg.UniqueID == "" {
		return nil, fmt.Errorf("device identity required: %w", ErrBadRequest)
	}

	active, err := s.devices.GetActiveByUser(ctx, appUserID)
	if err != nil {
		return nil, err
	}

	known := false
	for _, d := range active {
		if d.UniqueID == reg.UniqueID {
			known = true
			break
		}
	}
	if s.policy.EnforceBindLimitOnVerify && !known && len(active) >= s.policy.DeviceBindLimit {
		return nil, ErrDeviceLimitExceeded
	}

	for _, d := range active {
		if d.UniqueID == reg.UniqueID {
			continue
		}
		if err := s.devices.DeactivateForUser(ctx, appUserID, d.UniqueID); err != nil {
			return nil, err
		}
	}

	fp, err := s.fingerprint(ctx, reg)
	if err != nil {
		return nil, err
	}

	var previousOwner string
	existing, err := s.devices.GetByUniqueID(ctx, reg.UniqueID)
	if err != nil && !errors.Is(err, scylla.ErrNotFound) {
		return nil, err
	}

	device := &models.Device{
		DeviceID:       uuid.NewString(),
		UniqueID:       reg.UniqueID,
		AppUserID:      appUserID,
		PublicKey:      reg.PublicKey,
		Fingerprint:    fp,
		OSName:         reg.OSName,
		VersionCode:    reg.VersionCode,
		SDKVersion:     reg.SDKVersion,
		RegisteredDate: time.Now().UTC(),
		IsActive:       true,
	}
	if existing != nil {
		device.DeviceID = existing.DeviceID
		device.BiometricToken = existing.BiometricToken
		device.BiometricSetup = existing.BiometricSetup
		device.MPINSetup = existing.MPINSetup
		device.RegisteredDate = existing.RegisteredDate
		previousOwner = existing.AppUserID
	}

	if err := s.devices.Rebind(ctx, device, previousOwner); err != nil {
		return nil, err
	}

	s.notify.Dispatch(ctx, &notify.Event{
		EventType:  notify.EventDeviceBound,
		AppUserID:  appUserID,
		Channel:    "sms",
		TemplateID: "device_bound",
	})

	util.Info("device bound",
		zap.String("app_user_id", appUserID),
		zap.String("device_id", device.DeviceID))
	return device, nil
}

// DeviceBind recomputes and stores the binding fingerprint for a device
// the user already owns.
func (s *DeviceService) DeviceBind(ctx context.Context, appUserID, uniqueID string) error {
	device, err := s.devices.GetByUniqueID(ctx, uniqueID)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return ErrDeviceNotOwned
		}
		return err
	}
	if device.AppUserID != appUserID || !device.IsActive {
		return ErrDeviceNotOwned
	}

	fp, err := s.fingerprint(ctx, &DeviceRegistration{
		UniqueID:    device.UniqueID,
		OSName:      device.OSName,
		VersionCode: device.VersionCode,
		SDKVersion:  device.SDKVersion,
	})
	if err != nil {
		return err
	}

	device.Fingerprint = fp
	return s.devices.Upsert(ctx, device)
}

// SetupBiometric mints or reuses the biometric token. When the public
// key, uniqueId and a non-empty stored token all match the request the
// existing token is reused, so re-registration does not invalidate a
// still-valid session token.
func (s *DeviceService) SetupBiometric(ctx context.Context, appUserID, uniqueID, publicKey string) (string, error) {
	device, err := s.devices.GetByUniqueID(ctx, uniqueID)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return "", ErrDeviceNotOwned
		}
		return "", err
	}
	if device.AppUserID != appUserID {
		return "", ErrDeviceNotOwned
	}

	if device.PublicKey == publicKey && device.BiometricToken != "" {
		if err := s.devices.SetBiometricFlag(ctx, uniqueID, appUserID, true); err != nil {
			return "", err
		}
		return device.BiometricToken, nil
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to mint biometric token: %w", err)
	}
	tokenValue := hex.EncodeToString(buf)

	if err := s.devices.SetBiometric(ctx, uniqueID, appUserID, publicKey, tokenValue); err != nil {
		return "", err
	}
	return tokenValue, nil
}

// DisableBiometric flips the flag; the token stays for re-enable.
func (s *DeviceService) DisableBiometric(ctx context.Context, appUserID, uniqueID string) error {
	device, err := s.devices.GetByUniqueID(ctx, uniqueID)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return ErrDeviceNotOwned
		}
		return err
	}
	if device.AppUserID != appUserID {
		return ErrDeviceNotOwned
	}
	return s.devices.SetBiometricFlag(ctx, uniqueID, appUserID, false)
}
