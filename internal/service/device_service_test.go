package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"onboarding-service/internal/audit"
	"onboarding-service/internal/models"
	"onboarding-service/internal/notify"
)

func newTestDeviceService(devices *fakeDeviceRepo, users *fakeUserRepo) *DeviceService {
	return NewDeviceService(devices, users, testEncryption(),
		notify.NopDispatcher{}, audit.NopRecorder{}, testConfig().Policy)
}

func TestBindOnVerifyKeepsExactlyOneActiveDevice(t *testing.T) {
	devices := newFakeDeviceRepo(
		&models.Device{DeviceID: "d-1", UniqueID: "imei-1", AppUserID: "user-1", IsActive: true},
	)
	svc := newTestDeviceService(devices, newFakeUserRepo())

	// Re-presenting the already-bound device is always allowed.
	device, err := svc.BindOnVerify(context.Background(), "user-1", testRegistration())
	if err != nil {
		t.Fatalf("BindOnVerify: %v", err)
	}
	if device.DeviceID != "d-1" {
		t.Errorf("device id = %s, want reused d-1", device.DeviceID)
	}

	active, _ := devices.GetActiveByUser(context.Background(), "user-1")
	if len(active) != 1 {
		t.Errorf("active devices = %d, want 1", len(active))
	}
}

func TestBindOnVerifyRejectsUnknownDeviceAtLimit(t *testing.T) {
	devices := newFakeDeviceRepo(
		&models.Device{DeviceID: "d-1", UniqueID: "imei-old", AppUserID: "user-1", IsActive: true},
	)
	svc := newTestDeviceService(devices, newFakeUserRepo())

	_, err := svc.BindOnVerify(context.Background(), "user-1", testRegistration())
	if !errors.Is(err, ErrDeviceLimitExceeded) {
		t.Fatalf("BindOnVerify = %v, want ErrDeviceLimitExceeded", err)
	}
}

func TestBindOnVerifyStealsDeviceFromPreviousOwner(t *testing.T) {
	registered := time.Now().UTC().Add(-48 * time.Hour)
	devices := newFakeDeviceRepo(
		&models.Device{
			DeviceID: "d-1", UniqueID: "imei-1", AppUserID: "other-user",
			BiometricToken: "bio-1", BiometricSetup: true,
			RegisteredDate: registered, IsActive: true,
		},
	)
	svc := newTestDeviceService(devices, newFakeUserRepo())

	device, err := svc.BindOnVerify(context.Background(), "user-1", testRegistration())
	if err != nil {
		t.Fatalf("BindOnVerify: %v", err)
	}
	if device.AppUserID != "user-1" {
		t.Errorf("owner = %s, want user-1", device.AppUserID)
	}
	// Identity and biometric state survive the rebind.
	if device.DeviceID != "d-1" || device.BiometricToken != "bio-1" || !device.BiometricSetup {
		t.Errorf("rebind dropped device state: %+v", device)
	}
	if !device.RegisteredDate.Equal(registered) {
		t.Error("registration date rewritten on rebind")
	}
}

func TestBindOnVerifyRequiresIdentity(t *testing.T) {
	svc := newTestDeviceService(newFakeDeviceRepo(), newFakeUserRepo())
	if _, err := svc.BindOnVerify(context.Background(), "user-1", nil); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("nil registration = %v, want ErrBadRequest", err)
	}
	if _, err := svc.BindOnVerify(context.Background(), "user-1", &DeviceRegistration{}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("empty uniqueId = %v, want ErrBadRequest", err)
	}
}

func TestDeviceBindRejectsForeignDevice(t *testing.T) {
	devices := newFakeDeviceRepo(
		&models.Device{DeviceID: "d-1", UniqueID: "imei-1", AppUserID: "other-user", IsActive: true},
	)
	svc := newTestDeviceService(devices, newFakeUserRepo())

	if err := svc.DeviceBind(context.Background(), "user-1", "imei-1"); !errors.Is(err, ErrDeviceNotOwned) {
		t.Fatalf("DeviceBind = %v, want ErrDeviceNotOwned", err)
	}
	if err := svc.DeviceBind(context.Background(), "user-1", "imei-ghost"); !errors.Is(err, ErrDeviceNotOwned) {
		t.Fatalf("DeviceBind(ghost) = %v, want ErrDeviceNotOwned", err)
	}
}

func TestDeviceBindRefreshesFingerprint(t *testing.T) {
	devices := newFakeDeviceRepo(
		&models.Device{DeviceID: "d-1", UniqueID: "imei-1", AppUserID: "user-1", OSName: "android", IsActive: true},
	)
	svc := newTestDeviceService(devices, newFakeUserRepo())

	if err := svc.DeviceBind(context.Background(), "user-1", "imei-1"); err != nil {
		t.Fatalf("DeviceBind: %v", err)
	}
	d, _ := devices.GetByUniqueID(context.Background(), "imei-1")
	if d.Fingerprint == "" {
		t.Error("fingerprint not stored")
	}
}

func TestSetupBiometricReusesTokenForSameKey(t *testing.T) {
	devices := newFakeDeviceRepo(
		&models.Device{DeviceID: "d-1", UniqueID: "imei-1", AppUserID: "user-1", PublicKey: "pk-1", IsActive: true},
	)
	svc := newTestDeviceService(devices, newFakeUserRepo())

	first, err := svc.SetupBiometric(context.Background(), "user-1", "imei-1", "pk-1")
	if err != nil {
		t.Fatalf("SetupBiometric: %v", err)
	}
	if first == "" {
		t.Fatal("empty biometric token")
	}

	second, err := svc.SetupBiometric(context.Background(), "user-1", "imei-1", "pk-1")
	if err != nil {
		t.Fatalf("SetupBiometric again: %v", err)
	}
	if second != first {
		t.Error("token rotated despite unchanged key")
	}

	third, err := svc.SetupBiometric(context.Background(), "user-1", "imei-1", "pk-2")
	if err != nil {
		t.Fatalf("SetupBiometric new key: %v", err)
	}
	if third == first {
		t.Error("token not rotated on key change")
	}
}

func TestDisableBiometricKeepsToken(t *testing.T) {
	devices := newFakeDeviceRepo(
		&models.Device{DeviceID: "d-1", UniqueID: "imei-1", AppUserID: "user-1", PublicKey: "pk-1", IsActive: true},
	)
	svc := newTestDeviceService(devices, newFakeUserRepo())

	tokenValue, err := svc.SetupBiometric(context.Background(), "user-1", "imei-1", "pk-1")
	if err != nil {
		t.Fatalf("SetupBiometric: %v", err)
	}
	if err := svc.DisableBiometric(context.Background(), "user-1", "imei-1"); err != nil {
		t.Fatalf("DisableBiometric: %v", err)
	}

	d, _ := devices.GetByUniqueID(context.Background(), "imei-1")
	if d.BiometricSetup {
		t.Error("flag still set")
	}
	if d.BiometricToken != tokenValue {
		t.Error("token dropped on disable; re-enable should reuse it")
	}

	reissued, err := svc.SetupBiometric(context.Background(), "user-1", "imei-1", "pk-1")
	if err != nil {
		t.Fatalf("re-enable: %v", err)
	}
	if reissued != tokenValue {
		t.Error("re-enable minted a fresh token")
	}
}
