package scylla

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocql/gocql"

	"onboarding-service/internal/models"
)

// DeviceRepository stores device bindings in two tables: devices keyed by
// uniqueId for callback-time lookup, devices_by_user for the bind-limit
// count. Writes that touch both go through a logged batch.
type DeviceRepository interface {
	Upsert(ctx context.Context, device *models.Device) error
	GetByUniqueID(ctx context.Context, uniqueID string) (*models.Device, error)
	GetActiveByUser(ctx context.Context, appUserID string) ([]*models.Device, error)
	Rebind(ctx context.Context, device *models.Device, previousOwnerID string) error
	DeactivateForUser(ctx context.Context, appUserID, uniqueID string) error
	SetBiometric(ctx context.Context, uniqueID, appUserID, publicKey, biometricToken string) error
	SetBiometricFlag(ctx context.Context, uniqueID, appUserID string, enabled bool) error
	SetMPINFlag(ctx context.Context, uniqueID, appUserID string, mpinSetup bool) error
}

type deviceRepository struct {
	client *ScyllaClient
}

func NewDeviceRepository(client *ScyllaClient) DeviceRepository {
	return &deviceRepository{client: client}
}

func deviceValues(d *models.Device, userFirst bool) []interface{} {
	if userFirst {
		return []interface{}{
			d.AppUserID, d.UniqueID, d.DeviceID, d.PublicKey, d.BiometricToken, d.BiometricSetup,
			d.MPINSetup, d.Fingerprint, d.OSName, d.VersionCode, d.SDKVersion, d.RegisteredDate, d.IsActive,
		}
	}
	return []interface{}{
		d.UniqueID, d.DeviceID, d.AppUserID, d.PublicKey, d.BiometricToken, d.BiometricSetup,
		d.MPINSetup, d.Fingerprint, d.OSName, d.VersionCode, d.SDKVersion, d.RegisteredDate, d.IsActive,
	}
}

func (r *deviceRepository) Upsert(ctx context.Context, device *models.Device) error {
	batch := r.client.Batch(gocql.LoggedBatch)
	batch.WithContext(ctx)
	batch.Query(r.client.Prepared.CreateDevice.Statement(), deviceValues(device, false)...)
	batch.Query(r.client.Prepared.CreateDeviceByUser.Statement(), deviceValues(device, true)...)

	if err := r.client.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

func (r *deviceRepository) GetByUniqueID(ctx context.Context, uniqueID string) (*models.Device, error) {
	var d models.Device
	q := r.client.Prepared.GetDeviceByUniqueID.Bind(uniqueID).WithContext(ctx)
	err := r.client.ScanWithRetry(q,
		&d.UniqueID, &d.DeviceID, &d.AppUserID, &d.PublicKey, &d.BiometricToken, &d.BiometricSetup,
		&d.MPINSetup, &d.Fingerprint, &d.OSName, &d.VersionCode, &d.SDKVersion, &d.RegisteredDate, &d.IsActive,
	)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("device lookup failed: %w", err)
	}
	return &d, nil
}

func (r *deviceRepository) GetActiveByUser(ctx context.Context, appUserID string) ([]*models.Device, error) {
	iter := r.client.Prepared.GetDevicesByUser.Bind(appUserID).WithContext(ctx).Iter()

	var out []*models.Device
	for {
		var d models.Device
		if !iter.Scan(
			&d.AppUserID, &d.UniqueID, &d.DeviceID, &d.PublicKey, &d.BiometricToken, &d.BiometricSetup,
			&d.MPINSetup, &d.Fingerprint, &d.OSName, &d.VersionCode, &d.SDKVersion, &d.RegisteredDate, &d.IsActive,
		) {
			break
		}
		if d.IsActive {
			cp := d
			out = append(out, &cp)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return out, nil
}

// Rebind moves a uniqueId to a new owner. The prior owner's row in
// devices_by_user is deactivated in the same batch as the new binding so
// the device never appears active under two users.
func (r *deviceRepository) Rebind(ctx context.Context, device *models.Device, previousOwnerID string) error {
	batch := r.client.Batch(gocql.LoggedBatch)
	batch.WithContext(ctx)
	batch.Query(r.client.Prepared.CreateDevice.Statement(), deviceValues(device, false)...)
	batch.Query(r.client.Prepared.CreateDeviceByUser.Statement(), deviceValues(device, true)...)
	if previousOwnerID != "" && previousOwnerID != device.AppUserID {
		batch.Query(`UPDATE devices_by_user SET is_active = false WHERE app_user_id = ? AND unique_id = ?`,
			previousOwnerID, device.UniqueID)
	}

	if err := r.client.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to rebind device: %w", err)
	}
	return nil
}

func (r *deviceRepository) DeactivateForUser(ctx context.Context, appUserID, uniqueID string) error {
	batch := r.client.Batch(gocql.LoggedBatch)
	batch.WithContext(ctx)
	batch.Query(`UPDATE devices SET is_active = false WHERE unique_id = ?`, uniqueID)
	batch.Query(`UPDATE devices_by_user SET is_active = false WHERE app_user_id = ? AND unique_id = ?`,
		appUserID, uniqueID)

	if err := r.client.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to deactivate device: %w", err)
	}
	return nil
}

func (r *deviceRepository) SetBiometric(ctx context.Context, uniqueID, appUserID, publicKey, biometricToken string) error {
	batch := r.client.Batch(gocql.LoggedBatch)
	batch.WithContext(ctx)
	batch.Query(`UPDATE devices SET public_key = ?, biometric_token = ?, biometric_setup = true WHERE unique_id = ?`,
		publicKey, biometricToken, uniqueID)
	batch.Query(`UPDATE devices_by_user SET public_key = ?, biometric_token = ?, biometric_setup = true WHERE app_user_id = ? AND unique_id = ?`,
		publicKey, biometricToken, appUserID, uniqueID)

	if err := r.client.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to set biometric: %w", err)
	}
	return nil
}

// SetBiometricFlag flips only the setup flag; the token survives so a
// re-enable can reuse it.
func (r *deviceRepository) SetBiometricFlag(ctx context.Context, uniqueID, appUserID string, enabled bool) error {
	batch := r.client.Batch(gocql.LoggedBatch)
	batch.WithContext(ctx)
	batch.Query(`UPDATE devices SET biometric_setup = ? WHERE unique_id = ?`, enabled, uniqueID)
	batch.Query(`UPDATE devices_by_user SET biometric_setup = ? WHERE app_user_id = ? AND unique_id = ?`,
		enabled, appUserID, uniqueID)

	if err := r.client.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to set biometric flag: %w", err)
	}
	return nil
}

func (r *deviceRepository) SetMPINFlag(ctx context.Context, uniqueID, appUserID string, mpinSetup bool) error {
	batch := r.client.Batch(gocql.LoggedBatch)
	batch.WithContext(ctx)
	batch.Query(`UPDATE devices SET mpin_setup = ? WHERE unique_id = ?`, mpinSetup, uniqueID)
	batch.Query(`UPDATE devices_by_user SET mpin_setup = ? WHERE app_user_id = ? AND unique_id = ?`,
		mpinSetup, appUserID, uniqueID)

	if err := r.client.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to set device mpin flag: %w", err)
	}
	return nil
}
