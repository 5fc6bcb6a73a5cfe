package scylla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"onboarding-service/internal/config"
	"onboarding-service/internal/util"
)

// PreparedStatements holds the statements used by the repositories.
type PreparedStatements struct {
	CreateUser          *gocql.Query
	CreateContactToUser *gocql.Query
	GetUserByID         *gocql.Query
	GetUserByContact    *gocql.Query
	UpdateUser          *gocql.Query
	UpdateUserStatus    *gocql.Query
	SetOTPGeneration    *gocql.Query
	SetOTPRefNo         *gocql.Query

	CreateInvestor      *gocql.Query
	CreatePanToUser     *gocql.Query
	GetInvestorsByUser  *gocql.Query
	GetPanOwner         *gocql.Query
	UpdateInvestor      *gocql.Query

	CreateDevice          *gocql.Query
	CreateDeviceByUser    *gocql.Query
	GetDeviceByUniqueID   *gocql.Query
	GetDevicesByUser      *gocql.Query
	UpdateDeviceBinding   *gocql.Query
	UpdateDeviceBiometric *gocql.Query

	CreateIdcom          *gocql.Query
	GetIdcomByAuthCode   *gocql.Query
	GetIdcomByUserAndCode *gocql.Query

	AppendMpinHistory *gocql.Query
	GetMpinHistory    *gocql.Query

	CreateUamRecord  *gocql.Query
	GetLatestUam     *gocql.Query
	UnsetUamLatest   *gocql.Query

	CreateTwoFa   *gocql.Query
	GetTwoFa      *gocql.Query
	MarkTwoFaUsed *gocql.Query

	CreateNominee      *gocql.Query
	GetNomineesByAccount *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.RWMutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.MaxPreparedStmts = 1000
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if !cfg.IsDevelopment() {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 "/root/certs/ca.pem",
			CertPath:               "/root/certs/server.pem",
			KeyPath:                "/root/certs/server.key",
			EnableHostVerification: true,
		}
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized with prepared statements",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.CreateUser = s.Session.Query(`
        INSERT INTO app_users (
            user_bucket, user_id, user_code, contact_number, country_code, contact_hash,
            password_hash, mpin_hash, mpin_setup, status, status_remarks,
            login_retry_count, last_login_at,
            otp_retry_count, otp_verification_count, otp_expiry, otp_generation, otp_ref_no,
            txn_otp_retry_count, txn_otp_verification_count, txn_otp_expiry, txn_otp_generation, txn_otp_ref_no,
            bos_code, demat_acc_number, demat_dp_id, roles, mpin_reset_at,
            is_active, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.CreateContactToUser = s.Session.Query(`
        INSERT INTO contact_to_user (contact_hash, user_bucket, user_id, created_at)
        VALUES (?, ?, ?, ?) IF NOT EXISTS`)

	prepared.GetUserByID = s.Session.Query(`
        SELECT user_bucket, user_id, user_code, contact_number, country_code, contact_hash,
            password_hash, mpin_hash, mpin_setup, status, status_remarks,
            login_retry_count, last_login_at,
            otp_retry_count, otp_verification_count, otp_expiry, otp_generation, otp_ref_no,
            txn_otp_retry_count, txn_otp_verification_count, txn_otp_expiry, txn_otp_generation, txn_otp_ref_no,
            bos_code, demat_acc_number, demat_dp_id, roles, mpin_reset_at,
            is_active, created_at, updated_at
        FROM app_users WHERE user_bucket = ? AND user_id = ?`)

	prepared.GetUserByContact = s.Session.Query(`
        SELECT user_bucket, user_id FROM contact_to_user WHERE contact_hash = ?`)

	prepared.UpdateUser = s.Session.Query(`
        UPDATE app_users SET user_code = ?, password_hash = ?, mpin_hash = ?, mpin_setup = ?,
            status = ?, status_remarks = ?, login_retry_count = ?, last_login_at = ?,
            otp_retry_count = ?, otp_verification_count = ?, otp_expiry = ?, otp_generation = ?, otp_ref_no = ?,
            txn_otp_retry_count = ?, txn_otp_verification_count = ?, txn_otp_expiry = ?, txn_otp_generation = ?, txn_otp_ref_no = ?,
            bos_code = ?, demat_acc_number = ?, demat_dp_id = ?, roles = ?, mpin_reset_at = ?,
            is_active = ?, updated_at = ?
        WHERE user_bucket = ? AND user_id = ?`)

	prepared.UpdateUserStatus = s.Session.Query(`
        UPDATE app_users SET status = ?, status_remarks = ?, is_active = ?, updated_at = ?
        WHERE user_bucket = ? AND user_id = ?`)

	prepared.SetOTPGeneration = s.Session.Query(`
        UPDATE app_users SET otp_generation = ?, otp_expiry = ?, otp_ref_no = ?, updated_at = ?
        WHERE user_bucket = ? AND user_id = ?`)

	prepared.CreateInvestor = s.Session.Query(`
        INSERT INTO investor_details (
            app_user_id, investor_id, pan_card_number, pan_encrypted, pan_key_id,
            date_of_birth, investor_type, identification_numbers, identification_types,
            address_id, is_active, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.CreatePanToUser = s.Session.Query(`
        INSERT INTO pan_to_user (pan_card_number, app_user_id, created_at)
        VALUES (?, ?, ?) IF NOT EXISTS`)

	prepared.GetInvestorsByUser = s.Session.Query(`
        SELECT app_user_id, investor_id, pan_card_number, pan_encrypted, pan_key_id,
            date_of_birth, investor_type, identification_numbers, identification_types,
            address_id, is_active, created_at, updated_at
        FROM investor_details WHERE app_user_id = ?`)

	prepared.GetPanOwner = s.Session.Query(`
        SELECT app_user_id FROM pan_to_user WHERE pan_card_number = ?`)

	prepared.UpdateInvestor = s.Session.Query(`
        UPDATE investor_details SET pan_card_number = ?, pan_encrypted = ?, pan_key_id = ?,
            date_of_birth = ?, investor_type = ?, identification_numbers = ?, identification_types = ?,
            address_id = ?, is_active = ?, updated_at = ?
        WHERE app_user_id = ? AND investor_id = ?`)

	prepared.CreateDevice = s.Session.Query(`
        INSERT INTO devices (
            unique_id, device_id, app_user_id, public_key, biometric_token, biometric_setup,
            mpin_setup, fingerprint, os_name, version_code, sdk_version, registered_date, is_active
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.CreateDeviceByUser = s.Session.Query(`
        INSERT INTO devices_by_user (
            app_user_id, unique_id, device_id, public_key, biometric_token, biometric_setup,
            mpin_setup, fingerprint, os_name, version_code, sdk_version, registered_date, is_active
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.GetDeviceByUniqueID = s.Session.Query(`
        SELECT unique_id, device_id, app_user_id, public_key, biometric_token, biometric_setup,
            mpin_setup, fingerprint, os_name, version_code, sdk_version, registered_date, is_active
        FROM devices WHERE unique_id = ?`)

	prepared.GetDevicesByUser = s.Session.Query(`
        SELECT app_user_id, unique_id, device_id, public_key, biometric_token, biometric_setup,
            mpin_setup, fingerprint, os_name, version_code, sdk_version, registered_date, is_active
        FROM devices_by_user WHERE app_user_id = ?`)

	prepared.UpdateDeviceBinding = s.Session.Query(`
        UPDATE devices SET app_user_id = ?, fingerprint = ?, is_active = ? WHERE unique_id = ?`)

	prepared.UpdateDeviceBiometric = s.Session.Query(`
        UPDATE devices SET public_key = ?, biometric_token = ?, biometric_setup = ? WHERE unique_id = ?`)

	prepared.CreateIdcom = s.Session.Query(`
        INSERT INTO idcom_details (
            auth_code, idcom_id, app_user_id, device_id, redirect_url,
            handle_callback_status, is_active, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.GetIdcomByAuthCode = s.Session.Query(`
        SELECT auth_code, idcom_id, app_user_id, device_id, redirect_url,
            handle_callback_status, is_active, created_at, updated_at
        FROM idcom_details WHERE auth_code = ?`)

	prepared.GetIdcomByUserAndCode = s.Session.Query(`
        SELECT auth_code, idcom_id, app_user_id, device_id, redirect_url,
            handle_callback_status, is_active, created_at, updated_at
        FROM idcom_details WHERE auth_code = ? AND app_user_id = ? ALLOW FILTERING`)

	prepared.AppendMpinHistory = s.Session.Query(`
        INSERT INTO mpin_history (app_user_id, created_at, history_id, mpin_hash)
        VALUES (?, ?, ?, ?)`)

	prepared.GetMpinHistory = s.Session.Query(`
        SELECT app_user_id, created_at, history_id, mpin_hash
        FROM mpin_history WHERE app_user_id = ? LIMIT ?`)

	prepared.CreateUamRecord = s.Session.Query(`
        INSERT INTO uam_integration (
            app_user_id, version, record_id, activity, employee_id, department,
            designation, is_latest, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.GetLatestUam = s.Session.Query(`
        SELECT app_user_id, version, record_id, activity, employee_id, department,
            designation, is_latest, created_at
        FROM uam_integration WHERE app_user_id = ? LIMIT 1`)

	prepared.UnsetUamLatest = s.Session.Query(`
        UPDATE uam_integration SET is_latest = false WHERE app_user_id = ? AND version = ?`)

	prepared.CreateTwoFa = s.Session.Query(`
        INSERT INTO transaction_twofa (
            txn_ref_no, account_id, channel, target_contact, gateway_ref_no,
            retry_count, verification_count, otp_verified, otp_expiry, otp_generation,
            cart_item_ids, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.GetTwoFa = s.Session.Query(`
        SELECT txn_ref_no, account_id, channel, target_contact, gateway_ref_no,
            retry_count, verification_count, otp_verified, otp_expiry, otp_generation,
            cart_item_ids, created_at, updated_at
        FROM transaction_twofa WHERE txn_ref_no = ?`)

	prepared.MarkTwoFaUsed = s.Session.Query(`
        UPDATE transaction_twofa SET otp_verified = true, verification_count = ?, updated_at = ?
        WHERE txn_ref_no = ? IF otp_verified = false`)

	prepared.CreateNominee = s.Session.Query(`
        INSERT INTO investor_nominees (
            account_id, nominee_id, app_user_id, nominee_app_user_id, relationship,
            share_percent, is_minor, guardian_name, is_active, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.GetNomineesByAccount = s.Session.Query(`
        SELECT account_id, nominee_id, app_user_id, nominee_app_user_id, relationship,
            share_percent, is_minor, guardian_name, is_active, created_at, updated_at
        FROM investor_nominees WHERE account_id = ?`)

	s.Prepared = prepared
	s.isPrepared = true

	util.Info("ScyllaDB prepared statements created")
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Query(stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

func (s *ScyllaClient) Batch(typ gocql.BatchType) *gocql.Batch {
	return s.Session.NewBatch(typ)
}

func (s *ScyllaClient) ExecuteBatch(batch *gocql.Batch) error {
	return s.Session.ExecuteBatch(batch)
}

func (s *ScyllaClient) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}

func (s *ScyllaClient) ExecuteWithRetry(query *gocql.Query, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := query.Exec(); err != nil {
			lastErr = err
			if i < maxRetries {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}

func (s *ScyllaClient) ScanWithRetry(query *gocql.Query, dest ...interface{}) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if err := query.Scan(dest...); err != nil {
			lastErr = err
			if i < 2 {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}

// ExecCAS runs a lightweight-transaction query and reports whether the
// conditional update was applied. Counter updates go through this path so
// two concurrent requests on the same row cannot both win.
func (s *ScyllaClient) ExecCAS(query *gocql.Query, dest ...interface{}) (bool, error) {
	applied, err := query.ScanCAS(dest...)
	if err != nil {
		return false, fmt.Errorf("conditional update failed: %w", err)
	}
	return applied, nil
}
