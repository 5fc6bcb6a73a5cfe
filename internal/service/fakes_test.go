package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"onboarding-service/internal/config"
	"onboarding-service/internal/encryption"
	"onboarding-service/internal/gateway"
	"onboarding-service/internal/hashing"
	"onboarding-service/internal/models"
	"onboarding-service/internal/notify"
	"onboarding-service/internal/repository/redis"
	"onboarding-service/internal/repository/scylla"
	"onboarding-service/internal/token"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "development",
		Hashing: config.HashingConfig{
			Argon2MemoryCost:   1024,
			Argon2TimeCost:     1,
			Argon2Parallelism:  1,
			PepperRotationDays: 30,
		},
		JWT: config.JWTConfig{
			Secret:     "test-secret",
			Issuer:     "onboarding-service",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 24 * time.Hour,
		},
		Policy: config.PolicyConfig{
			MaxLoginAttempts:         5,
			MaxDailyLoginAttempts:    5,
			OTPMaxRetryCount:         3,
			OTPMaxVerifyCount:        3,
			OTPResendCooldown:        time.Minute,
			OTPLockoutWindow:         12 * time.Hour,
			OTPExpiry:                5 * time.Minute,
			MPINHistoryDepth:         3,
			DeviceBindLimit:          1,
			EnforceBindLimitOnVerify: true,
		},
		KMS: config.KMSConfig{Enabled: false},
	}
}

func testEncryption() *encryption.EncryptionManager {
	return encryption.NewEncryptionManager(testConfig(), nil)
}

func testHasher() *hashing.Hasher {
	return hashing.NewHasher(testConfig())
}

func testTokens() *token.Manager {
	return token.NewManager(testConfig())
}

func timePtr(t time.Time) *time.Time { return &t }

// fakeUserRepo is an in-memory UserRepository with real compare-and-set
// semantics on the counter columns.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.AppUser

	casOTPCalls   int
	createCalls   int
	getErr        error
	casForceErr   error
	updateStatErr error
}

func newFakeUserRepo(users ...*models.AppUser) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*models.AppUser)}
	for _, u := range users {
		cp := *u
		r.users[u.UserID] = &cp
	}
	return r
}

func (r *fakeUserRepo) stored(userID string) *models.AppUser {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.AppUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if user.ContactHash != "" {
		for _, u := range r.users {
			if u.ContactHash == user.ContactHash {
				return scylla.ErrConditionFailed
			}
		}
	}
	cp := *user
	r.users[user.UserID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, userID string) (*models.AppUser, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	u := r.stored(userID)
	if u == nil {
		return nil, scylla.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByContactHash(ctx context.Context, contactHash string) (*models.AppUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ContactHash == contactHash {
			cp := *u
			return &cp, nil
		}
	}
	return nil, scylla.ErrNotFound
}

func (r *fakeUserRepo) Update(ctx context.Context, user *models.AppUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *user
	r.users[user.UserID] = &cp
	return nil
}

func (r *fakeUserRepo) UpdateStatus(ctx context.Context, userID string, status models.AppUserStatus, remarks string, active bool) error {
	if r.updateStatErr != nil {
		return r.updateStatErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return scylla.ErrNotFound
	}
	u.Status = status
	u.StatusRemarks = remarks
	u.IsActive = active
	return nil
}

func (r *fakeUserRepo) CASLoginRetryCount(ctx context.Context, userID string, expected, next int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return scylla.ErrNotFound
	}
	if u.LoginRetryCount != expected {
		return scylla.ErrConditionFailed
	}
	u.LoginRetryCount = next
	return nil
}

func (r *fakeUserRepo) CASOTPCounters(ctx context.Context, userID string, expRetry, nextRetry, expVerify, nextVerify int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.casOTPCalls++
	if r.casForceErr != nil {
		return r.casForceErr
	}
	u, ok := r.users[userID]
	if !ok {
		return scylla.ErrNotFound
	}
	if u.OTPRetryCount != expRetry || u.OTPVerificationCount != expVerify {
		return scylla.ErrConditionFailed
	}
	u.OTPRetryCount = nextRetry
	u.OTPVerificationCount = nextVerify
	return nil
}

func (r *fakeUserRepo) CASTxnOTPCounters(ctx context.Context, userID string, expRetry, nextRetry, expVerify, nextVerify int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return scylla.ErrNotFound
	}
	if u.TxnOTPRetryCount != expRetry || u.TxnOTPVerificationCount != expVerify {
		return scylla.ErrConditionFailed
	}
	u.TxnOTPRetryCount = nextRetry
	u.TxnOTPVerificationCount = nextVerify
	return nil
}

func (r *fakeUserRepo) SetOTPGeneration(ctx context.Context, userID, refNo string, generation, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return scylla.ErrNotFound
	}
	u.OTPRefNo = refNo
	u.OTPGeneration = &generation
	u.OTPExpiry = &expiry
	return nil
}

func (r *fakeUserRepo) SetTxnOTPGeneration(ctx context.Context, userID, refNo string, generation, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return scylla.ErrNotFound
	}
	u.TxnOTPRefNo = refNo
	u.TxnOTPGeneration = &generation
	u.TxnOTPExpiry = &expiry
	return nil
}

func (r *fakeUserRepo) SetMPIN(ctx context.Context, userID, mpinHash string, resetAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return scylla.ErrNotFound
	}
	u.MPINHash = mpinHash
	u.MPINSetup = true
	u.MPINResetAt = &resetAt
	return nil
}

func (r *fakeUserRepo) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return scylla.ErrNotFound
	}
	u.LoginRetryCount = 0
	u.LastLoginAt = &at
	return nil
}

func (r *fakeUserRepo) SetLoginWindow(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return scylla.ErrNotFound
	}
	u.LastLoginAt = &at
	return nil
}

// fakeDeviceRepo keys devices by uniqueId, like the real dual-table store.
type fakeDeviceRepo struct {
	mu      sync.Mutex
	devices map[string]*models.Device

	rebindCalls     int
	deactivateCalls int
}

func newFakeDeviceRepo(devices ...*models.Device) *fakeDeviceRepo {
	r := &fakeDeviceRepo{devices: make(map[string]*models.Device)}
	for _, d := range devices {
		cp := *d
		r.devices[d.UniqueID] = &cp
	}
	return r
}

func (r *fakeDeviceRepo) Upsert(ctx context.Context, device *models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *device
	r.devices[device.UniqueID] = &cp
	return nil
}

func (r *fakeDeviceRepo) GetByUniqueID(ctx context.Context, uniqueID string) (*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[uniqueID]
	if !ok {
		return nil, scylla.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDeviceRepo) GetActiveByUser(ctx context.Context, appUserID string) ([]*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Device
	for _, d := range r.devices {
		if d.AppUserID == appUserID && d.IsActive {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeDeviceRepo) Rebind(ctx context.Context, device *models.Device, previousOwnerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebindCalls++
	cp := *device
	r.devices[device.UniqueID] = &cp
	return nil
}

func (r *fakeDeviceRepo) DeactivateForUser(ctx context.Context, appUserID, uniqueID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deactivateCalls++
	if d, ok := r.devices[uniqueID]; ok && d.AppUserID == appUserID {
		d.IsActive = false
	}
	return nil
}

func (r *fakeDeviceRepo) SetBiometric(ctx context.Context, uniqueID, appUserID, publicKey, biometricToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[uniqueID]
	if !ok {
		return scylla.ErrNotFound
	}
	d.PublicKey = publicKey
	d.BiometricToken = biometricToken
	d.BiometricSetup = true
	return nil
}

func (r *fakeDeviceRepo) SetBiometricFlag(ctx context.Context, uniqueID, appUserID string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[uniqueID]
	if !ok {
		return scylla.ErrNotFound
	}
	d.BiometricSetup = enabled
	return nil
}

func (r *fakeDeviceRepo) SetMPINFlag(ctx context.Context, uniqueID, appUserID string, mpinSetup bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[uniqueID]
	if !ok {
		return scylla.ErrNotFound
	}
	d.MPINSetup = mpinSetup
	return nil
}

type fakeHistoryRepo struct {
	mu          sync.Mutex
	rows        []*models.MpinHistory
	recentCalls int
}

func (r *fakeHistoryRepo) Append(ctx context.Context, rec *models.MpinHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.rows = append([]*models.MpinHistory{&cp}, r.rows...)
	return nil
}

func (r *fakeHistoryRepo) Recent(ctx context.Context, appUserID string, limit int) ([]*models.MpinHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recentCalls++
	var out []*models.MpinHistory
	for _, rec := range r.rows {
		if rec.AppUserID != appUserID {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeUamRepo struct {
	mu     sync.Mutex
	rows   []*models.UamIntegration
	getErr error
}

func (r *fakeUamRepo) Append(ctx context.Context, rec *models.UamIntegration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeUamRepo) GetLatest(ctx context.Context, appUserID string) (*models.UamIntegration, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.UamIntegration
	for _, rec := range r.rows {
		if rec.AppUserID == appUserID && rec.IsLatest {
			latest = rec
		}
	}
	if latest == nil {
		return nil, scylla.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

type fakeTwoFaRepo struct {
	mu   sync.Mutex
	rows map[string]*models.TransactionTwoFa
}

func newFakeTwoFaRepo() *fakeTwoFaRepo {
	return &fakeTwoFaRepo{rows: make(map[string]*models.TransactionTwoFa)}
}

func (r *fakeTwoFaRepo) Create(ctx context.Context, rec *models.TransactionTwoFa) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.rows[rec.TxnRefNo] = &cp
	return nil
}

func (r *fakeTwoFaRepo) GetByRefNo(ctx context.Context, txnRefNo string) (*models.TransactionTwoFa, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[txnRefNo]
	if !ok {
		return nil, scylla.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeTwoFaRepo) CASCounters(ctx context.Context, txnRefNo string, expRetry, nextRetry, expVerify, nextVerify int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[txnRefNo]
	if !ok {
		return scylla.ErrNotFound
	}
	if rec.RetryCount != expRetry || rec.VerificationCount != expVerify {
		return scylla.ErrConditionFailed
	}
	rec.RetryCount = nextRetry
	rec.VerificationCount = nextVerify
	return nil
}

func (r *fakeTwoFaRepo) SetGeneration(ctx context.Context, txnRefNo, gatewayRefNo string, generation, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[txnRefNo]
	if !ok {
		return scylla.ErrNotFound
	}
	rec.GatewayRefNo = gatewayRefNo
	rec.OTPGeneration = &generation
	rec.OTPExpiry = &expiry
	return nil
}

func (r *fakeTwoFaRepo) MarkVerified(ctx context.Context, txnRefNo string, verificationCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[txnRefNo]
	if !ok {
		return scylla.ErrNotFound
	}
	if rec.OTPVerified {
		return scylla.ErrConditionFailed
	}
	rec.OTPVerified = true
	rec.VerificationCount = verificationCount
	return nil
}

type fakeInvestorRepo struct {
	mu       sync.Mutex
	rows     map[string]*models.InvestorDetails
	panOwner map[string]string
}

func newFakeInvestorRepo() *fakeInvestorRepo {
	return &fakeInvestorRepo{
		rows:     make(map[string]*models.InvestorDetails),
		panOwner: make(map[string]string),
	}
}

func (r *fakeInvestorRepo) Create(ctx context.Context, inv *models.InvestorDetails) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv.PanCardNumber != "" {
		if owner, ok := r.panOwner[inv.PanCardNumber]; ok && owner != inv.AppUserID {
			return scylla.ErrConditionFailed
		}
		r.panOwner[inv.PanCardNumber] = inv.AppUserID
	}
	cp := *inv
	r.rows[inv.InvestorID] = &cp
	return nil
}

func (r *fakeInvestorRepo) GetActiveByUser(ctx context.Context, appUserID string) ([]*models.InvestorDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.InvestorDetails
	for _, inv := range r.rows {
		if inv.AppUserID == appUserID && inv.IsActive {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeInvestorRepo) GetPanOwner(ctx context.Context, panCardNumber string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.panOwner[panCardNumber]
	if !ok {
		return "", scylla.ErrNotFound
	}
	return owner, nil
}

func (r *fakeInvestorRepo) Update(ctx context.Context, inv *models.InvestorDetails) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv.PanCardNumber != "" {
		r.panOwner[inv.PanCardNumber] = inv.AppUserID
	}
	cp := *inv
	r.rows[inv.InvestorID] = &cp
	return nil
}

type fakeIdcomRepo struct {
	mu        sync.Mutex
	rows      map[string]*models.IdcomDetails
	markCalls int
}

func newFakeIdcomRepo() *fakeIdcomRepo {
	return &fakeIdcomRepo{rows: make(map[string]*models.IdcomDetails)}
}

func (r *fakeIdcomRepo) Create(ctx context.Context, rec *models.IdcomDetails) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.rows[rec.AuthCode] = &cp
	return nil
}

func (r *fakeIdcomRepo) GetActiveByAuthCode(ctx context.Context, authCode string) (*models.IdcomDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[authCode]
	if !ok || !rec.IsActive {
		return nil, scylla.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeIdcomRepo) GetByUserAndAuthCode(ctx context.Context, appUserID, authCode string) (*models.IdcomDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[authCode]
	if !ok || rec.AppUserID != appUserID {
		return nil, scylla.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeIdcomRepo) MarkCallbackStatus(ctx context.Context, authCode string, status models.CallbackStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markCalls++
	rec, ok := r.rows[authCode]
	if !ok {
		return scylla.ErrNotFound
	}
	if rec.HandleCallbackStatus != models.CallbackPending {
		return scylla.ErrConditionFailed
	}
	rec.HandleCallbackStatus = status
	return nil
}

type fakeNomineeRepo struct {
	mu   sync.Mutex
	rows []*models.InvestorNominee
}

func (r *fakeNomineeRepo) Create(ctx context.Context, rec *models.InvestorNominee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeNomineeRepo) ListByAccount(ctx context.Context, accountID string) ([]*models.InvestorNominee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.InvestorNominee
	for _, rec := range r.rows {
		if rec.AccountID == accountID && rec.IsActive {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeCooldown records claims and can be forced to deny.
type fakeCooldown struct {
	mu       sync.Mutex
	claimed  map[string]bool
	deny     bool
	claims   int
	releases int
}

func newFakeCooldown() *fakeCooldown {
	return &fakeCooldown{claimed: make(map[string]bool)}
}

func (c *fakeCooldown) key(scope, id string) string { return scope + ":" + id }

func (c *fakeCooldown) Claim(ctx context.Context, scope, id string, window time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claims++
	if c.deny || c.claimed[c.key(scope, id)] {
		return false, nil
	}
	c.claimed[c.key(scope, id)] = true
	return true, nil
}

func (c *fakeCooldown) Remaining(ctx context.Context, scope, id string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed[c.key(scope, id)] {
		return time.Minute, nil
	}
	return 0, nil
}

func (c *fakeCooldown) Release(ctx context.Context, scope, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases++
	delete(c.claimed, c.key(scope, id))
	return nil
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*redis.Session
	revokes  int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]*redis.Session)}
}

func (s *fakeSessions) Store(ctx context.Context, refreshTokenID string, session *redis.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[refreshTokenID] = &cp
	return nil
}

func (s *fakeSessions) Get(ctx context.Context, refreshTokenID string) (*redis.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[refreshTokenID]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (s *fakeSessions) Revoke(ctx context.Context, refreshTokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokes++
	delete(s.sessions, refreshTokenID)
	return nil
}

func (s *fakeSessions) RevokeAllForUser(ctx context.Context, appUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.AppUserID == appUserID {
			delete(s.sessions, id)
		}
	}
	return nil
}

// fakeOTPGateway accepts "123456"; sendErr/verifyErr force provider
// failures.
type fakeOTPGateway struct {
	mu        sync.Mutex
	sendErr   error
	verifyErr error
	sends     int
	verifies  int
}

func (g *fakeOTPGateway) Send(ctx context.Context, channel, target string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sends++
	if g.sendErr != nil {
		return "", g.sendErr
	}
	return "REF-1", nil
}

func (g *fakeOTPGateway) Verify(ctx context.Context, refNo, target, otp string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifies++
	if g.verifyErr != nil {
		return false, g.verifyErr
	}
	return otp == "123456", nil
}

// fakeBank serves a scripted lookup result and profile.
type fakeBank struct {
	lookup     *gateway.CustomerLookupResult
	lookupErr  error
	profile    *gateway.CustomerProfile
	profileErr error
}

func (b *fakeBank) FetchCustomerAccountAmlFatcaDetails(ctx context.Context, pan, dob, contactNumber string) (*gateway.CustomerLookupResult, error) {
	if b.lookupErr != nil {
		return nil, b.lookupErr
	}
	return b.lookup, nil
}

func (b *fakeBank) FetchCustomerProfile(ctx context.Context, bosCode string) (*gateway.CustomerProfile, error) {
	if b.profileErr != nil {
		return nil, b.profileErr
	}
	return b.profile, nil
}

type fakeIdcomProvider struct {
	authCode    string
	redirectURL string
	authErr     error
	tokenErr    error
	identity    *gateway.IdcomIdentity
	authCalls   int
}

func (p *fakeIdcomProvider) GetAuthCode(ctx context.Context, req *gateway.AuthCodeRequest) (*gateway.AuthCodeResult, error) {
	p.authCalls++
	if p.authErr != nil {
		return nil, p.authErr
	}
	return &gateway.AuthCodeResult{AuthCode: p.authCode, RedirectURL: p.redirectURL}, nil
}

func (p *fakeIdcomProvider) GetIDToken(ctx context.Context, authCode string) (string, error) {
	if p.tokenErr != nil {
		return "", p.tokenErr
	}
	return "id-token", nil
}

func (p *fakeIdcomProvider) DecryptIDToken(ctx context.Context, idToken string) (*gateway.IdcomIdentity, error) {
	if p.tokenErr != nil {
		return nil, p.tokenErr
	}
	return p.identity, nil
}

// completeProfile fills every mfRTA field so the review validator passes.
func completeProfile() *gateway.CustomerProfile {
	return &gateway.CustomerProfile{
		FullName:      "Asha Rao",
		PanCardNumber: "ABCDE1234F",
		DateOfBirth:   "1990-04-01",
		Gender:        "F",
		FatherName:    "K Rao",
		MaritalStatus: "single",
		AddressLine1:  "12 MG Road",
		AddressLine2:  "Indiranagar",
		City:          "Bengaluru",
		State:         "KA",
		Pincode:       "560038",
		Country:       "IN",
		Occupation:    "engineer",
		IncomeSlab:    "10-25L",
		SourceOfFunds: "salary",
		AccountNumber: "001122334455",
		IFSCCode:      "HDFC0000123",
		AccountType:   "savings",
		BankName:      "HDFC Bank",
		HolderName:    "Asha Rao",
	}
}

func testUser(status models.AppUserStatus) *models.AppUser {
	return &models.AppUser{
		UserID:        "user-1",
		ContactNumber: "9876543210",
		CountryCode:   "+91",
		ContactHash:   contactHash("9876543210", "+91"),
		Status:        status,
		Roles:         []string{models.RoleClient},
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
}

var errBoom = errors.New("boom")

// Compile-time interface checks for the fakes.
var (
	_ scylla.UserRepository        = (*fakeUserRepo)(nil)
	_ scylla.DeviceRepository      = (*fakeDeviceRepo)(nil)
	_ scylla.MpinHistoryRepository = (*fakeHistoryRepo)(nil)
	_ scylla.UamRepository         = (*fakeUamRepo)(nil)
	_ scylla.TwoFaRepository       = (*fakeTwoFaRepo)(nil)
	_ scylla.InvestorRepository    = (*fakeInvestorRepo)(nil)
	_ scylla.IdcomRepository       = (*fakeIdcomRepo)(nil)
	_ scylla.NomineeRepository     = (*fakeNomineeRepo)(nil)
	_ redis.OTPCooldownCache       = (*fakeCooldown)(nil)
	_ redis.SessionCache           = (*fakeSessions)(nil)
	_ gateway.OTPGateway           = (*fakeOTPGateway)(nil)
	_ gateway.CoreBanking          = (*fakeBank)(nil)
	_ gateway.Idcom                = (*fakeIdcomProvider)(nil)
	_ notify.Dispatcher            = notify.NopDispatcher{}
)
