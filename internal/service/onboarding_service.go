package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"onboarding-service/internal/audit"
	"onboarding-service/internal/encryption"
	"onboarding-service/internal/gateway"
	"onboarding-service/internal/models"
	"onboarding-service/internal/repository/redis"
	"onboarding-service/internal/repository/scylla"
	"onboarding-service/internal/token"
	"onboarding-service/internal/util"
)

var panPattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

// ResolutionResult is the structured outcome of an identity-resolution
// step. Validator failures and customer-id mismatches come back as
// non-success values with remarks, not errors.
type ResolutionResult struct {
	Success              bool
	Status               models.AppUserStatus
	IsNTB                bool
	IsMultipleCustomerID bool
	RedirectURL          string
	Remarks              string
	RetryOnboarding      bool
	Tokens               *LoginResult
}

// CallbackState answers the client's "has my callback landed yet" poll.
type CallbackState struct {
	HandleCallbackStatus models.CallbackStatus
	UserStatus           models.AppUserStatus
}

// OnboardingService is the identity-resolution state machine: PAN/DOB
// validation, ETB customer search, IDCOM redirect issuance, the async
// callback handler, and nominee registration. The persisted user status
// is the resumption checkpoint; gateway timeouts leave it untouched.
type OnboardingService struct {
	users      scylla.UserRepository
	investors  scylla.InvestorRepository
	idcom      scylla.IdcomRepository
	nominees   scylla.NomineeRepository
	bank       gateway.CoreBanking
	provider   gateway.Idcom
	review     *ReviewService
	devices    *DeviceService
	tokens     *token.Manager
	sessions   redis.SessionCache
	encryption *encryption.EncryptionManager
	audit      audit.Recorder
	redirect   string
}

func NewOnboardingService(
	users scylla.UserRepository,
	investors scylla.InvestorRepository,
	idcom scylla.IdcomRepository,
	nominees scylla.NomineeRepository,
	bank gateway.CoreBanking,
	provider gateway.Idcom,
	review *ReviewService,
	devices *DeviceService,
	tokens *token.Manager,
	sessions redis.SessionCache,
	em *encryption.EncryptionManager,
	recorder audit.Recorder,
	redirectURI string,
) *OnboardingService {
	return &OnboardingService{
		users:      users,
		investors:  investors,
		idcom:      idcom,
		nominees:   nominees,
		bank:       bank,
		provider:   provider,
		review:     review,
		devices:    devices,
		tokens:     tokens,
		sessions:   sessions,
		encryption: em,
		audit:      recorder,
		redirect:   redirectURI,
	}
}

func encodeAuthCode(raw string) string {
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// resolveInvestor loads, validates and if needed creates the single
// active InvestorDetails row for the user.
func (s *OnboardingService) resolveInvestor(ctx context.Context, user *models.AppUser, pan, dob string) (*models.InvestorDetails, error) {
	rows, err := s.investors.GetActiveByUser(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	if len(rows) > 1 {
		return nil, fmt.Errorf("%d active investor rows for %s: %w", len(rows), user.UserID, ErrDataDiscrepancy)
	}

	var parsedDOB *time.Time
	if dob != "" {
		t, err := time.Parse("2006-01-02", dob)
		if err != nil {
			return nil, fmt.Errorf("invalid dob: %w", ErrBadRequest)
		}
		parsedDOB = &t
	}

	if len(rows) == 1 {
		existing := rows[0]
		if pan != "" && existing.PanCardNumber != "" && existing.PanCardNumber != pan {
			return nil, ErrPanMismatch
		}
		if parsedDOB != nil && existing.DateOfBirth != nil && !existing.DateOfBirth.Equal(*parsedDOB) {
			return nil, ErrDobMismatch
		}
		changed := false
		if pan != "" && existing.PanCardNumber == "" {
			owner, err := s.investors.GetPanOwner(ctx, pan)
			if err != nil && !errors.Is(err, scylla.ErrNotFound) {
				return nil, err
			}
			if err == nil && owner != user.UserID {
				return nil, ErrPanAlreadyLinked
			}
			existing.PanCardNumber = pan
			if sealed, err := s.encryption.SealField(ctx, pan, "pan"); err == nil {
				existing.PanEncrypted = []byte(sealed)
			}
			changed = true
		}
		if parsedDOB != nil && existing.DateOfBirth == nil {
			existing.DateOfBirth = parsedDOB
			changed = true
		}
		if changed {
			if err := s.investors.Update(ctx, existing); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}

	if pan != "" {
		owner, err := s.investors.GetPanOwner(ctx, pan)
		if err != nil && !errors.Is(err, scylla.ErrNotFound) {
			return nil, err
		}
		if err == nil && owner != user.UserID {
			return nil, ErrPanAlreadyLinked
		}
	}

	inv := &models.InvestorDetails{
		InvestorID:    uuid.NewString(),
		AppUserID:     user.UserID,
		PanCardNumber: pan,
		DateOfBirth:   parsedDOB,
		InvestorType:  "individual",
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	if pan != "" {
		if sealed, err := s.encryption.SealField(ctx, pan, "pan"); err == nil {
			inv.PanEncrypted = []byte(sealed)
		}
	}
	if err := s.investors.Create(ctx, inv); err != nil {
		if errors.Is(err, scylla.ErrConditionFailed) {
			return nil, ErrPanAlreadyLinked
		}
		return nil, err
	}
	return inv, nil
}

func (s *OnboardingService) transition(ctx context.Context, user *models.AppUser, next models.AppUserStatus, remarks string) error {
	if !user.Status.CanTransition(next) {
		return fmt.Errorf("cannot move %s from %s to %s: %w", user.UserID, user.Status, next, ErrRestartOnboarding)
	}
	active := next != models.StatusBlocked && next != models.StatusLocked
	if err := s.users.UpdateStatus(ctx, user.UserID, next, remarks, active); err != nil {
		return err
	}
	s.audit.Record(ctx, &models.AuditEvent{
		AppUserID: user.UserID,
		EventType: models.EventStatusTransition,
		Outcome:   string(next),
		Details:   remarks,
	})
	user.Status = next
	return nil
}

// refreshTokensIfClient reissues the pair when the user's role set
// includes CLIENT.
func (s *OnboardingService) refreshTokensIfClient(ctx context.Context, user *models.AppUser, deviceID string) *LoginResult {
	if !user.HasRole(models.RoleClient) {
		return nil
	}
	pair, err := s.tokens.IssuePair(user.UserID, deviceID, models.RoleClient)
	if err != nil {
		util.Warn("token refresh failed during onboarding",
			zap.String("app_user_id", user.UserID), zap.Error(err))
		return nil
	}
	err = s.sessions.Store(ctx, pair.RefreshTokenID, &redis.Session{
		AppUserID: user.UserID,
		DeviceID:  deviceID,
		Role:      models.RoleClient,
		IssuedAt:  time.Now().UTC(),
	}, s.tokens.RefreshTTL())
	if err != nil {
		util.Warn("session store failed during onboarding",
			zap.String("app_user_id", user.UserID), zap.Error(err))
		return nil
	}
	return &LoginResult{
		AppUserID:        user.UserID,
		Status:           user.Status,
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

// issueRedirect requests an IDCOM auth code and records the attempt row
// with the base64-encoded code as idempotency key.
func (s *OnboardingService) issueRedirect(ctx context.Context, user *models.AppUser, deviceID string) (string, error) {
	result, err := s.provider.GetAuthCode(ctx, &gateway.AuthCodeRequest{
		AppUserID:     user.UserID,
		DeviceID:      deviceID,
		ContactNumber: user.CountryCode + user.ContactNumber,
		RedirectURI:   s.redirect,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrGatewayTimeout) {
			return "", fmt.Errorf("idcom redirect: %w", ErrGatewayTimeout)
		}
		return "", err
	}

	rec := &models.IdcomDetails{
		IdcomID:              uuid.NewString(),
		AuthCode:             encodeAuthCode(result.AuthCode),
		AppUserID:            user.UserID,
		DeviceID:             deviceID,
		RedirectURL:          result.RedirectURL,
		HandleCallbackStatus: models.CallbackPending,
		IsActive:             true,
		CreatedAt:            time.Now().UTC(),
	}
	if err := s.idcom.Create(ctx, rec); err != nil {
		return "", err
	}

	s.audit.Record(ctx, &models.AuditEvent{
		AppUserID: user.UserID,
		EventType: models.EventIdcomRedirect,
		DeviceID:  deviceID,
		Outcome:   "issued",
	})
	return result.RedirectURL, nil
}

// evaluateCustomer applies the post-lookup gates for a resolved customer:
// completeness validation, advisory and wealthfy diversions. A nil result
// means the customer may proceed.
func (s *OnboardingService) evaluateCustomer(ctx context.Context, user *models.AppUser, customer *gateway.CustomerRecord) (*ResolutionResult, error) {
	if user.BosCode == "" {
		user.BosCode = customer.BosCode
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	verdict, err := s.review.Validate(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	if !verdict.Success {
		if err := s.transition(ctx, user, models.StatusBlocked, verdict.Remarks); err != nil {
			return nil, err
		}
		return &ResolutionResult{
			Success: false,
			Status:  models.StatusBlocked,
			Remarks: verdict.Remarks,
		}, nil
	}

	profile, err := s.bank.FetchCustomerProfile(ctx, user.BosCode)
	if err != nil {
		if errors.Is(err, gateway.ErrGatewayTimeout) {
			return nil, fmt.Errorf("profile lookup: %w", ErrGatewayTimeout)
		}
		return nil, err
	}
	if profile.AdvisoryCustomer == "Y" {
		if err := s.transition(ctx, user, models.StatusAdvisoryUser, ""); err != nil {
			return nil, err
		}
		return &ResolutionResult{Success: true, Status: models.StatusAdvisoryUser}, nil
	}
	if profile.DomesticWealthfy == "Y" {
		if err := s.transition(ctx, user, models.StatusWealthfyDomesticUser, ""); err != nil {
			return nil, err
		}
		return &ResolutionResult{Success: true, Status: models.StatusWealthfyDomesticUser}, nil
	}
	return nil, nil
}

// decideForCustomer runs the full decision sequence for a single resolved
// customer and issues the IDCOM redirect when the gates pass.
func (s *OnboardingService) decideForCustomer(ctx context.Context, user *models.AppUser, customer *gateway.CustomerRecord, deviceID string) (*ResolutionResult, error) {
	if res, err := s.evaluateCustomer(ctx, user, customer); err != nil || res != nil {
		return res, err
	}

	if err := s.transition(ctx, user, models.StatusSingleCustomerID, ""); err != nil {
		return nil, err
	}
	redirectURL, err := s.issueRedirect(ctx, user, deviceID)
	if err != nil {
		return nil, err
	}

	return &ResolutionResult{
		Success:     true,
		Status:      models.StatusSingleCustomerID,
		RedirectURL: redirectURL,
		Tokens:      s.refreshTokensIfClient(ctx, user, deviceID),
	}, nil
}

// completeVerification binds the presenting device, captures the demat
// identifiers from the bank profile and moves the user to IDCOMVerified.
func (s *OnboardingService) completeVerification(ctx context.Context, user *models.AppUser, deviceID, customerID string) (*ResolutionResult, error) {
	if err := s.devices.DeviceBind(ctx, user.UserID, deviceID); err != nil && !errors.Is(err, ErrDeviceNotOwned) {
		return nil, err
	}
	user.UserCode = customerID
	if profile, pErr := s.bank.FetchCustomerProfile(ctx, customerID); pErr == nil {
		user.DematAccNumber = profile.DematAccNumber
		user.DematDpID = profile.DematDpID
	} else {
		util.Warn("demat lookup failed", zap.String("app_user_id", user.UserID), zap.Error(pErr))
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, user, models.StatusIDCOMVerified, ""); err != nil {
		return nil, err
	}
	return &ResolutionResult{
		Success: true,
		Status:  models.StatusIDCOMVerified,
		Tokens:  s.refreshTokensIfClient(ctx, user, deviceID),
	}, nil
}

// ResolveIdentity is the onboarding entry point taking PAN and/or DOB
// plus the presenting device.
func (s *OnboardingService) ResolveIdentity(ctx context.Context, appUserID, pan, dob, deviceID string) (*ResolutionResult, error) {
	if deviceID == "" || (pan == "" && dob == "") {
		return nil, fmt.Errorf("pan or dob plus device required: %w", ErrBadRequest)
	}
	if pan != "" && !panPattern.MatchString(pan) {
		return nil, fmt.Errorf("malformed pan: %w", ErrBadRequest)
	}

	user, err := s.users.GetByID(ctx, appUserID)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	investor, err := s.resolveInvestor(ctx, user, pan, dob)
	if err != nil {
		return nil, err
	}

	lookupDOB := dob
	if lookupDOB == "" && investor.DateOfBirth != nil {
		lookupDOB = investor.DateOfBirth.Format("2006-01-02")
	}
	lookup, err := s.bank.FetchCustomerAccountAmlFatcaDetails(ctx, investor.PanCardNumber, lookupDOB, user.CountryCode+user.ContactNumber)
	if err != nil {
		if errors.Is(err, gateway.ErrGatewayTimeout) {
			// No partial transition on timeout.
			return nil, fmt.Errorf("etb lookup: %w", ErrGatewayTimeout)
		}
		return nil, fmt.Errorf("etb lookup: %w", ErrBankUnreachable)
	}

	switch lookup.Code {
	case gateway.CodeUserExist:
		if len(lookup.Customers) != 1 {
			return nil, fmt.Errorf("USER_EXIST with %d customers: %w", len(lookup.Customers), ErrETBSyncFailed)
		}
		return s.decideForCustomer(ctx, user, &lookup.Customers[0], deviceID)

	case gateway.CodeMultipleCustomerData:
		if err := s.transition(ctx, user, models.StatusMultipleCustomerID, ""); err != nil {
			return nil, err
		}
		redirectURL, err := s.issueRedirect(ctx, user, deviceID)
		if err != nil {
			return nil, err
		}
		return &ResolutionResult{
			Success:              true,
			Status:               models.StatusMultipleCustomerID,
			IsMultipleCustomerID: true,
			RedirectURL:          redirectURL,
		}, nil

	case gateway.CodeNoData:
		if err := s.transition(ctx, user, models.StatusNTBUser, ""); err != nil {
			return nil, err
		}
		return &ResolutionResult{Success: true, Status: models.StatusNTBUser, IsNTB: true}, nil

	default:
		if lookup.BankErrorCode != "" {
			return nil, fmt.Errorf("bank error %s: %w", lookup.BankErrorCode, ErrBankUnreachable)
		}
		return nil, ErrETBSyncFailed
	}
}

// providerErrNotBankCustomer is the provider's "no such customer" code,
// a success path finalizing NTBUser.
const providerErrNotBankCustomer = 1000

// HandleIdcomCallback is the async entry point invoked by the identity
// provider. Whatever branch runs, the IdcomDetails row's callback status
// is durably recorded exactly once before this returns.
func (s *OnboardingService) HandleIdcomCallback(ctx context.Context, rawAuthCode string, providerSuccess bool, providerErrorCode int) (result *ResolutionResult, err error) {
	encoded := encodeAuthCode(rawAuthCode)
	rec, lookupErr := s.idcom.GetActiveByAuthCode(ctx, encoded)
	if lookupErr != nil {
		if errors.Is(lookupErr, scylla.ErrNotFound) {
			return nil, ErrCallbackRecordNotFound
		}
		return nil, lookupErr
	}

	// Providers redeliver callbacks. A finalized row replays its recorded
	// outcome; only a pending row may run side effects.
	if rec.HandleCallbackStatus != models.CallbackPending {
		user, uErr := s.users.GetByID(ctx, rec.AppUserID)
		if uErr != nil {
			return nil, uErr
		}
		return &ResolutionResult{
			Success:         rec.HandleCallbackStatus == models.CallbackSuccess,
			Status:          user.Status,
			RetryOnboarding: rec.HandleCallbackStatus == models.CallbackFailure,
		}, nil
	}

	// The status guard: every exit marks the row. Failures after this
	// point must not leave it pending.
	marked := false
	markOnce := func(status models.CallbackStatus) {
		if marked {
			return
		}
		marked = true
		if mErr := s.idcom.MarkCallbackStatus(ctx, encoded, status); mErr != nil {
			if errors.Is(mErr, scylla.ErrConditionFailed) {
				util.Warn("callback already marked", zap.String("auth_code", encoded))
				return
			}
			util.Error("failed to mark callback status",
				zap.String("auth_code", encoded), zap.Error(mErr))
		}
	}
	defer func() {
		// A panic unwind leaves result nil with no error; that is a
		// failure, not a success.
		final := models.CallbackFailure
		if err == nil && result != nil && result.Success {
			final = models.CallbackSuccess
		}
		markOnce(final)
		s.audit.Record(ctx, &models.AuditEvent{
			AppUserID: rec.AppUserID,
			EventType: models.EventIdcomCallback,
			DeviceID:  rec.DeviceID,
			Outcome:   string(final),
		})
	}()

	user, err := s.users.GetByID(ctx, rec.AppUserID)
	if err != nil {
		return nil, err
	}

	if !providerSuccess {
		if providerErrorCode == providerErrNotBankCustomer {
			if err := s.transition(ctx, user, models.StatusNTBUser, "idcom: not a bank customer"); err != nil {
				return nil, err
			}
			return &ResolutionResult{Success: true, Status: models.StatusNTBUser, IsNTB: true}, nil
		}
		return &ResolutionResult{Success: false, Status: user.Status, RetryOnboarding: true}, nil
	}

	idToken, err := s.provider.GetIDToken(ctx, rawAuthCode)
	if err != nil {
		return nil, err
	}
	identity, err := s.provider.DecryptIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}

	switch user.Status {
	case models.StatusSingleCustomerID:
		if user.BosCode != "" && user.BosCode != identity.CustomerID {
			return &ResolutionResult{Success: false, Status: user.Status, RetryOnboarding: true}, nil
		}
		return s.completeVerification(ctx, user, rec.DeviceID, identity.CustomerID)

	case models.StatusMultipleCustomerID:
		user.BosCode = identity.CustomerID
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
		lookup, err := s.bank.FetchCustomerAccountAmlFatcaDetails(ctx, identity.PanCardNumber, "", identity.MobileNumber)
		if err != nil {
			return nil, fmt.Errorf("etb re-lookup: %w", ErrBankUnreachable)
		}
		if lookup.Code != gateway.CodeUserExist || len(lookup.Customers) != 1 {
			return nil, ErrETBSyncFailed
		}
		if res, err := s.evaluateCustomer(ctx, user, &lookup.Customers[0]); err != nil || res != nil {
			return res, err
		}
		// The customer is now uniquely resolved inside an authenticated
		// callback; no second redirect round trip.
		return s.completeVerification(ctx, user, rec.DeviceID, identity.CustomerID)

	default:
		return nil, fmt.Errorf("callback in status %s: %w", user.Status, ErrRestartOnboarding)
	}
}

// NomineeRequest describes one nominee to attach to an account.
type NomineeRequest struct {
	AccountID     string
	Relationship  string
	SharePercent  int
	FullName      string
	DateOfBirth   string
	PanCardNumber string
	IsMinor       bool
	GuardianName  string
}

// RegisterNominee materializes the nominee as a shadow AppUser plus
// InvestorDetails row and links it to the account. Completing the step
// advances the owner from declarationCompleted to nomineeCompleted.
func (s *OnboardingService) RegisterNominee(ctx context.Context, appUserID string, req *NomineeRequest) (*models.InvestorNominee, error) {
	if req == nil || req.AccountID == "" || req.Relationship == "" || req.FullName == "" {
		return nil, fmt.Errorf("account, relationship and name required: %w", ErrBadRequest)
	}
	if req.SharePercent <= 0 || req.SharePercent > 100 {
		return nil, fmt.Errorf("share percent out of range: %w", ErrBadRequest)
	}
	if req.IsMinor && req.GuardianName == "" {
		return nil, fmt.Errorf("guardian required for minor nominee: %w", ErrBadRequest)
	}
	if req.PanCardNumber != "" && !panPattern.MatchString(req.PanCardNumber) {
		return nil, fmt.Errorf("malformed nominee pan: %w", ErrBadRequest)
	}

	user, err := s.users.GetByID(ctx, appUserID)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	existing, err := s.nominees.ListByAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	total := req.SharePercent
	for _, n := range existing {
		total += n.SharePercent
	}
	if total > 100 {
		return nil, fmt.Errorf("nominee shares exceed 100%%: %w", ErrBadRequest)
	}

	now := time.Now().UTC()
	shadow := &models.AppUser{
		UserID:    uuid.NewString(),
		Status:    models.StatusRegistrationInitiated,
		Roles:     []string{},
		IsActive:  true,
		CreatedAt: now,
	}
	if err := s.users.Create(ctx, shadow); err != nil {
		return nil, err
	}
	var parsedDOB *time.Time
	if req.DateOfBirth != "" {
		t, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return nil, fmt.Errorf("invalid nominee dob: %w", ErrBadRequest)
		}
		parsedDOB = &t
	}

	shadowInvestor := &models.InvestorDetails{
		InvestorID:    uuid.NewString(),
		AppUserID:     shadow.UserID,
		PanCardNumber: req.PanCardNumber,
		DateOfBirth:   parsedDOB,
		InvestorType:  "nominee",
		IsActive:      true,
		CreatedAt:     now,
	}
	if err := s.investors.Create(ctx, shadowInvestor); err != nil {
		if errors.Is(err, scylla.ErrConditionFailed) {
			return nil, ErrPanAlreadyLinked
		}
		return nil, err
	}

	nominee := &models.InvestorNominee{
		NomineeID:        uuid.NewString(),
		AccountID:        req.AccountID,
		AppUserID:        appUserID,
		NomineeAppUserID: shadow.UserID,
		Relationship:     req.Relationship,
		SharePercent:     req.SharePercent,
		IsMinor:          req.IsMinor,
		GuardianName:     req.GuardianName,
		IsActive:         true,
		CreatedAt:        now,
	}
	if err := s.nominees.Create(ctx, nominee); err != nil {
		return nil, err
	}

	if user.Status == models.StatusDeclarationCompleted {
		if err := s.transition(ctx, user, models.StatusNomineeCompleted, ""); err != nil {
			return nil, err
		}
	}
	return nominee, nil
}

// ListNominees returns the active nominees for an account.
func (s *OnboardingService) ListNominees(ctx context.Context, accountID string) ([]*models.InvestorNominee, error) {
	return s.nominees.ListByAccount(ctx, accountID)
}

// PollCallback reports callback completion without side effects.
func (s *OnboardingService) PollCallback(ctx context.Context, appUserID, rawAuthCode string) (*CallbackState, error) {
	rec, err := s.idcom.GetByUserAndAuthCode(ctx, appUserID, encodeAuthCode(rawAuthCode))
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, ErrCallbackRecordNotFound
		}
		return nil, err
	}
	user, err := s.users.GetByID(ctx, appUserID)
	if err != nil {
		return nil, err
	}
	return &CallbackState{
		HandleCallbackStatus: rec.HandleCallbackStatus,
		UserStatus:           user.Status,
	}, nil
}
