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
	"onboarding-service/internal/gateway"
	"onboarding-service/internal/models"
	"onboarding-service/internal/repository/redis"
	"onboarding-service/internal/repository/scylla"
	"onboarding-service/internal/util"
)

// TxnTwoFaService is the transaction-scoped OTP authorizer. Rows are
// keyed by txnRefNo, not by user; the delivery channel and target contact
// are frozen at creation.
type TxnTwoFaService struct {
	twofa    scylla.TwoFaRepository
	gateway  gateway.OTPGateway
	cooldown redis.OTPCooldownCache
	audit    audit.Recorder
	policy   config.PolicyConfig
}

func NewTxnTwoFaService(
	twofa scylla.TwoFaRepository,
	otpGateway gateway.OTPGateway,
	cooldown redis.OTPCooldownCache,
	recorder audit.Recorder,
	policy config.PolicyConfig,
) *TxnTwoFaService {
	return &TxnTwoFaService{
		twofa:    twofa,
		gateway:  otpGateway,
		cooldown: cooldown,
		audit:    recorder,
		policy:   policy,
	}
}

// Create opens a 2FA round for a transaction and dispatches the first
// OTP on the chosen channel.
func (s *TxnTwoFaService) Create(ctx context.Context, accountID string, channel models.TwoFaChannel, targetContact string, cartItemIDs []string) (string, error) {
	if accountID == "" || targetContact == "" {
		return "", fmt.Errorf("account and target contact required: %w", ErrBadRequest)
	}
	if channel != models.ChannelSMS && channel != models.ChannelEmail {
		return "", fmt.Errorf("unknown channel %q: %w", channel, ErrBadRequest)
	}

	txnRefNo := uuid.NewString()
	now := time.Now().UTC()

	rec := &models.TransactionTwoFa{
		TxnRefNo:      txnRefNo,
		AccountID:     accountID,
		Channel:       channel,
		TargetContact: targetContact,
		RetryCount:    1,
		CartItemIDs:   cartItemIDs,
		CreatedAt:     now,
	}
	if err := s.twofa.Create(ctx, rec); err != nil {
		return "", err
	}

	gatewayRef, err := s.gateway.Send(ctx, string(channel), targetContact)
	if err != nil {
		if casErr := s.twofa.CASCounters(ctx, txnRefNo, 1, 0, 0, 0); casErr != nil {
			util.Error("failed to roll back twofa retry counter",
				zap.String("txn_ref_no", txnRefNo), zap.Error(casErr))
		}
		if errors.Is(err, gateway.ErrGatewayTimeout) {
			return "", fmt.Errorf("txn otp dispatch: %w", ErrGatewayTimeout)
		}
		return "", err
	}
	if err := s.twofa.SetGeneration(ctx, txnRefNo, gatewayRef, now, now.Add(s.policy.OTPExpiry)); err != nil {
		return "", err
	}

	s.audit.Record(ctx, &models.AuditEvent{
		TxnRefNo:  txnRefNo,
		EventType: models.EventTxnOTPGenerated,
		Outcome:   "sent",
	})
	return txnRefNo, nil
}

// Resend dispatches another OTP for an open round, against the contact
// captured at creation.
func (s *TxnTwoFaService) Resend(ctx context.Context, txnRefNo string) error {
	rec, err := s.twofa.GetByRefNo(ctx, txnRefNo)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return ErrTxnOTPNotFound
		}
		return err
	}
	if rec.OTPVerified {
		return ErrOTPAlreadyUsed
	}
	if rec.RetryCount >= s.policy.OTPMaxRetryCount {
		return ErrRetryLimitExceeded
	}

	claimed, err := s.cooldown.Claim(ctx, "txn", txnRefNo, s.policy.OTPResendCooldown)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrTooSoon
	}

	err = s.twofa.CASCounters(ctx, txnRefNo,
		rec.RetryCount, rec.RetryCount+1, rec.VerificationCount, rec.VerificationCount)
	if err != nil {
		_ = s.cooldown.Release(ctx, "txn", txnRefNo)
		return err
	}

	gatewayRef, err := s.gateway.Send(ctx, string(rec.Channel), rec.TargetContact)
	if err != nil {
		if casErr := s.twofa.CASCounters(ctx, txnRefNo,
			rec.RetryCount+1, rec.RetryCount, rec.VerificationCount, rec.VerificationCount); casErr != nil {
			util.Error("failed to roll back twofa retry counter",
				zap.String("txn_ref_no", txnRefNo), zap.Error(casErr))
		}
		_ = s.cooldown.Release(ctx, "txn", txnRefNo)
		if errors.Is(err, gateway.ErrGatewayTimeout) {
			return fmt.Errorf("txn otp resend: %w", ErrGatewayTimeout)
		}
		return err
	}

	now := time.Now().UTC()
	if err := s.twofa.SetGeneration(ctx, txnRefNo, gatewayRef, now, now.Add(s.policy.OTPExpiry)); err != nil {
		return err
	}

	s.audit.Record(ctx, &models.AuditEvent{
		TxnRefNo:  txnRefNo,
		EventType: models.EventTxnOTPGenerated,
		Outcome:   "resent",
	})
	return nil
}

// Verify consumes the OTP exactly once; the row's cart items become
// authorized when the verified flag flips.
func (s *TxnTwoFaService) Verify(ctx context.Context, txnRefNo, otp string) ([]string, error) {
	rec, err := s.twofa.GetByRefNo(ctx, txnRefNo)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, ErrTxnOTPNotFound
		}
		return nil, err
	}
	if rec.OTPVerified {
		return nil, ErrOTPAlreadyUsed
	}
	if rec.VerificationCount+1 > s.policy.OTPMaxVerifyCount {
		return nil, ErrVerificationLimitExceeded
	}

	err = s.twofa.CASCounters(ctx, txnRefNo,
		rec.RetryCount, rec.RetryCount, rec.VerificationCount, rec.VerificationCount+1)
	if err != nil {
		return nil, err
	}
	verifyCount := rec.VerificationCount + 1

	if rec.OTPExpiry == nil || time.Now().After(*rec.OTPExpiry) {
		return nil, ErrExpired
	}

	valid, err := s.gateway.Verify(ctx, rec.GatewayRefNo, rec.TargetContact, otp)
	if err != nil {
		if casErr := s.twofa.CASCounters(ctx, txnRefNo,
			rec.RetryCount, rec.RetryCount, verifyCount, verifyCount-1); casErr != nil {
			util.Error("failed to roll back twofa verification counter",
				zap.String("txn_ref_no", txnRefNo), zap.Error(casErr))
		}
		if errors.Is(err, gateway.ErrGatewayTimeout) {
			return nil, fmt.Errorf("txn otp verify: %w", ErrGatewayTimeout)
		}
		return nil, err
	}
	if !valid {
		return nil, ErrOTPRejected
	}

	if err := s.twofa.MarkVerified(ctx, txnRefNo, verifyCount); err != nil {
		if errors.Is(err, scylla.ErrConditionFailed) {
			return nil, ErrOTPAlreadyUsed
		}
		return nil, err
	}

	s.audit.Record(ctx, &models.AuditEvent{
		TxnRefNo:  txnRefNo,
		EventType: models.EventTxnOTPVerified,
		Outcome:   "success",
	})
	return rec.CartItemIDs, nil
}

// Status returns the round's current counters and verified flag.
func (s *TxnTwoFaService) Status(ctx context.Context, txnRefNo string) (*models.TransactionTwoFa, error) {
	rec, err := s.twofa.GetByRefNo(ctx, txnRefNo)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, ErrTxnOTPNotFound
		}
		return nil, err
	}
	return rec, nil
}
