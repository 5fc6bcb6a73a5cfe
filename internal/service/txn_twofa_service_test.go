package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"onboarding-service/internal/audit"
	"onboarding-service/internal/models"
	"onboarding-service/internal/repository/scylla"
)

type twoFaFixture struct {
	repo     *fakeTwoFaRepo
	gateway  *fakeOTPGateway
	cooldown *fakeCooldown
	svc      *TxnTwoFaService
}

func newTwoFaFixture() *twoFaFixture {
	f := &twoFaFixture{
		repo:     newFakeTwoFaRepo(),
		gateway:  &fakeOTPGateway{},
		cooldown: newFakeCooldown(),
	}
	f.svc = NewTxnTwoFaService(f.repo, f.gateway, f.cooldown, audit.NopRecorder{}, testConfig().Policy)
	return f
}

func (f *twoFaFixture) open(t *testing.T) string {
	t.Helper()
	txnRefNo, err := f.svc.Create(context.Background(), "acct-1", models.ChannelSMS, "+919876543210", []string{"cart-1", "cart-2"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return txnRefNo
}

func TestTxnCreateOpensRoundAndSends(t *testing.T) {
	f := newTwoFaFixture()
	txnRefNo := f.open(t)

	rec, err := f.repo.GetByRefNo(context.Background(), txnRefNo)
	if err != nil {
		t.Fatalf("GetByRefNo: %v", err)
	}
	if rec.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1 (creation consumes the first send)", rec.RetryCount)
	}
	if rec.GatewayRefNo == "" || rec.OTPExpiry == nil {
		t.Error("generation metadata not recorded")
	}
	if rec.Channel != models.ChannelSMS || rec.TargetContact != "+919876543210" {
		t.Errorf("channel/contact not frozen at creation: %+v", rec)
	}
}

func TestTxnCreateValidations(t *testing.T) {
	f := newTwoFaFixture()
	if _, err := f.svc.Create(context.Background(), "", models.ChannelSMS, "x", nil); !errors.Is(err, ErrBadRequest) {
		t.Errorf("empty account = %v, want ErrBadRequest", err)
	}
	if _, err := f.svc.Create(context.Background(), "acct-1", "carrier-pigeon", "x", nil); !errors.Is(err, ErrBadRequest) {
		t.Errorf("unknown channel = %v, want ErrBadRequest", err)
	}
}

func TestTxnCreateRollsBackOnSendFailure(t *testing.T) {
	f := newTwoFaFixture()
	f.gateway.sendErr = errBoom

	txnRefNo, err := f.svc.Create(context.Background(), "acct-1", models.ChannelSMS, "+919876543210", nil)
	if err == nil {
		t.Fatal("send failure not surfaced")
	}
	if txnRefNo != "" {
		t.Error("ref number returned despite failure")
	}
	// The single row that was created has its counter handed back.
	for _, rec := range f.repo.rows {
		if rec.RetryCount != 0 {
			t.Errorf("retry count = %d, want 0 after rollback", rec.RetryCount)
		}
	}
}

func TestTxnResendCooldownAndCeiling(t *testing.T) {
	f := newTwoFaFixture()
	txnRefNo := f.open(t)

	if err := f.svc.Resend(context.Background(), txnRefNo); err != nil {
		t.Fatalf("first resend: %v", err)
	}
	// Cooldown still claimed.
	if err := f.svc.Resend(context.Background(), txnRefNo); !errors.Is(err, ErrTooSoon) {
		t.Fatalf("resend inside cooldown = %v, want ErrTooSoon", err)
	}

	f.cooldown.Release(context.Background(), "txn", txnRefNo)
	if err := f.svc.Resend(context.Background(), txnRefNo); err != nil {
		t.Fatalf("resend after cooldown: %v", err)
	}

	f.cooldown.Release(context.Background(), "txn", txnRefNo)
	if err := f.svc.Resend(context.Background(), txnRefNo); !errors.Is(err, ErrRetryLimitExceeded) {
		t.Fatalf("resend past ceiling = %v, want ErrRetryLimitExceeded", err)
	}
}

func TestTxnResendRollsBackOnSendFailure(t *testing.T) {
	f := newTwoFaFixture()
	txnRefNo := f.open(t)
	f.gateway.sendErr = errBoom

	if err := f.svc.Resend(context.Background(), txnRefNo); err == nil {
		t.Fatal("send failure not surfaced")
	}
	rec, _ := f.repo.GetByRefNo(context.Background(), txnRefNo)
	if rec.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1 after rollback", rec.RetryCount)
	}
	if f.cooldown.releases != 1 {
		t.Errorf("cooldown releases = %d, want 1", f.cooldown.releases)
	}
}

func TestTxnVerifyReleasesCartItemsExactlyOnce(t *testing.T) {
	f := newTwoFaFixture()
	txnRefNo := f.open(t)

	items, err := f.svc.Verify(context.Background(), txnRefNo, "123456")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("cart items = %v, want 2", items)
	}

	if _, err := f.svc.Verify(context.Background(), txnRefNo, "123456"); !errors.Is(err, ErrOTPAlreadyUsed) {
		t.Fatalf("second verify = %v, want ErrOTPAlreadyUsed", err)
	}
	if err := f.svc.Resend(context.Background(), txnRefNo); !errors.Is(err, ErrOTPAlreadyUsed) {
		t.Fatalf("resend after verify = %v, want ErrOTPAlreadyUsed", err)
	}
}

func TestTxnMarkVerifiedIsExactlyOnce(t *testing.T) {
	f := newTwoFaFixture()
	txnRefNo := f.open(t)

	// Two racing verifies both reach MarkVerified; only one write applies.
	if err := f.repo.MarkVerified(context.Background(), txnRefNo, 1); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := f.repo.MarkVerified(context.Background(), txnRefNo, 2); !errors.Is(err, scylla.ErrConditionFailed) {
		t.Fatalf("second mark = %v, want ErrConditionFailed", err)
	}
	rec, _ := f.repo.GetByRefNo(context.Background(), txnRefNo)
	if rec.VerificationCount != 1 {
		t.Errorf("losing write mutated the row: count = %d", rec.VerificationCount)
	}
}

func TestTxnVerifyWrongCode(t *testing.T) {
	f := newTwoFaFixture()
	txnRefNo := f.open(t)

	if _, err := f.svc.Verify(context.Background(), txnRefNo, "000000"); !errors.Is(err, ErrOTPRejected) {
		t.Fatalf("Verify = %v, want ErrOTPRejected", err)
	}
	rec, _ := f.repo.GetByRefNo(context.Background(), txnRefNo)
	if rec.VerificationCount != 1 {
		t.Errorf("rejected attempt not counted: %d", rec.VerificationCount)
	}
	if rec.OTPVerified {
		t.Error("row marked verified on rejection")
	}
}

func TestTxnVerifyProviderFailureHandsAttemptBack(t *testing.T) {
	f := newTwoFaFixture()
	txnRefNo := f.open(t)
	f.gateway.verifyErr = errBoom

	if _, err := f.svc.Verify(context.Background(), txnRefNo, "123456"); err == nil {
		t.Fatal("provider failure not surfaced")
	}
	rec, _ := f.repo.GetByRefNo(context.Background(), txnRefNo)
	if rec.VerificationCount != 0 {
		t.Errorf("provider failure consumed budget: %d", rec.VerificationCount)
	}
}

func TestTxnVerifyExpired(t *testing.T) {
	f := newTwoFaFixture()
	txnRefNo := f.open(t)
	f.repo.SetGeneration(context.Background(), txnRefNo, "REF-1",
		time.Now().UTC().Add(-10*time.Minute), time.Now().UTC().Add(-5*time.Minute))

	if _, err := f.svc.Verify(context.Background(), txnRefNo, "123456"); !errors.Is(err, ErrExpired) {
		t.Fatalf("Verify = %v, want ErrExpired", err)
	}
}

func TestTxnStatusUnknownRef(t *testing.T) {
	f := newTwoFaFixture()
	if _, err := f.svc.Status(context.Background(), "ghost"); !errors.Is(err, ErrTxnOTPNotFound) {
		t.Fatalf("Status = %v, want ErrTxnOTPNotFound", err)
	}
}
