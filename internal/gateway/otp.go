package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"onboarding-service/internal/config"
	"onboarding-service/internal/util"
)

// The OTP value never transits this service in plain form outside the
// gateway call; verification round-trips through the provider.
type OTPGateway interface {
	Send(ctx context.Context, channel, target string) (refNo string, err error)
	Verify(ctx context.Context, refNo, target, otp string) (bool, error)
}

func NewOTPGateway(cfg *config.Config) OTPGateway {
	if cfg.Gateway.MockOTP {
		return &mockOTPGateway{}
	}
	return &otpGateway{
		baseURL: cfg.Gateway.OTPGatewayURL,
		timeout: cfg.Gateway.CallTimeout,
		http:    &http.Client{Timeout: cfg.Gateway.CallTimeout},
	}
}

type otpGateway struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

func (g *otpGateway) Send(ctx context.Context, channel, target string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"channel": channel,
		"target":  target,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode otp send: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/otp/send", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build otp send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("otp send: %w", ErrGatewayTimeout)
		}
		return "", fmt.Errorf("otp send: %w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("otp send returned %d: %w", resp.StatusCode, ErrGatewayUnavailable)
	}

	var out struct {
		RefNo string `json:"refNo"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode otp send response: %w", err)
	}

	util.Debug("otp dispatched", zap.String("channel", channel), zap.String("ref_no", out.RefNo))
	return out.RefNo, nil
}

func (g *otpGateway) Verify(ctx context.Context, refNo, target, otp string) (bool, error) {
	payload, err := json.Marshal(map[string]string{
		"refNo":  refNo,
		"target": target,
		"otp":    otp,
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode otp verify: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/otp/verify", bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("failed to build otp verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, fmt.Errorf("otp verify: %w", ErrGatewayTimeout)
		}
		return false, fmt.Errorf("otp verify: %w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("otp verify returned %d: %w", resp.StatusCode, ErrGatewayUnavailable)
	}

	var out struct {
		Valid bool `json:"valid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode otp verify response: %w", err)
	}
	return out.Valid, nil
}

// mockOTPGateway short-circuits delivery in non-production environments.
// Any target accepts the fixed code; refNos are still unique per send.
type mockOTPGateway struct{}

const mockOTPValue = "123456"

func (g *mockOTPGateway) Send(ctx context.Context, channel, target string) (string, error) {
	refNo := "MOCK-" + uuid.NewString()
	util.Debug("mock otp issued", zap.String("channel", channel), zap.String("ref_no", refNo))
	return refNo, nil
}

func (g *mockOTPGateway) Verify(ctx context.Context, refNo, target, otp string) (bool, error) {
	return otp == mockOTPValue, nil
}
