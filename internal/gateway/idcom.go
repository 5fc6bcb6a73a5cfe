package gateway

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"onboarding-service/internal/config"
	"onboarding-service/internal/util"
)

// IdcomIdentity is the decrypted identity assertion from the provider's
// idToken: the bank-verified customer the user authenticated as.
type IdcomIdentity struct {
	CustomerID    string `json:"customerId"`
	PanCardNumber string `json:"panCardNumber"`
	MobileNumber  string `json:"mobileNumber"`
	FullName      string `json:"fullName"`
}

// AuthCodeRequest carries the fields the provider needs to start an
// authorization round trip for a device-bound user.
type AuthCodeRequest struct {
	AppUserID     string
	DeviceID      string
	ContactNumber string
	RedirectURI   string
}

// AuthCodeResult is the provider's redirect handle. AuthCode is returned
// raw; callers store it base64-encoded.
type AuthCodeResult struct {
	AuthCode    string
	RedirectURL string
}

// Idcom is the bank identity-provider client. Implementation is selected
// by config: the internal variant talks over the bank network without the
// public token exchange, the external variant does the full OAuth-style
// code-for-token round trip.
type Idcom interface {
	GetAuthCode(ctx context.Context, req *AuthCodeRequest) (*AuthCodeResult, error)
	GetIDToken(ctx context.Context, authCode string) (string, error)
	DecryptIDToken(ctx context.Context, idToken string) (*IdcomIdentity, error)
}

func NewIdcom(cfg *config.Config) Idcom {
	if cfg.Gateway.IdcomEnvironment == "internal" {
		return newInternalIdcom(cfg)
	}
	return newExternalIdcom(cfg)
}

type externalIdcom struct {
	baseURL string
	scope   string
	http    *http.Client
	timeout time.Duration
}

func newExternalIdcom(cfg *config.Config) Idcom {
	return &externalIdcom{
		baseURL: cfg.Gateway.IdcomURL,
		scope:   cfg.Gateway.IdcomScope,
		timeout: cfg.Gateway.CallTimeout,
		http:    &http.Client{Timeout: cfg.Gateway.CallTimeout},
	}
}

func (g *externalIdcom) GetAuthCode(ctx context.Context, req *AuthCodeRequest) (*AuthCodeResult, error) {
	payload, err := json.Marshal(map[string]string{
		"mobileNumber": req.ContactNumber,
		"deviceId":     req.DeviceID,
		"redirectUri":  req.RedirectURI,
		"scope":        g.scope,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode authcode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/oauth/authcode", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build authcode request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("idcom authcode: %w", ErrGatewayTimeout)
		}
		return nil, fmt.Errorf("idcom authcode: %w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("idcom authcode returned %d: %w", resp.StatusCode, ErrGatewayUnavailable)
	}

	var out struct {
		AuthCode    string `json:"authCode"`
		RedirectURL string `json:"redirectUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode authcode response: %w", err)
	}

	util.Debug("idcom authcode issued", zap.String("device_id", req.DeviceID))
	return &AuthCodeResult{AuthCode: out.AuthCode, RedirectURL: out.RedirectURL}, nil
}

func (g *externalIdcom) GetIDToken(ctx context.Context, authCode string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", authCode)
	form.Set("scope", g.scope)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("idcom token exchange: %w", ErrGatewayTimeout)
		}
		return "", fmt.Errorf("idcom token exchange: %w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("idcom token exchange returned %d: %w", resp.StatusCode, ErrGatewayUnavailable)
	}

	var out struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	return out.IDToken, nil
}

func (g *externalIdcom) DecryptIDToken(ctx context.Context, idToken string) (*IdcomIdentity, error) {
	payload, err := json.Marshal(map[string]string{"idToken": idToken})
	if err != nil {
		return nil, fmt.Errorf("failed to encode decrypt request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/oauth/token/decrypt", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build decrypt request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("idcom token decrypt: %w", ErrGatewayTimeout)
		}
		return nil, fmt.Errorf("idcom token decrypt: %w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("idcom token decrypt returned %d: %w", resp.StatusCode, ErrGatewayUnavailable)
	}

	var identity IdcomIdentity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}
	return &identity, nil
}

// internalIdcom runs inside the bank network: the provider pushes the
// decoded identity directly, so token exchange and decryption collapse to
// local steps.
type internalIdcom struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

func newInternalIdcom(cfg *config.Config) Idcom {
	return &internalIdcom{
		baseURL: cfg.Gateway.IdcomURL,
		timeout: cfg.Gateway.CallTimeout,
		http:    &http.Client{Timeout: cfg.Gateway.CallTimeout},
	}
}

func (g *internalIdcom) GetAuthCode(ctx context.Context, req *AuthCodeRequest) (*AuthCodeResult, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate auth code: %w", err)
	}
	code := hex.EncodeToString(buf)

	redirect := fmt.Sprintf("%s/internal/authorize?code=%s&device=%s",
		g.baseURL, url.QueryEscape(code), url.QueryEscape(req.DeviceID))
	return &AuthCodeResult{AuthCode: code, RedirectURL: redirect}, nil
}

func (g *internalIdcom) GetIDToken(ctx context.Context, authCode string) (string, error) {
	// Internal flow skips the public exchange; the code doubles as the
	// opaque token handed to the identity lookup.
	return base64.StdEncoding.EncodeToString([]byte(authCode)), nil
}

func (g *internalIdcom) DecryptIDToken(ctx context.Context, idToken string) (*IdcomIdentity, error) {
	payload, err := json.Marshal(map[string]string{"token": idToken})
	if err != nil {
		return nil, fmt.Errorf("failed to encode identity request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/internal/identity", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build identity request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("idcom identity: %w", ErrGatewayTimeout)
		}
		return nil, fmt.Errorf("idcom identity: %w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("idcom identity returned %d: %w", resp.StatusCode, ErrGatewayUnavailable)
	}

	var identity IdcomIdentity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}
	return &identity, nil
}
