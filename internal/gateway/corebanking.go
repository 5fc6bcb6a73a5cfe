package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"onboarding-service/internal/config"
	"onboarding-service/internal/util"
)

// Timeout and transport failures are distinguished so callers can map them
// to the bank-unreachable error surface instead of a generic failure.
var (
	ErrGatewayTimeout     = errors.New("gateway call timed out")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)

// Lookup result codes returned by the core-banking customer search.
const (
	CodeUserExist            = "USER_EXIST"
	CodeMultipleCustomerData = "MULTIPLE_CUSTOMER_DATA"
	CodeNoData               = "NO_DATA"
)

// CustomerRecord is one ETB match from the bank's customer master.
type CustomerRecord struct {
	CustomerID    string `json:"customerId"`
	BosCode       string `json:"bosCode"`
	FullName      string `json:"fullName"`
	PanCardNumber string `json:"panCardNumber"`
	DateOfBirth   string `json:"dateOfBirth"`
	ContactNumber string `json:"contactNumber"`
	AmlFlag       string `json:"amlFlag"`
	FatcaFlag     string `json:"fatcaFlag"`
	Segment       string `json:"segment"`
}

// CustomerLookupResult is the typed envelope of the AML/FATCA customer
// search. BankErrorCode carries the bank-side failure code verbatim when
// Code is empty.
type CustomerLookupResult struct {
	Code          string           `json:"code"`
	Customers     []CustomerRecord `json:"customers"`
	BankErrorCode string           `json:"bankErrorCode"`
}

// CustomerProfile is the bank-side master record backing the review
// projection: address, personal, professional and bank-account blocks.
type CustomerProfile struct {
	FullName      string `json:"fullName"`
	DateOfBirth   string `json:"dateOfBirth"`
	PanCardNumber string `json:"panCardNumber"`
	Gender        string `json:"gender"`
	FatherName    string `json:"fatherName"`
	MaritalStatus string `json:"maritalStatus"`

	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	Country      string `json:"country"`

	Occupation    string `json:"occupation"`
	IncomeSlab    string `json:"incomeSlab"`
	SourceOfFunds string `json:"sourceOfFunds"`

	AccountNumber string `json:"accountNumber"`
	IFSCCode      string `json:"ifscCode"`
	AccountType   string `json:"accountType"`
	BankName      string `json:"bankName"`
	HolderName    string `json:"holderName"`

	AdvisoryCustomer string `json:"advisoryCustomer"`
	DomesticWealthfy string `json:"domesticWealthfy"`
	DematAccNumber   string `json:"dematAccNumber"`
	DematDpID        string `json:"dematDpId"`
}

// CoreBanking is the ETB (existing-to-bank) customer search client.
type CoreBanking interface {
	FetchCustomerAccountAmlFatcaDetails(ctx context.Context, pan, dob, contactNumber string) (*CustomerLookupResult, error)
	FetchCustomerProfile(ctx context.Context, bosCode string) (*CustomerProfile, error)
}

type coreBankingClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

func NewCoreBanking(cfg *config.Config) CoreBanking {
	return &coreBankingClient{
		baseURL: cfg.Gateway.CoreBankingURL,
		timeout: cfg.Gateway.CallTimeout,
		http: &http.Client{
			Timeout: cfg.Gateway.CallTimeout,
		},
	}
}

type customerSearchRequest struct {
	PanCardNumber string `json:"panCardNumber"`
	DateOfBirth   string `json:"dateOfBirth"`
	ContactNumber string `json:"contactNumber"`
}

func (c *coreBankingClient) FetchCustomerAccountAmlFatcaDetails(ctx context.Context, pan, dob, contactNumber string) (*CustomerLookupResult, error) {
	body, err := json.Marshal(customerSearchRequest{
		PanCardNumber: pan,
		DateOfBirth:   dob,
		ContactNumber: contactNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode customer search: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/customer/amlfatca/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build customer search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("customer search: %w", ErrGatewayTimeout)
		}
		return nil, fmt.Errorf("customer search: %w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("customer search returned %d: %w", resp.StatusCode, ErrGatewayUnavailable)
	}

	var result CustomerLookupResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode customer search response: %w", err)
	}

	util.Debug("core banking customer search completed",
		zap.String("code", result.Code),
		zap.Int("matches", len(result.Customers)),
		zap.String("bank_error_code", result.BankErrorCode))

	return &result, nil
}

func (c *coreBankingClient) FetchCustomerProfile(ctx context.Context, bosCode string) (*CustomerProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/customer/profile/"+bosCode, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("customer profile: %w", ErrGatewayTimeout)
		}
		return nil, fmt.Errorf("customer profile: %w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("customer profile returned %d: %w", resp.StatusCode, ErrGatewayUnavailable)
	}

	var profile CustomerProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode customer profile: %w", err)
	}
	return &profile, nil
}
