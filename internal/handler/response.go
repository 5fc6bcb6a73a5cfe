package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"onboarding-service/internal/repository/scylla"
	"onboarding-service/internal/service"
	"onboarding-service/internal/token"
	"onboarding-service/internal/util"
)

// Response is the uniform API envelope. SystemCode carries the stable
// machine-readable rejection code when one applies.
type Response struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Message    string      `json:"message,omitempty"`
	SystemCode int         `json:"systemCode,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		util.Error("failed to encode response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

// writeError maps service sentinels onto HTTP statuses. Internal faults
// stay opaque: the client sees a generic message, the log sees the cause.
func writeError(w http.ResponseWriter, err error) {
	status := getStatusCode(err)
	resp := Response{Success: false, Error: err.Error(), SystemCode: getSystemCode(err)}
	if status == http.StatusInternalServerError {
		util.Error("request failed", zap.Error(err))
		resp.Error = "something went wrong"
	}
	writeJSON(w, status, resp)
}

func getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrBadRequest),
		errors.Is(err, service.ErrWeakSecret),
		errors.Is(err, service.ErrSecretReuse),
		errors.Is(err, service.ErrTooSoon),
		errors.Is(err, service.ErrRetryLimitExceeded),
		errors.Is(err, service.ErrExpired),
		errors.Is(err, service.ErrOTPRejected),
		errors.Is(err, service.ErrDeviceLimitExceeded),
		errors.Is(err, service.ErrPanMismatch),
		errors.Is(err, service.ErrDobMismatch),
		errors.Is(err, service.ErrRestartOnboarding):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAttemptsExceededDaily):
		return service.CodeAttemptsExceededDaily
	case errors.Is(err, service.ErrVerificationLimitExceeded):
		return service.CodeVerificationLimit
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrTxnOTPNotFound),
		errors.Is(err, service.ErrCallbackRecordNotFound),
		errors.Is(err, service.ErrDeviceNotOwned):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, token.ErrInvalidToken),
		errors.Is(err, token.ErrExpiredToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrUserInactive):
		return http.StatusForbidden
	case errors.Is(err, service.ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, service.ErrPanAlreadyLinked),
		errors.Is(err, service.ErrOTPAlreadyUsed),
		errors.Is(err, scylla.ErrConditionFailed):
		return http.StatusConflict
	case errors.Is(err, service.ErrBankUnreachable):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrGatewayTimeout):
		return http.StatusGatewayTimeout
	default:
		// ErrDataDiscrepancy, ErrETBSyncFailed, ErrAuditTrailMissing and
		// everything unexpected.
		return http.StatusInternalServerError
	}
}

func getSystemCode(err error) int {
	switch {
	case errors.Is(err, service.ErrAttemptsExceededDaily):
		return service.CodeAttemptsExceededDaily
	case errors.Is(err, service.ErrVerificationLimitExceeded):
		return service.CodeVerificationLimit
	default:
		return 0
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "malformed request body"})
		return false
	}
	return true
}
