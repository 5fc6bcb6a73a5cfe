package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"onboarding-service/internal/service"
	"onboarding-service/internal/util"
)

// AuthHandler serves OTP, login, token refresh and MPIN endpoints.
type AuthHandler struct {
	otp   *service.OTPService
	login *service.LoginService
	mpin  *service.MPINService
}

func NewAuthHandler(otp *service.OTPService, login *service.LoginService, mpin *service.MPINService) *AuthHandler {
	return &AuthHandler{otp: otp, login: login, mpin: mpin}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/otp/generate", h.generateOTP)
	r.Post("/otp/verify", h.verifyOTP)
	r.Post("/login", h.handleLogin)
	r.Post("/token/refresh", h.refreshToken)
	r.Post("/mpin", h.setMPIN)
	r.Post("/mpin/verify", h.verifyMPIN)
}

type deviceBody struct {
	UniqueID    string `json:"uniqueId"`
	PublicKey   string `json:"publicKey"`
	OSName      string `json:"osName"`
	VersionCode string `json:"versionCode"`
	SDKVersion  string `json:"sdkVersion"`
}

func (d *deviceBody) toRegistration() *service.DeviceRegistration {
	return &service.DeviceRegistration{
		UniqueID:    d.UniqueID,
		PublicKey:   d.PublicKey,
		OSName:      d.OSName,
		VersionCode: d.VersionCode,
		SDKVersion:  d.SDKVersion,
	}
}

func (h *AuthHandler) generateOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactNumber string `json:"contactNumber"`
		CountryCode   string `json:"countryCode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.ContactNumber = util.SanitizeInput(req.ContactNumber)

	appUserID, err := h.otp.GenerateOTP(r.Context(), req.ContactNumber, req.CountryCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"appUserId": appUserID})
}

func (h *AuthHandler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactNumber string     `json:"contactNumber"`
		CountryCode   string     `json:"countryCode"`
		OTP           string     `json:"otp"`
		Device        deviceBody `json:"device"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.otp.VerifyOTP(r.Context(), req.ContactNumber, req.CountryCode, req.OTP, req.Device.toRegistration())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppUserID    string `json:"appUserId"`
		DeviceID     string `json:"deviceId"`
		Secret       string `json:"secret"`
		InternalUser bool   `json:"internalUser"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.login.Login(r.Context(), req.AppUserID, req.DeviceID, req.Secret, req.InternalUser)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (h *AuthHandler) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.login.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (h *AuthHandler) setMPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppUserID      string `json:"appUserId"`
		DeviceUniqueID string `json:"deviceUniqueId"`
		MPIN           string `json:"mpin"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.mpin.SetMPIN(r.Context(), req.AppUserID, req.DeviceUniqueID, req.MPIN); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "mpin updated"})
}

func (h *AuthHandler) verifyMPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppUserID string `json:"appUserId"`
		MPIN      string `json:"mpin"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	ok, err := h.mpin.VerifyMPIN(r.Context(), req.AppUserID, req.MPIN)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, service.ErrInvalidCredentials)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "mpin verified"})
}
