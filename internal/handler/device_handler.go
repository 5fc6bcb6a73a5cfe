package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"onboarding-service/internal/service"
)

// DeviceHandler serves device binding and biometric endpoints.
type DeviceHandler struct {
	devices *service.DeviceService
}

func NewDeviceHandler(devices *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

func (h *DeviceHandler) RegisterRoutes(r chi.Router) {
	r.Post("/device/bind", h.deviceBind)
	r.Post("/device/biometric", h.setupBiometric)
	r.Delete("/device/biometric", h.disableBiometric)
}

func (h *DeviceHandler) deviceBind(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppUserID string `json:"appUserId"`
		UniqueID  string `json:"uniqueId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.devices.DeviceBind(r.Context(), req.AppUserID, req.UniqueID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "device bound"})
}

func (h *DeviceHandler) setupBiometric(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppUserID string `json:"appUserId"`
		UniqueID  string `json:"uniqueId"`
		PublicKey string `json:"publicKey"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	token, err := h.devices.SetupBiometric(r.Context(), req.AppUserID, req.UniqueID, req.PublicKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"biometricToken": token})
}

func (h *DeviceHandler) disableBiometric(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppUserID string `json:"appUserId"`
		UniqueID  string `json:"uniqueId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.devices.DisableBiometric(r.Context(), req.AppUserID, req.UniqueID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "biometric disabled"})
}
