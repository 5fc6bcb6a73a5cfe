package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"onboarding-service/internal/models"
	"onboarding-service/internal/service"
)

// TxnHandler serves the transaction 2FA endpoints.
type TxnHandler struct {
	twofa *service.TxnTwoFaService
}

func NewTxnHandler(twofa *service.TxnTwoFaService) *TxnHandler {
	return &TxnHandler{twofa: twofa}
}

func (h *TxnHandler) RegisterRoutes(r chi.Router) {
	r.Post("/txn/otp", h.create)
	r.Post("/txn/otp/{txnRefNo}/resend", h.resend)
	r.Post("/txn/otp/{txnRefNo}/verify", h.verify)
	r.Get("/txn/otp/{txnRefNo}", h.status)
}

func (h *TxnHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID     string   `json:"accountId"`
		Channel       string   `json:"channel"`
		TargetContact string   `json:"targetContact"`
		CartItemIDs   []string `json:"cartItemIds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	txnRefNo, err := h.twofa.Create(r.Context(), req.AccountID, models.TwoFaChannel(req.Channel), req.TargetContact, req.CartItemIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]string{"txnRefNo": txnRefNo})
}

func (h *TxnHandler) resend(w http.ResponseWriter, r *http.Request) {
	txnRefNo := chi.URLParam(r, "txnRefNo")
	if err := h.twofa.Resend(r.Context(), txnRefNo); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "otp resent"})
}

func (h *TxnHandler) verify(w http.ResponseWriter, r *http.Request) {
	txnRefNo := chi.URLParam(r, "txnRefNo")
	var req struct {
		OTP string `json:"otp"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	cartItemIDs, err := h.twofa.Verify(r.Context(), txnRefNo, req.OTP)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"verifiedCartItemIds": cartItemIDs})
}

func (h *TxnHandler) status(w http.ResponseWriter, r *http.Request) {
	txnRefNo := chi.URLParam(r, "txnRefNo")
	rec, err := h.twofa.Status(r.Context(), txnRefNo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"txnRefNo":          rec.TxnRefNo,
		"channel":           rec.Channel,
		"retryCount":        rec.RetryCount,
		"verificationCount": rec.VerificationCount,
		"otpVerified":       rec.OTPVerified,
	})
}
