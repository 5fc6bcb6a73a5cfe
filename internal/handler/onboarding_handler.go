package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"onboarding-service/internal/service"
	"onboarding-service/internal/util"
)

// OnboardingHandler serves identity resolution, the IDCOM callback and
// poll endpoints, review, and nominee registration.
type OnboardingHandler struct {
	onboarding *service.OnboardingService
	review     *service.ReviewService
}

func NewOnboardingHandler(onboarding *service.OnboardingService, review *service.ReviewService) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding, review: review}
}

func (h *OnboardingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/onboarding/resolve", h.resolveIdentity)
	r.Post("/onboarding/idcom/callback", h.idcomCallback)
	r.Get("/onboarding/idcom/status", h.pollCallback)
	r.Get("/onboarding/review/{appUserId}", h.reviewProjection)
	r.Post("/onboarding/nominee", h.registerNominee)
	r.Get("/onboarding/nominee/{accountId}", h.listNominees)
}

func (h *OnboardingHandler) resolveIdentity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppUserID string `json:"appUserId"`
		Pan       string `json:"pan"`
		DOB       string `json:"dob"`
		DeviceID  string `json:"deviceId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Pan = util.SanitizeInput(req.Pan)

	result, err := h.onboarding.ResolveIdentity(r.Context(), req.AppUserID, req.Pan, req.DOB, req.DeviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: result.Success, Data: result, Message: result.Remarks})
}

func (h *OnboardingHandler) idcomCallback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthCode  string `json:"authCode"`
		Success   bool   `json:"success"`
		ErrorCode int    `json:"errorCode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.onboarding.HandleIdcomCallback(r.Context(), req.AuthCode, req.Success, req.ErrorCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: result.Success, Data: result})
}

func (h *OnboardingHandler) pollCallback(w http.ResponseWriter, r *http.Request) {
	appUserID := r.URL.Query().Get("appUserId")
	authCode := r.URL.Query().Get("authCode")
	if appUserID == "" || authCode == "" {
		writeError(w, service.ErrBadRequest)
		return
	}

	state, err := h.onboarding.PollCallback(r.Context(), appUserID, authCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, state)
}

func (h *OnboardingHandler) reviewProjection(w http.ResponseWriter, r *http.Request) {
	appUserID := chi.URLParam(r, "appUserId")
	projection, err := h.review.Projection(r.Context(), appUserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, projection)
}

func (h *OnboardingHandler) registerNominee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppUserID     string `json:"appUserId"`
		AccountID     string `json:"accountId"`
		Relationship  string `json:"relationship"`
		SharePercent  int    `json:"sharePercent"`
		FullName      string `json:"fullName"`
		DateOfBirth   string `json:"dateOfBirth"`
		PanCardNumber string `json:"panCardNumber"`
		IsMinor       bool   `json:"isMinor"`
		GuardianName  string `json:"guardianName"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	nominee, err := h.onboarding.RegisterNominee(r.Context(), req.AppUserID, &service.NomineeRequest{
		AccountID:     req.AccountID,
		Relationship:  req.Relationship,
		SharePercent:  req.SharePercent,
		FullName:      req.FullName,
		DateOfBirth:   req.DateOfBirth,
		PanCardNumber: req.PanCardNumber,
		IsMinor:       req.IsMinor,
		GuardianName:  req.GuardianName,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, nominee)
}

func (h *OnboardingHandler) listNominees(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	nominees, err := h.onboarding.ListNominees(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, nominees)
}
