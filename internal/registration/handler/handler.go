// Package handler wires the registration endpoints to the orchestrator. The
// layer stays thin: decode, delegate, translate errors, encode.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"citizenly/internal/registration/models"
	"citizenly/internal/token"
	dErrors "citizenly/pkg/domain-errors"
	"citizenly/pkg/platform/httputil"
	"citizenly/pkg/requestcontext"
)

// Service is the registration orchestrator interface.
type Service interface {
	Register(ctx context.Context, req models.SignupRequest) (*models.Profile, error)
}

// JurisdictionService answers advisory admin-status queries.
type JurisdictionService interface {
	AdminStatus(ctx context.Context, code string) (bool, error)
}

// Handler serves the signup and jurisdiction endpoints.
type Handler struct {
	service       Service
	jurisdictions JurisdictionService
	receipts      *token.Issuer
	logger        *slog.Logger
}

func New(service Service, jurisdictions JurisdictionService, receipts *token.Issuer, logger *slog.Logger) *Handler {
	return &Handler{
		service:       service,
		jurisdictions: jurisdictions,
		receipts:      receipts,
		logger:        logger,
	}
}

// Register mounts registration endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/signup", h.HandleSignup)
	r.Get("/jurisdictions/{code}/admin-status", h.HandleAdminStatus)
}

// SignupResponse is the 201 body. The receipt is a signed token the approval
// workflow uses to reference this registration.
type SignupResponse struct {
	Profile *models.Profile `json:"profile"`
	Receipt string          `json:"receipt,omitempty"`
}

// AdminStatusResponse reports whether a jurisdiction already has an admin.
// The answer is advisory; signup remains the authoritative check.
type AdminStatusResponse struct {
	JurisdictionCode string `json:"jurisdiction_code"`
	HasAdmin         bool   `json:"has_admin"`
}

// HandleSignup handles POST /signup.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.Decode[models.SignupRequest](w, r)
	if !ok {
		return
	}

	profile, err := h.service.Register(ctx, req)
	if err != nil {
		// Terminal outcomes are logged and audited by the service; the
		// handler only translates.
		httputil.WriteError(w, err)
		return
	}

	resp := SignupResponse{Profile: profile}
	if h.receipts != nil {
		receipt, rerr := h.receipts.Receipt(profile.ID, string(profile.Status), requestcontext.Now(ctx))
		if rerr != nil {
			// The registration committed; a receipt failure must not turn a
			// success into an error.
			h.logger.ErrorContext(ctx, "receipt signing failed",
				"request_id", requestID,
				"profile_id", profile.ID.String(),
				"error", rerr,
			)
		} else {
			resp.Receipt = receipt
		}
	}

	h.logger.InfoContext(ctx, "signup handled",
		"request_id", requestID,
		"profile_id", profile.ID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// HandleAdminStatus handles GET /jurisdictions/{code}/admin-status.
func (h *Handler) HandleAdminStatus(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "jurisdiction code is required"))
		return
	}

	hasAdmin, err := h.jurisdictions.AdminStatus(r.Context(), code)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, AdminStatusResponse{
		JurisdictionCode: code,
		HasAdmin:         hasAdmin,
	})
}
