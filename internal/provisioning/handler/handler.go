// Package handler exposes the provisioning flows over HTTP. Thin by design:
// decode, delegate, encode. All orchestration lives in the service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	patientmodels "caretrip/internal/patient/models"
	profilemodels "caretrip/internal/profile/models"
	"caretrip/internal/provisioning/models"
	rolemodels "caretrip/internal/role/models"
	"caretrip/pkg/domain"
	dErrors "caretrip/pkg/domain-errors"
	"caretrip/pkg/platform/httputil"
	"caretrip/pkg/requestcontext"
)

// Service is the provisioning surface the handler delegates to.
type Service interface {
	ProvisionTeamAccount(ctx context.Context, req models.TeamAccountRequest) (*models.TeamAccount, error)
	GetTeamAccount(ctx context.Context, profileID domain.ProfileID) (*models.TeamAccount, error)
	DeprovisionTeamAccount(ctx context.Context, profileID domain.ProfileID) (*models.Deprovisioned, error)
	ProvisionPatient(ctx context.Context, req models.PatientRequest) (*models.PatientAccount, error)
	UpdatePatient(ctx context.Context, id domain.PatientID, update models.PatientUpdate) (*models.PatientAccount, error)
}

// Handler handles the provisioning endpoints.
type Handler struct {
	svc          Service
	logger       *slog.Logger
	requireActor func(http.Handler) http.Handler
	requireAdmin func(http.Handler) http.Handler
}

// New creates a provisioning Handler. requireActor authenticates the calling
// operator; requireAdmin additionally guards destructive endpoints.
func New(svc Service, logger *slog.Logger, requireActor, requireAdmin func(http.Handler) http.Handler) *Handler {
	return &Handler{svc: svc, logger: logger, requireActor: requireActor, requireAdmin: requireAdmin}
}

// Register mounts the provisioning routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Use(h.requireActor)

		r.Post("/team/accounts", h.handleProvisionTeam)
		r.Get("/team/accounts/{profileID}", h.handleGetTeam)
		r.With(h.requireAdmin).Delete("/team/accounts/{profileID}", h.handleDeprovisionTeam)

		r.Post("/patients", h.handleProvisionPatient)
		r.Put("/patients/{patientID}", h.handleUpdatePatient)
	})
}

type teamAccountRequest struct {
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
}

type teamAccountResponse struct {
	Profile profilemodels.Profile       `json:"profile"`
	Roles   []rolemodels.RoleDefinition `json:"roles"`
}

func (h *Handler) handleProvisionTeam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req teamAccountRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	account, err := h.svc.ProvisionTeamAccount(ctx, models.TeamAccountRequest{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Roles:       req.Roles,
	})
	if err != nil {
		h.writeFlowError(ctx, w, "team account provisioning failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, teamAccountResponse{
		Profile: account.Profile,
		Roles:   account.Roles,
	})
}

func (h *Handler) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	profileID, err := domain.ParseProfileID(chi.URLParam(r, "profileID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	account, err := h.svc.GetTeamAccount(r.Context(), profileID)
	if err != nil {
		h.writeFlowError(r.Context(), w, "team account lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, teamAccountResponse{
		Profile: account.Profile,
		Roles:   account.Roles,
	})
}

func (h *Handler) handleDeprovisionTeam(w http.ResponseWriter, r *http.Request) {
	profileID, err := domain.ParseProfileID(chi.URLParam(r, "profileID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if _, err := h.svc.DeprovisionTeamAccount(r.Context(), profileID); err != nil {
		h.writeFlowError(r.Context(), w, "team account deprovisioning failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type patientRequest struct {
	FullName         string `json:"full_name"`
	ContactEmail     string `json:"contact_email"`
	Phone            string `json:"phone"`
	Country          string `json:"country"`
	PortalCredential string `json:"portal_credential"`
}

type patientUpdateRequest struct {
	FullName         *string `json:"full_name"`
	ContactEmail     *string `json:"contact_email"`
	Phone            *string `json:"phone"`
	Country          *string `json:"country"`
	PortalCredential string  `json:"portal_credential"`
}

type patientResponse struct {
	Patient      patientmodels.Patient `json:"patient"`
	PortalAccess string                `json:"portal_access"`
}

func (h *Handler) handleProvisionPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req patientRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	account, err := h.svc.ProvisionPatient(ctx, models.PatientRequest{
		FullName:         req.FullName,
		ContactEmail:     req.ContactEmail,
		Phone:            req.Phone,
		Country:          req.Country,
		PortalCredential: req.PortalCredential,
	})
	if err != nil {
		h.writeFlowError(ctx, w, "patient provisioning failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, patientResponse{
		Patient:      account.Patient,
		PortalAccess: string(account.Disposition),
	})
}

func (h *Handler) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := domain.ParsePatientID(chi.URLParam(r, "patientID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req patientUpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	account, err := h.svc.UpdatePatient(r.Context(), patientID, models.PatientUpdate{
		FullName:              req.FullName,
		ContactEmail:          req.ContactEmail,
		Phone:                 req.Phone,
		Country:               req.Country,
		GrantPortalCredential: req.PortalCredential,
	})
	if err != nil {
		h.writeFlowError(r.Context(), w, "patient update failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, patientResponse{
		Patient:      account.Patient,
		PortalAccess: string(account.Disposition),
	})
}

// writeFlowError logs at a severity matching the error class before handing
// the response to httputil. Client mistakes are noise at error level.
func (h *Handler) writeFlowError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	attrs := []any{
		"code", string(dErrors.CodeOf(err)),
		"error", err.Error(),
		"request_id", requestcontext.RequestID(ctx),
	}
	switch {
	case dErrors.HasCode(err, dErrors.CodeInvalidRequest),
		dErrors.HasCode(err, dErrors.CodeUnknownRole),
		dErrors.HasCode(err, dErrors.CodeNotFound),
		dErrors.HasCode(err, dErrors.CodeConflict),
		dErrors.HasCode(err, dErrors.CodeCrossDomain),
		dErrors.HasCode(err, dErrors.CodeBadRequest):
		h.logger.WarnContext(ctx, msg, attrs...)
	default:
		h.logger.ErrorContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
