// Package handler exposes the policy analysis REST surface.
//
// Handlers decode and encode; all business rules live in the service. Tenant
// identity is read from the request context set by the auth middleware and is
// never accepted from the request body or path.
package handler

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"planlens/internal/policy/models"
	"planlens/internal/policy/service"
	id "planlens/pkg/domain"
	dErrors "planlens/pkg/domain-errors"
	"planlens/pkg/platform/httputil"
	"planlens/pkg/requestcontext"
)

// Handler serves the /policies routes.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts the policy routes on the router. The router is expected to
// already carry the auth middleware that resolves the tenant.
func (h *Handler) Register(r chi.Router) {
	r.Route("/policies", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{policyID}", h.get)
		r.Put("/{policyID}", h.update)
		r.Delete("/{policyID}", h.delete)
		r.Get("/{policyID}/file", h.getFile)
	})
}

// analysisResponse is the envelope for single-record responses.
type analysisResponse struct {
	Analysis *models.PolicyAnalysis `json:"analysis"`
	FileURL  string                 `json:"file_url,omitempty"`
}

// listResponse is the envelope for listings.
type listResponse struct {
	Policies []*models.PolicyAnalysis `json:"policies"`
	Total    int                      `json:"total"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var req models.CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body must be valid JSON"))
		return
	}

	result, err := h.service.Create(r.Context(), tenantID, &req)
	if err != nil {
		h.writeError(w, r, "create policy analysis", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, analysisResponse{
		Analysis: result.Analysis,
		FileURL:  result.FileURL,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}

	result, err := h.service.Get(r.Context(), tenantID, policyID)
	if err != nil {
		h.writeError(w, r, "get policy analysis", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, analysisResponse{
		Analysis: result.Analysis,
		FileURL:  result.FileURL,
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}

	var req models.UpdatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body must be valid JSON"))
		return
	}

	updated, err := h.service.Update(r.Context(), tenantID, policyID, &req)
	if err != nil {
		h.writeError(w, r, "update policy analysis", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, analysisResponse{Analysis: updated})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	filter := models.ListFilter{
		Provider: r.URL.Query().Get("provider"),
		PlanType: r.URL.Query().Get("plan_type"),
	}
	policies, err := h.service.List(r.Context(), tenantID, filter)
	if err != nil {
		h.writeError(w, r, "list policy analyses", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Policies: policies,
		Total:    len(policies),
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), tenantID, policyID); err != nil {
		h.writeError(w, r, "delete policy analysis", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getFile(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	policyID, ok := h.policyID(w, r)
	if !ok {
		return
	}

	file, err := h.service.GetFile(r.Context(), tenantID, policyID)
	if err != nil {
		h.writeError(w, r, "get policy document", err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if file.Name != "" {
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.Name})
		w.Header().Set("Content-Disposition", disposition)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Content)
}

// tenant resolves the authenticated tenant or writes a 401.
func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (id.TenantID, bool) {
	tenantID := requestcontext.TenantID(r.Context())
	if tenantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "tenant identity is required"))
		return "", false
	}
	return tenantID, true
}

// policyID parses the path parameter. A malformed ID reads as absence so the
// error surface reveals nothing about what IDs exist.
func (h *Handler) policyID(w http.ResponseWriter, r *http.Request) (id.PolicyID, bool) {
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "policy analysis not found"))
		return id.PolicyID{}, false
	}
	return policyID, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal && h.logger != nil {
		h.logger.ErrorContext(r.Context(), "failed to "+op, "error", err)
	}
	httputil.WriteError(w, err)
}
