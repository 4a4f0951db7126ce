package validation

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/forgecp/forge/internal/apierr"
	"github.com/forgecp/forge/internal/httpserver"
)

// Handler provides HTTP handlers for the validation-test catalog and runs.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a validation Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes returns a chi.Router with all validation routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/tests", h.handleUpsertTest)
	r.Get("/tests", h.handleCatalog)
	r.Delete("/tests/{id}", h.handleDisableTest)
	r.Post("/runs/{id}/complete", h.handleCompleteRun)
	r.Get("/runs", h.handleLatestRuns)
	return r
}

func (h *Handler) handleUpsertTest(w http.ResponseWriter, r *http.Request) {
	var req UpsertTestRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	t, err := h.service.UpsertTest(r.Context(), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, t)
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	tests, err := h.service.Catalog(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, tests)
}

func (h *Handler) handleDisableTest(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid test id")
		return
	}
	if err := h.service.Disable(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCompleteRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid run id")
		return
	}

	var req CompleteRunRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	run, err := h.service.CompleteRun(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, run)
}

func (h *Handler) handleLatestRuns(w http.ResponseWriter, r *http.Request) {
	machineID := r.URL.Query().Get("machine_id")
	if machineID == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "machine_id query parameter is required")
		return
	}
	result, done, err := h.service.ResultForMachine(r.Context(), machineID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, struct {
		Done   bool   `json:"done"`
		Passed bool   `json:"passed,omitempty"`
		Summary string `json:"summary,omitempty"`
	}{Done: done, Passed: result.Passed, Summary: result.Summary})
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		httpserver.RespondError(w, apierr.HTTPStatus(err), apierr.Code(err), apiErr.Message)
		return
	}
	h.logger.Error("unhandled validation error", "error", err)
	httpserver.RespondError(w, http.StatusInternalServerError, "internal", "internal error")
}
