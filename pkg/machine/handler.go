package machine

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/forgecp/forge/internal/apierr"
	"github.com/forgecp/forge/internal/auth"
	"github.com/forgecp/forge/internal/httpserver"
)

// Handler provides HTTP handlers for the managed-hosts API.
type Handler struct {
	service        *Service
	logger         *slog.Logger
	phoneHomeLimit *auth.RateLimiter
}

// NewHandler creates a machine Handler. phoneHomeLimit may be nil, in which
// case phone-home calls are not throttled (used by tests).
func NewHandler(service *Service, logger *slog.Logger, phoneHomeLimit *auth.RateLimiter) *Handler {
	return &Handler{service: service, logger: logger, phoneHomeLimit: phoneHomeLimit}
}

// Routes returns a chi.Router with all managed-host routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleRegister)
	r.Get("/", h.handleFindByIDs)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Post("/phone-home", h.handlePhoneHome)
		r.Post("/allocate", h.handleAllocate)
		r.Post("/release", h.handleRelease)
		r.Post("/clear", h.handleClear)
		r.Post("/health-alerts", h.handleReportHealthAlert)
		r.Get("/health-alerts", h.handleListHealthAlerts)
		r.Get("/health-overrides", h.handleGetHealthOverride)
		r.Put("/health-overrides", h.handleSetHealthOverride)
		r.Delete("/health-overrides", h.handleClearHealthOverride)
	})
	return r
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	host, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, host)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	host, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, host)
}

// handleFindByIDs answers GET /machines?ids=a,b,c for bulk lookups, the
// pattern the fleet-allocation planner uses to resolve a batch of candidate
// hosts in one round trip instead of N.
func (h *Handler) handleFindByIDs(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "ids query parameter is required")
		return
	}
	ids := splitCSV(raw)
	hosts, err := h.service.FindByIDs(r.Context(), ids)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, hosts)
}

func (h *Handler) handlePhoneHome(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.phoneHomeLimit != nil {
		result, err := h.phoneHomeLimit.Check(r.Context(), id)
		if err != nil {
			h.logger.Error("checking phone-home rate limit", "machine_id", id, "error", err)
		} else if !result.Allowed {
			w.Header().Set("Retry-After", result.RetryAt.Format(http.TimeFormat))
			httpserver.RespondError(w, http.StatusTooManyRequests, "rate_limited", "phone-home rate limit exceeded")
			return
		}
		if err := h.phoneHomeLimit.Record(r.Context(), id); err != nil {
			h.logger.Error("recording phone-home rate limit", "machine_id", id, "error", err)
		}
	}

	var req PhoneHomeRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	host, err := h.service.PhoneHome(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, host)
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		InstanceID uuid.UUID `json:"instance_id" validate:"required"`
	}
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}
	host, err := h.service.Allocate(r.Context(), id, body.InstanceID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, host)
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	host, err := h.service.Release(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, host)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req TransitionRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	host, err := h.service.Clear(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, host)
}

func (h *Handler) handleReportHealthAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller := auth.FromContext(r.Context())
	if caller == nil || !caller.IsAgent() {
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", "only agents may report health alerts")
		return
	}

	var req ReportHealthAlertRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	alert, err := h.service.ReportHealthAlert(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, alert)
}

func (h *Handler) handleListHealthAlerts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	alerts, err := h.service.ListHealthAlerts(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, alerts)
}

func (h *Handler) handleGetHealthOverride(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	override, err := h.service.GetHealthOverride(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, override)
}

func (h *Handler) handleSetHealthOverride(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller := auth.FromContext(r.Context())
	if caller == nil || caller.IsAgent() {
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", "only operators may set health alert overrides")
		return
	}

	var req SetHealthOverrideRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	override, err := h.service.SetHealthOverride(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, override)
}

func (h *Handler) handleClearHealthOverride(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller := auth.FromContext(r.Context())
	if caller == nil || caller.IsAgent() {
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", "only operators may clear health alert overrides")
		return
	}

	if err := h.service.ClearHealthOverride(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		httpserver.RespondError(w, apierr.HTTPStatus(err), apierr.Code(err), apiErr.Message)
		return
	}
	h.logger.Error("unhandled machine error", "error", err)
	httpserver.RespondError(w, http.StatusInternalServerError, "internal", "internal error")
}
