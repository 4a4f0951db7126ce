package instance

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/forgecp/forge/internal/apierr"
	"github.com/forgecp/forge/internal/httpserver"
)

// Handler provides HTTP handlers for the instances API.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates an instance Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes returns a chi.Router with all instance routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Get("/metadata", h.handleGetMetadataSnapshot)
		r.Post("/stop", h.handleStop)
		r.Post("/terminate", h.handleTerminate)
		r.Post("/extension-services", h.handleSetExtensionServices)
	})
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	i, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, i)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	i, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, i)
}

// handleGetMetadataSnapshot answers GET /instances/{id}/metadata, the
// payload a DPU's config fetcher republishes to its local instance-metadata
// endpoint.
func (h *Handler) handleGetMetadataSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	snap, err := h.service.GetMetadataSnapshot(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, snap)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if machineID := r.URL.Query().Get("machine_id"); machineID != "" {
		instances, err := h.service.ListByMachine(r.Context(), machineID)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		httpserver.Respond(w, http.StatusOK, instances)
		return
	}

	tenantID, err := uuid.Parse(r.URL.Query().Get("tenant_id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "tenant_id or machine_id query parameter is required")
		return
	}
	instances, err := h.service.ListByTenant(r.Context(), tenantID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, instances)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	i, err := h.service.Stop(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, i)
}

func (h *Handler) handleSetExtensionServices(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req SetExtensionServicesRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	i, err := h.service.SetExtensionServiceConfigs(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, i)
}

func (h *Handler) handleTerminate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	i, err := h.service.Terminate(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, i)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid instance id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		httpserver.RespondError(w, apierr.HTTPStatus(err), apierr.Code(err), apiErr.Message)
		return
	}
	h.logger.Error("unhandled instance error", "error", err)
	httpserver.RespondError(w, http.StatusInternalServerError, "internal", "internal error")
}
