package extsvc

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/forgecp/forge/internal/apierr"
	"github.com/forgecp/forge/internal/httpserver"
)

// Handler provides HTTP handlers for the extension-service API.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates an extsvc Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes returns a chi.Router with all extension-service routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleFindByIDs)
	r.Get("/versions", h.handleVersionInfos)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Delete("/", h.handleDelete)
		r.Post("/versions", h.handleCreateVersion)
		r.Get("/versions/latest", h.handleGetLatestVersion)
	})
	r.Get("/versions/{versionId}", h.handleGetVersion)
	r.Delete("/versions/{versionId}", h.handleDeleteVersion)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	svc, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, svc)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	svc, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, svc)
}

// handleFindByIDs answers GET /extension-services?ids=a,b,c for bulk lookups.
func (h *Handler) handleFindByIDs(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "ids query parameter is required")
		return
	}
	ids, err := parseUUIDCSV(raw)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id in ids list")
		return
	}
	svcs, err := h.service.FindByIDs(r.Context(), ids)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, svcs)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleVersionInfos answers GET /extension-services/versions?ids=a,b,c, the
// poll a DPU agent makes each fetch interval to learn which of its watched
// services have a newer sequence available without pulling the full bundle.
func (h *Handler) handleVersionInfos(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "ids query parameter is required")
		return
	}
	ids, err := parseUUIDCSV(raw)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id in ids list")
		return
	}
	infos, err := h.service.GetVersionInfos(r.Context(), ids)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, infos)
}

func (h *Handler) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	var req CreateVersionRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	v, err := h.service.CreateVersion(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, v)
}

// handleGetLatestVersion answers GET /extension-services/{id}/versions/latest,
// the bundle fetch a DPU agent makes once handleVersionInfos shows a newer
// sequence for a service than it currently has running.
func (h *Handler) handleGetLatestVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	v, cred, err := h.service.GetLatestVersion(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, struct {
		Version
		RegistryCredential RegistryCredential `json:"registry_credential"`
	}{v, cred})
}

func (h *Handler) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "versionId")
	if !ok {
		return
	}
	v, cred, err := h.service.GetVersion(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, struct {
		Version
		RegistryCredential RegistryCredential `json:"registry_credential"`
	}{v, cred})
}

func (h *Handler) handleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "versionId")
	if !ok {
		return
	}
	if err := h.service.DeleteVersion(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func parseUUIDCSV(s string) ([]uuid.UUID, error) {
	var out []uuid.UUID
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				id, err := uuid.Parse(s[start:i])
				if err != nil {
					return nil, err
				}
				out = append(out, id)
			}
			start = i + 1
		}
	}
	return out, nil
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		httpserver.RespondError(w, apierr.HTTPStatus(err), apierr.Code(err), apiErr.Message)
		return
	}
	h.logger.Error("unhandled extsvc error", "error", err)
	httpserver.RespondError(w, http.StatusInternalServerError, "internal", "internal error")
}
