package nsg

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/forgecp/forge/internal/apierr"
	"github.com/forgecp/forge/internal/httpserver"
)

// Handler provides HTTP handlers for the network-security-group API.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates an nsg Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes returns a chi.Router with all security-group routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreateGroup)
	r.Get("/", h.handleListGroups)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGetGroup)
		r.Post("/rules", h.handleAddRule)
		r.Get("/rules", h.handleListRules)
		r.Post("/attachments", h.handleAttach)
		r.Delete("/attachments/{instanceId}", h.handleDetach)
		r.Post("/propagation", h.handleReportPropagation)
		r.Get("/propagation", h.handlePropagationStatus)
	})
	r.Delete("/rules/{ruleId}", h.handleDeleteRule)
	return r
}

func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	g, err := h.service.CreateGroup(r.Context(), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, g)
}

func (h *Handler) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	g, err := h.service.GetGroup(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, g)
}

func (h *Handler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	groups, total, err := h.service.ListGroups(r.Context(), params.PageSize, params.Offset)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(groups, params, total))
}

func (h *Handler) handleAddRule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	var req CreateRuleRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	rule, err := h.service.AddRule(r.Context(), id, req)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, rule)
}

func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	rules, err := h.service.ListRules(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, rules)
}

func (h *Handler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "ruleId")
	if !ok {
		return
	}
	if err := h.service.DeleteRule(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAttach(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		InstanceID uuid.UUID `json:"instance_id" validate:"required"`
	}
	if !httpserver.DecodeAndValidate(w, r, &body) {
		return
	}
	if err := h.service.Attach(r.Context(), id, body.InstanceID); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDetach(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	instanceID, ok := h.parseID(w, r, "instanceId")
	if !ok {
		return
	}
	if err := h.service.Detach(r.Context(), id, instanceID); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReportPropagation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	var req ReportPropagationRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	if err := h.service.ReportPropagation(r.Context(), id, req); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePropagationStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	status, err := h.service.PropagationStatus(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, struct {
		Status PropagationStatus `json:"status"`
	}{status})
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
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
	h.logger.Error("unhandled nsg error", "error", err)
	httpserver.RespondError(w, http.StatusInternalServerError, "internal", "internal error")
}
