package audit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forgecp/forge/internal/auth"
	"github.com/forgecp/forge/internal/httpserver"
)

// Handler provides HTTP handlers for the audit log API.
type Handler struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewHandler creates an audit log Handler.
func NewHandler(pool *pgxpool.Pool, logger *slog.Logger) *Handler {
	return &Handler{pool: pool, logger: logger}
}

// Routes returns a chi.Router with audit log routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	return r
}

type logEntry struct {
	ID         uuid.UUID       `json:"id"`
	TenantID   *uuid.UUID      `json:"tenant_id,omitempty"`
	Actor      string          `json:"actor"`
	ActorRole  string          `json:"actor_role"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID string          `json:"resource_id"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	IPAddress  *netip.Addr     `json:"ip_address,omitempty"`
	UserAgent  *string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// handleList returns recent audit entries for the caller's tenant, newest
// first. Agent identities have no tenant-scoped audit trail of their own and
// are rejected — this is an operator-facing surface.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())
	if caller == nil || caller.IsAgent() {
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", "audit log is operator-only")
		return
	}

	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	rows, err := h.pool.Query(r.Context(),
		`SELECT id, tenant_id, actor, actor_role, action, resource, resource_id, detail, ip_address, user_agent, created_at
		 FROM audit_log WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		caller.TenantID, params.PageSize, params.Offset,
	)
	if err != nil {
		h.logger.Error("listing audit log", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list audit log")
		return
	}
	defer rows.Close()

	var entries []logEntry
	for rows.Next() {
		var e logEntry
		var ipStr *string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Actor, &e.ActorRole, &e.Action, &e.Resource, &e.ResourceID, &e.Detail, &ipStr, &e.UserAgent, &e.CreatedAt); err != nil {
			h.logger.Error("scanning audit log row", "error", err)
			httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list audit log")
			return
		}
		if ipStr != nil {
			if addr, err := netip.ParseAddr(*ipStr); err == nil {
				e.IPAddress = &addr
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("listing audit log", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list audit log")
		return
	}

	httpserver.Respond(w, http.StatusOK, entries)
}
