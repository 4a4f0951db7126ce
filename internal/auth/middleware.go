package auth

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/forgecp/forge/internal/db"
)

// Middleware authenticates the caller via operator API key, OIDC bearer
// token, DPU agent key, or — in local development only — a dev header
// fallback, and stores the resulting Identity in the request context.
//
// Precedence:
//  1. X-API-Key: <raw-key>        → operator API key lookup (admin/operator/readonly)
//  2. Authorization: Bearer <jwt> → OIDC ID token verification, if oidcAuth is non-nil
//  3. X-Agent-Key: <raw-key>      → DPU agent key lookup, scoped to one machine
//  4. X-Tenant-Slug: <slug>       → development-only admin fallback, no real auth
//
// If none succeed, the request is rejected with 401.
func Middleware(pool db.DBTX, oidcAuth *OIDCAuthenticator, tenants TenantLookup, devMode bool, logger *slog.Logger) func(http.Handler) http.Handler {
	apikeyAuth := &APIKeyAuthenticator{DB: pool}
	agentkeyAuth := &AgentKeyAuthenticator{DB: pool}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var identity *Identity

			if rawKey := r.Header.Get("X-API-Key"); rawKey != "" {
				rec, err := apikeyAuth.Authenticate(r.Context(), rawKey)
				if err != nil {
					logger.Warn("API key authentication failed", "error", err)
					respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid API key")
					return
				}
				identity = &Identity{
					Subject:  "apikey:" + rec.KeyPrefix,
					Role:     rec.Role,
					TenantID: rec.TenantID,
					APIKeyID: &rec.ID,
					Method:   MethodAPIKey,
				}
			}

			if identity == nil && oidcAuth != nil {
				if bearer := r.Header.Get("Authorization"); bearer != "" {
					claims, err := oidcAuth.Authenticate(r.Context(), bearer)
					if err != nil {
						logger.Warn("OIDC authentication failed", "error", err)
						respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
						return
					}
					t, err := tenants.GetBySlug(r.Context(), claims.TenantSlug)
					if err != nil {
						logger.Warn("OIDC tenant lookup failed", "tenant_slug", claims.TenantSlug, "error", err)
						respondErr(w, http.StatusUnauthorized, "unauthorized", "unknown tenant")
						return
					}
					identity = &Identity{
						Subject:  "oidc:" + claims.Subject,
						Role:     claims.Role,
						TenantID: t.ID,
						Method:   MethodOIDC,
					}
				}
			}

			if identity == nil {
				if rawKey := r.Header.Get("X-Agent-Key"); rawKey != "" {
					rec, err := agentkeyAuth.Authenticate(r.Context(), rawKey)
					if err != nil {
						logger.Warn("agent key authentication failed", "error", err)
						respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid agent key")
						return
					}
					identity = &Identity{
						Subject:   "machine:" + rec.MachineID,
						Role:      RoleAgent,
						TenantID:  rec.TenantID,
						MachineID: rec.MachineID,
						Method:    MethodAgentKey,
					}
				}
			}

			if identity == nil && devMode {
				if slug := r.Header.Get("X-Tenant-Slug"); slug != "" {
					identity = &Identity{
						Subject:  "dev:" + slug,
						Role:     RoleAdmin,
						TenantID: uuid.Nil,
						Method:   MethodDev,
					}
					logger.Debug("dev-mode authentication", "tenant_slug", slug)
				}
			}

			if identity == nil {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "no valid authentication provided")
				return
			}

			ctx := NewContext(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondErr(w http.ResponseWriter, status int, errStr, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + errStr + `","message":"` + message + `"}`))
}
