package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// TenantRef is the minimal tenant shape OIDC login needs. Defined locally
// (rather than importing pkg/tenant.Tenant) because pkg/tenant's handler
// imports internal/httpserver, which imports internal/auth — importing
// pkg/tenant here would create a cycle. Callers adapt their tenant store to
// TenantLookup.
type TenantRef struct {
	ID uuid.UUID
}

// TenantLookup resolves the tenant_slug claim to a tenant ID.
type TenantLookup interface {
	GetBySlug(ctx context.Context, slug string) (TenantRef, error)
}

// OIDCFlowHandler drives the OAuth2 Authorization Code flow for operator
// login. Forge has no server-side session store: on a successful callback
// it hands the verified ID token back to the browser, which then presents
// it as a bearer credential on every subsequent API call, re-verified by
// OIDCAuthenticator each time.
type OIDCFlowHandler struct {
	oauth2Cfg *oauth2.Config
	oidcAuth  *OIDCAuthenticator
	tenants   TenantLookup
	redis     *redis.Client
	logger    *slog.Logger
}

// NewOIDCFlowHandler creates a handler for the OIDC Authorization Code flow.
func NewOIDCFlowHandler(oauth2Cfg *oauth2.Config, oidcAuth *OIDCAuthenticator, tenants TenantLookup, rdb *redis.Client, logger *slog.Logger) *OIDCFlowHandler {
	return &OIDCFlowHandler{oauth2Cfg: oauth2Cfg, oidcAuth: oidcAuth, tenants: tenants, redis: rdb, logger: logger}
}

// HandleLogin redirects the caller's browser to the OIDC identity provider.
func (h *OIDCFlowHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "internal", "failed to generate state")
		return
	}

	if err := h.redis.Set(r.Context(), "oidc_state:"+state, "1", 10*time.Minute).Err(); err != nil {
		h.logger.Error("oidc: storing state in redis", "error", err)
		respondErr(w, http.StatusInternalServerError, "internal", "failed to store state")
		return
	}

	http.Redirect(w, r, h.oauth2Cfg.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback handles the identity provider's redirect after login,
// verifies the issued ID token, and returns it to the caller for use as a
// bearer credential.
func (h *OIDCFlowHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state := r.URL.Query().Get("state")
	if state == "" {
		respondErr(w, http.StatusBadRequest, "bad_request", "missing state parameter")
		return
	}
	if result, err := h.redis.GetDel(ctx, "oidc_state:"+state).Result(); err != nil || result == "" {
		respondErr(w, http.StatusBadRequest, "bad_request", "invalid or expired state")
		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Warn("oidc: identity provider returned error", "error", errParam, "description", r.URL.Query().Get("error_description"))
		respondErr(w, http.StatusUnauthorized, "unauthorized", "authentication failed: "+errParam)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		respondErr(w, http.StatusBadRequest, "bad_request", "missing code parameter")
		return
	}

	oauth2Token, err := h.oauth2Cfg.Exchange(ctx, code)
	if err != nil {
		h.logger.Error("oidc: code exchange failed", "error", err)
		respondErr(w, http.StatusUnauthorized, "unauthorized", "code exchange failed")
		return
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		respondErr(w, http.StatusUnauthorized, "unauthorized", "no id_token in response")
		return
	}

	claims, err := h.oidcAuth.Authenticate(ctx, "Bearer "+rawIDToken)
	if err != nil {
		h.logger.Error("oidc: token verification failed", "error", err)
		respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid id_token")
		return
	}

	t, err := h.tenants.GetBySlug(ctx, claims.TenantSlug)
	if err != nil {
		h.logger.Error("oidc: tenant lookup failed", "tenant_slug", claims.TenantSlug, "error", err)
		respondErr(w, http.StatusUnauthorized, "unauthorized", "unknown tenant")
		return
	}

	h.logger.Info("oidc: operator logged in", "subject", claims.Subject, "tenant_id", t.ID, "role", claims.Role)

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"token":"` + rawIDToken + `","tenant_id":"` + t.ID.String() + `","role":"` + claims.Role + `"}`))
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
