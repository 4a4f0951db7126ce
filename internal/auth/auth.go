// Package auth authenticates both human/operator API callers and DPU agents
// against the forge-api server.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// Roles recognized by the control plane. Agent is the identity DPU-resident
// forge-agent processes authenticate as; it may only call the narrow set of
// endpoints the agent needs (config fetch, phone-home, status report).
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleReadonly = "readonly"
	RoleAgent    = "agent"
)

// Authentication methods recorded on an Identity for audit/logging purposes.
const (
	MethodAPIKey   = "api_key"
	MethodOIDC     = "oidc"
	MethodAgentKey = "agent_key"
	MethodDev      = "dev"
)

var validRoles = map[string]struct{}{
	RoleAdmin:    {},
	RoleOperator: {},
	RoleReadonly: {},
	RoleAgent:    {},
}

// IsValidRole reports whether role is a recognized role.
func IsValidRole(role string) bool {
	_, ok := validRoles[role]
	return ok
}

// Identity describes the authenticated caller of an API request.
type Identity struct {
	Subject   string
	Role      string
	TenantID  uuid.UUID
	APIKeyID  *uuid.UUID
	MachineID string // set only when Method == MethodAgentKey
	Method    string
}

// IsAgent reports whether the identity is a DPU agent rather than an operator.
func (i *Identity) IsAgent() bool {
	return i != nil && i.Method == MethodAgentKey
}

type contextKey string

const identityContextKey contextKey = "auth_identity"

// NewContext returns a context carrying id.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// FromContext extracts the Identity stored by NewContext, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey).(*Identity)
	return id
}

// HashAPIKey returns the hex-encoded SHA-256 digest of a raw API key. Only
// the digest is ever persisted; the raw key is shown to the caller once, at
// creation time.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
