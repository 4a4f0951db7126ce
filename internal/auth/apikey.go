package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/forgecp/forge/internal/db"
)

// APIKeyRecord is the persisted shape of an operator API key.
type APIKeyRecord struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	KeyPrefix string
	Role      string
	ExpiresAt *time.Time
}

// APIKeyAuthenticator validates operator API keys against the database.
type APIKeyAuthenticator struct {
	DB db.DBTX
}

// Authenticate hashes rawKey, looks it up in api_keys, and checks expiration.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, rawKey string) (*APIKeyRecord, error) {
	if rawKey == "" {
		return nil, fmt.Errorf("empty API key")
	}

	hash := HashAPIKey(rawKey)

	rec := &APIKeyRecord{}
	var expiresAt *time.Time
	err := a.DB.QueryRow(ctx,
		`SELECT id, tenant_id, key_prefix, role, expires_at FROM api_keys WHERE key_hash = $1`,
		hash,
	).Scan(&rec.ID, &rec.TenantID, &rec.KeyPrefix, &rec.Role, &expiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("invalid API key")
		}
		return nil, fmt.Errorf("looking up API key: %w", err)
	}
	rec.ExpiresAt = expiresAt

	if rec.ExpiresAt != nil && rec.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("API key expired at %s", rec.ExpiresAt)
	}

	if !IsValidRole(rec.Role) {
		rec.Role = RoleReadonly
	}

	go func() {
		_, _ = a.DB.Exec(context.Background(), `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, rec.ID)
	}()

	return rec, nil
}

// AgentKeyRecord is the persisted shape of a per-machine DPU agent key.
type AgentKeyRecord struct {
	MachineID string
	TenantID  uuid.UUID
}

// AgentKeyAuthenticator validates the per-machine API key a forge-agent
// presents on every request to the control plane.
type AgentKeyAuthenticator struct {
	DB db.DBTX
}

// Authenticate hashes rawKey and looks it up against the managed_hosts table.
func (a *AgentKeyAuthenticator) Authenticate(ctx context.Context, rawKey string) (*AgentKeyRecord, error) {
	if rawKey == "" {
		return nil, fmt.Errorf("empty agent key")
	}

	hash := HashAPIKey(rawKey)

	rec := &AgentKeyRecord{}
	err := a.DB.QueryRow(ctx,
		`SELECT machine_id, tenant_id FROM managed_hosts WHERE agent_api_key_hash = $1`,
		hash,
	).Scan(&rec.MachineID, &rec.TenantID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("invalid agent key")
		}
		return nil, fmt.Errorf("looking up agent key: %w", err)
	}

	return rec, nil
}
