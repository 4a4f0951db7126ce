package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Keyset is a tenant's rotatable set of signing keys, used to validate DPU
// attestation material presented during managed-host discovery.
type Keyset struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	ActiveKeyID *uuid.UUID `json:"active_key_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	RotatedAt   *time.Time `json:"rotated_at,omitempty"`
}

// KeysetKey is a single generation of a tenant's keyset. Revoked keys are
// retained for audit purposes but rejected at verification time.
type KeysetKey struct {
	ID           uuid.UUID `json:"id"`
	PublicKeyPEM string    `json:"public_key_pem"`
	CreatedAt    time.Time `json:"created_at"`
	Revoked      bool      `json:"revoked"`
}

// RotateKeyRequest is the payload for rotating a tenant's active key.
type RotateKeyRequest struct {
	PublicKeyPEM string `json:"public_key_pem" validate:"required"`
}
