// Package tenant implements the tenant-organization domain: the owning
// organization of every machine, instance, VPC, and extension service, and
// its rotatable API-credential keysets.
package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is a billing/ownership boundary. Every other Forge object belongs
// to exactly one tenant.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest is the payload for creating a tenant.
type CreateRequest struct {
	Name string `json:"name" validate:"required,min=2,max=200"`
	Slug string `json:"slug" validate:"required,min=2,max=63,alphanum"`
}

// UpdateRequest is the payload for renaming a tenant.
type UpdateRequest struct {
	Name string `json:"name" validate:"required,min=2,max=200"`
}
