// Package vpc implements tenant-scoped virtual networks that instances
// attach to.
package vpc

import (
	"time"

	"github.com/google/uuid"
)

// VPC is a tenant's isolated virtual network.
type VPC struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	CIDR      string    `json:"cidr"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest creates a new VPC.
type CreateRequest struct {
	TenantID uuid.UUID `json:"tenant_id" validate:"required"`
	Name     string    `json:"name" validate:"required,min=1,max=200"`
	CIDR     string    `json:"cidr" validate:"required,cidr"`
}
