// Package extsvc implements extension-service lifecycle management:
// versioned, immutable pod-spec bundles that DPU agents reconcile onto
// managed hosts, including their registry credentials and observability
// configuration.
package extsvc

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExtensionService is a named extension workload a tenant can deploy to its hosts.
type ExtensionService struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Version is one immutable, versioned pod-spec bundle for an ExtensionService.
// Versions are never edited in place: a config change creates a new Version
// with an incremented sequence number, so a DPU agent that cached an older
// version can always tell it's stale by comparing sequence numbers.
type Version struct {
	ID                uuid.UUID       `json:"id"`
	ServiceID         uuid.UUID       `json:"service_id"`
	Sequence          int             `json:"sequence"`
	PodSpecYAML       string          `json:"pod_spec_yaml"`
	CredentialRef     string          `json:"-"` // opaque key into the SecretStore, never serialized to clients
	ObservabilityJSON json.RawMessage `json:"observability_config,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// CreateRequest creates a new extension service.
type CreateRequest struct {
	TenantID uuid.UUID `json:"tenant_id" validate:"required"`
	Name     string    `json:"name" validate:"required,min=1,max=200"`
}

// RegistryCredential is the pull-secret material stored out-of-band in the
// SecretStore rather than inline in the version row.
type RegistryCredential struct {
	Registry string `json:"registry" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CreateVersionRequest publishes a new immutable version of a service.
type CreateVersionRequest struct {
	PodSpecYAML         string             `json:"pod_spec_yaml" validate:"required"`
	RegistryCredential  RegistryCredential `json:"registry_credential" validate:"required"`
	ObservabilityConfig json.RawMessage    `json:"observability_config,omitempty"`
}

// VersionInfo is the metadata a DPU agent polls for, deliberately excluding
// the pod spec body and credential so a lightweight poll doesn't pull the
// full bundle every tick.
type VersionInfo struct {
	ServiceID uuid.UUID `json:"service_id"`
	Sequence  int       `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}
