// Package instance implements tenant compute instances: the allocation unit
// a tenant requests, which the fleet planner binds to a managed host.
package instance

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle of a tenant-facing instance, distinct from (but
// driven by) the underlying managed host's State.
type State string

const (
	StateProvisioning State = "PROVISIONING"
	StateRunning      State = "RUNNING"
	StateStopped      State = "STOPPED"
	StateTerminated   State = "TERMINATED"
)

// ExtensionServiceConfig references the version of one extension service
// an instance depends on. The DPU agent reconciles this list against its
// managed host's bound instances to compute its desired pod-spec set.
type ExtensionServiceConfig struct {
	ServiceID uuid.UUID `json:"service_id"`
	Version   int       `json:"version"`
}

// Instance is a tenant's compute allocation.
type Instance struct {
	ID                      uuid.UUID                `json:"id"`
	TenantID                uuid.UUID                `json:"tenant_id"`
	VPCID                   uuid.UUID                `json:"vpc_id"`
	InstanceTypeID          string                   `json:"instance_type_id"`
	MachineID               *string                  `json:"machine_id,omitempty"`
	State                   State                    `json:"state"`
	ExtensionServiceConfigs []ExtensionServiceConfig `json:"extension_service_configs"`
	Hostname                string                   `json:"hostname"`
	UserData                string                   `json:"user_data"`
	Sitename                *string                  `json:"sitename,omitempty"`
	NetworkConfigASN        string                   `json:"network_config_asn"`
	KeysetIDs               []string                 `json:"keyset_ids"`
	CreatedAt               time.Time                `json:"created_at"`
	UpdatedAt               time.Time                `json:"updated_at"`
	RemovedAt               *time.Time               `json:"removed_at,omitempty"`
}

// MetadataSnapshot is the subset of an instance's data published to its
// bound DPU's instance-metadata endpoint. It omits everything a guest
// workload has no business seeing (tenant ID, VPC ID, keyset IDs).
type MetadataSnapshot struct {
	InstanceID              uuid.UUID `json:"instance_id"`
	MachineID               *string   `json:"machine_id,omitempty"`
	Address                 string    `json:"address"`
	Hostname                string    `json:"hostname"`
	UserData                string    `json:"user_data"`
	Sitename                *string   `json:"sitename,omitempty"`
	ASN                     string    `json:"asn"`
	ConfigVersion           string    `json:"config_version"`
	NetworkConfigVersion    string    `json:"network_config_version"`
	ExtensionServiceVersion string    `json:"extension_service_version"`
}

// SetExtensionServicesRequest replaces an instance's full extension-service
// config list. Extension-service configs are not patched incrementally: a
// caller always submits the complete desired set.
type SetExtensionServicesRequest struct {
	Configs []ExtensionServiceConfig `json:"configs" validate:"required"`
}

// CreateRequest requests a new instance in PROVISIONING state, not yet bound
// to a machine.
type CreateRequest struct {
	TenantID       uuid.UUID `json:"tenant_id" validate:"required"`
	VPCID          uuid.UUID `json:"vpc_id" validate:"required"`
	InstanceTypeID string    `json:"instance_type_id" validate:"required"`
}

// Type describes a purchasable SKU by ID and display name. It carries no
// host capability requirements.
type Type struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
