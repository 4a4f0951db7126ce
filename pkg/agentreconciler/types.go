// Package agentreconciler reconciles a DPU's local filesystem and systemd
// unit state to match the extension-service set desired for its managed
// host: kubelet static pods, the image-credential-provider, the containerd
// SOCKS proxy drop-in, and the OpenTelemetry collector fragment directory.
package agentreconciler

import (
	"encoding/json"

	"github.com/google/uuid"
)

// RegistryCredential is the pull-secret material for one container
// registry, resolved from extsvc's SecretStore before reaching here.
type RegistryCredential struct {
	Registry string
	Username string
	Password string
}

// DesiredService is one extension service this DPU should be running,
// fully resolved (pod spec body, credential, observability fragment) so the
// reconciler never needs to make an outbound call mid-reconcile.
type DesiredService struct {
	ServiceID     uuid.UUID
	Version       int
	PodSpecYAML   string
	Credential    *RegistryCredential
	Observability json.RawMessage
}

// ComponentStatus is one named piece of a service's running state, reported
// upstream in a StatusObservation.
type ComponentStatus struct {
	Name    string
	Version string
	URL     string
	Status  string
}

// ServiceState is the aggregate health of one desired service's reconcile.
type ServiceState string

const (
	StateHealthy  ServiceState = "HEALTHY"
	StateDegraded ServiceState = "DEGRADED"
	StateFailed   ServiceState = "FAILED"
)

// StatusObservation is what the DPU reports upstream for one desired
// service after each reconcile tick.
type StatusObservation struct {
	ServiceID  uuid.UUID
	Version    int
	State      ServiceState
	Components []ComponentStatus
	Message    string
}
