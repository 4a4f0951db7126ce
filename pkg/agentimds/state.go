// Package agentimds serves cloud-init-compatible instance metadata to guest
// workloads from a DPU-local, link-local HTTP endpoint.
//
// The handler never talks to the control plane directly: pkg/agentfetch
// swaps in a fresh Snapshot each poll cycle, and every request is answered
// out of whatever snapshot is currently installed.
package agentimds

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// InfinibandInstance is one instance hosted on an infiniband device, keyed
// by its IB GUID and carrying an arbitrary attribute set. "lid" is always
// present.
type InfinibandInstance struct {
	IBGUID     string
	Attributes map[string]string
}

// InfinibandDevice is one physical IB device and the instances currently
// scheduled on it, in insertion order.
type InfinibandDevice struct {
	PFGUID    string
	Instances []InfinibandInstance
}

// InstanceMetadata is the per-DPU metadata snapshot published by the
// control plane, the data cloud-init-style guest tooling reads.
type InstanceMetadata struct {
	InstanceID              *uuid.UUID
	MachineID               *string
	Address                 string
	Hostname                string
	UserData                string
	IBDevices               []InfinibandDevice
	Sitename                *string
	ConfigVersion           string
	NetworkConfigVersion    string
	ExtensionServiceVersion string
}

// NetworkConfig carries the fields of the network snapshot IMDS exposes
// under meta-data categories (currently just the BGP ASN).
type NetworkConfig struct {
	ASN string
}

// Snapshot is the pair of optional state agentfetch swaps in atomically.
// Either half may be nil; requests that need a missing half fail with 500,
// matching the DPU IMDS service's "both must be present" contract.
type Snapshot struct {
	InstanceMetadata *InstanceMetadata
	NetworkConfig    *NetworkConfig
}

// Store holds the current Snapshot behind an atomic pointer so reads from
// concurrent request handlers never race with a fetcher-driven swap.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore returns a Store with no snapshot installed.
func NewStore() *Store {
	return &Store{}
}

// Swap atomically installs a new Snapshot, replacing whatever was current.
func (s *Store) Swap(snap Snapshot) {
	s.current.Store(&snap)
}

// Get returns the currently installed Snapshot, or the zero Snapshot if
// none has been installed yet.
func (s *Store) Get() Snapshot {
	p := s.current.Load()
	if p == nil {
		return Snapshot{}
	}
	return *p
}
