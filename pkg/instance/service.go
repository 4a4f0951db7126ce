package instance

import (
	"context"

	"github.com/google/uuid"

	"github.com/forgecp/forge/internal/apierr"
)

// Service implements instance business logic over a Store.
type Service struct {
	store *Store
}

// NewService constructs a Service.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Create requests a new instance in PROVISIONING state.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Instance, error) {
	i, err := s.store.Create(ctx, req)
	if err != nil {
		return Instance{}, apierr.Wrap(apierr.Internal, "creating instance", err)
	}
	return i, nil
}

// Get returns an instance by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Instance, error) {
	i, err := s.store.Get(ctx, id)
	if err != nil {
		return Instance{}, apierr.NotFoundf("instance %s not found", id)
	}
	return i, nil
}

// BindMachine records that an instance has been allocated onto a managed
// host. Callers are expected to have already reserved the host via
// pkg/machine's Allocate; this only updates the instance's own record.
func (s *Service) BindMachine(ctx context.Context, id uuid.UUID, machineID string) (Instance, error) {
	i, err := s.store.BindMachine(ctx, id, machineID)
	if err != nil {
		return Instance{}, apierr.Wrap(apierr.Internal, "binding machine to instance", err)
	}
	return i, nil
}

// SetExtensionServiceConfigs replaces the full extension-service set an
// instance depends on.
func (s *Service) SetExtensionServiceConfigs(ctx context.Context, id uuid.UUID, req SetExtensionServicesRequest) (Instance, error) {
	i, err := s.store.SetExtensionServiceConfigs(ctx, id, req.Configs)
	if err != nil {
		return Instance{}, apierr.Wrap(apierr.Internal, "setting instance extension-service configs", err)
	}
	return i, nil
}

// Stop transitions a running instance to STOPPED.
func (s *Service) Stop(ctx context.Context, id uuid.UUID) (Instance, error) {
	i, err := s.store.Get(ctx, id)
	if err != nil {
		return Instance{}, apierr.NotFoundf("instance %s not found", id)
	}
	if i.State != StateRunning {
		return Instance{}, apierr.FailedPreconditionf("instance %s is not running", id)
	}
	return s.store.SetState(ctx, id, StateStopped)
}

// Terminate transitions an instance to TERMINATED. Only the state changes:
// the record keeps its machine binding, and releasing the underlying host is
// the caller's responsibility via pkg/machine's Release.
func (s *Service) Terminate(ctx context.Context, id uuid.UUID) (Instance, error) {
	i, err := s.store.SetState(ctx, id, StateTerminated)
	if err != nil {
		return Instance{}, apierr.Wrap(apierr.Internal, "terminating instance", err)
	}
	return i, nil
}

// GetMetadataSnapshot returns the IMDS-facing projection of an instance,
// the payload an agent's config fetcher republishes to its local IMDS
// listener.
func (s *Service) GetMetadataSnapshot(ctx context.Context, id uuid.UUID) (MetadataSnapshot, error) {
	snap, err := s.store.GetMetadataSnapshot(ctx, id)
	if err != nil {
		return MetadataSnapshot{}, apierr.NotFoundf("instance %s not found", id)
	}
	return snap, nil
}

// ListByTenant returns every instance owned by a tenant.
func (s *Service) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Instance, error) {
	instances, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "listing instances", err)
	}
	return instances, nil
}

// ListByMachine returns every instance currently bound to a machine.
func (s *Service) ListByMachine(ctx context.Context, machineID string) ([]Instance, error) {
	instances, err := s.store.ListByMachine(ctx, machineID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "listing instances by machine", err)
	}
	return instances, nil
}
