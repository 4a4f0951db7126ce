package vpc

import (
	"context"

	"github.com/google/uuid"

	"github.com/forgecp/forge/internal/apierr"
)

// Service implements VPC business logic over a Store.
type Service struct {
	store *Store
}

// NewService constructs a Service.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Create creates a new VPC.
func (s *Service) Create(ctx context.Context, req CreateRequest) (VPC, error) {
	v, err := s.store.Create(ctx, req)
	if err != nil {
		return VPC{}, apierr.Wrap(apierr.Internal, "creating vpc", err)
	}
	return v, nil
}

// Get returns a VPC by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (VPC, error) {
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return VPC{}, apierr.NotFoundf("vpc %s not found", id)
	}
	return v, nil
}

// ListByTenant returns every VPC owned by a tenant.
func (s *Service) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]VPC, error) {
	vpcs, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "listing vpcs", err)
	}
	return vpcs, nil
}

// Delete removes a VPC.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return apierr.Wrap(apierr.Internal, "deleting vpc", err)
	}
	return nil
}
