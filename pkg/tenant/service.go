package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/forgecp/forge/internal/apierr"
	"github.com/forgecp/forge/internal/ids"
)

// Service implements tenant and tenant-keyset business logic over a Store.
type Service struct {
	store *Store
}

// NewService constructs a Service over the given Store.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Create creates a new tenant and an empty keyset for it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Tenant, error) {
	if _, err := s.store.GetBySlug(ctx, req.Slug); err == nil {
		return Tenant{}, apierr.AlreadyExistsf("tenant with slug %q already exists", req.Slug)
	}

	t, err := s.store.Create(ctx, req.Name, req.Slug)
	if err != nil {
		return Tenant{}, apierr.Wrap(apierr.Internal, "creating tenant", err)
	}

	if _, err := s.store.CreateKeyset(ctx, t.ID); err != nil {
		return Tenant{}, apierr.Wrap(apierr.Internal, "creating tenant keyset", err)
	}

	return t, nil
}

// Get returns a tenant by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Tenant, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return Tenant{}, apierr.NotFoundf("tenant %s not found", id)
	}
	return t, nil
}

// Update renames a tenant.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (Tenant, error) {
	t, err := s.store.UpdateName(ctx, id, req.Name)
	if err != nil {
		return Tenant{}, apierr.NotFoundf("tenant %s not found", id)
	}
	return t, nil
}

// List returns a page of tenants and the total tenant count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Tenant, int, error) {
	ts, total, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.Internal, "listing tenants", err)
	}
	return ts, total, nil
}

// RotateKey adds a new key to a tenant's keyset and makes it active. Prior
// keys remain valid (not auto-revoked) so in-flight DPU attestations signed
// against the previous generation are not rejected mid-rotation; callers
// revoke the old key explicitly once rollout is complete.
func (s *Service) RotateKey(ctx context.Context, tenantID uuid.UUID, req RotateKeyRequest) (KeysetKey, error) {
	keyset, err := s.store.GetKeyset(ctx, tenantID)
	if err != nil {
		return KeysetKey{}, apierr.NotFoundf("keyset for tenant %s not found", tenantID)
	}

	key := KeysetKey{ID: ids.NewUUID(), PublicKeyPEM: req.PublicKeyPEM}
	if err := s.store.AddKey(ctx, keyset.ID, key); err != nil {
		return KeysetKey{}, apierr.Wrap(apierr.Internal, "rotating tenant key", err)
	}

	return key, nil
}

// ListKeys returns every key generation in a tenant's keyset.
func (s *Service) ListKeys(ctx context.Context, tenantID uuid.UUID) ([]KeysetKey, error) {
	keyset, err := s.store.GetKeyset(ctx, tenantID)
	if err != nil {
		return nil, apierr.NotFoundf("keyset for tenant %s not found", tenantID)
	}
	keys, err := s.store.ListKeys(ctx, keyset.ID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "listing keyset keys", err)
	}
	return keys, nil
}

// RevokeKey revokes a single key generation. It is the caller's
// responsibility to ensure the keyset retains at least one non-revoked key.
func (s *Service) RevokeKey(ctx context.Context, keyID uuid.UUID) error {
	if err := s.store.RevokeKey(ctx, keyID); err != nil {
		return apierr.Wrap(apierr.Internal, fmt.Sprintf("revoking key %s", keyID), err)
	}
	return nil
}
