package extsvc

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/forgecp/forge/internal/apierr"
)

// versionWriter is the narrow slice of Store that Service's version-publish
// and version-delete paths need, extracted so the credential-ordering
// invariant below can be unit tested against a fake.
type versionWriter interface {
	LatestSequence(ctx context.Context, serviceID uuid.UUID) (int, error)
	CreateVersion(ctx context.Context, serviceID uuid.UUID, sequence int, podSpecYAML, credentialRef string, observability []byte) (Version, error)
	GetVersion(ctx context.Context, id uuid.UUID) (Version, error)
	LatestVersion(ctx context.Context, serviceID uuid.UUID) (Version, error)
	DeleteVersion(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (ExtensionService, error)
}

// Service implements extension-service business logic over a Store and a SecretStore.
type Service struct {
	store   *Store
	writer  versionWriter
	secrets SecretStore
}

// NewService constructs a Service.
func NewService(store *Store, secrets SecretStore) *Service {
	return &Service{store: store, writer: store, secrets: secrets}
}

// Create creates a new extension service.
func (s *Service) Create(ctx context.Context, req CreateRequest) (ExtensionService, error) {
	svc, err := s.store.Create(ctx, req)
	if err != nil {
		return ExtensionService{}, apierr.Wrap(apierr.Internal, "creating extension service", err)
	}
	return svc, nil
}

// Get returns a service by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (ExtensionService, error) {
	svc, err := s.store.Get(ctx, id)
	if err != nil {
		return ExtensionService{}, apierr.NotFoundf("extension service %s not found", id)
	}
	return svc, nil
}

// FindByIDs returns every service among the given IDs that exists.
func (s *Service) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]ExtensionService, error) {
	svcs, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "finding extension services", err)
	}
	return svcs, nil
}

// GetVersionInfos returns lightweight latest-version metadata for a batch of
// services, the shape a DPU agent polls on its fetch interval.
func (s *Service) GetVersionInfos(ctx context.Context, serviceIDs []uuid.UUID) ([]VersionInfo, error) {
	infos, err := s.store.VersionInfos(ctx, serviceIDs)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "listing version infos", err)
	}
	return infos, nil
}

// GetVersion returns the full bundle for one version, including its
// credential, resolved from the SecretStore.
func (s *Service) GetVersion(ctx context.Context, id uuid.UUID) (Version, RegistryCredential, error) {
	v, err := s.writer.GetVersion(ctx, id)
	if err != nil {
		return Version{}, RegistryCredential{}, apierr.NotFoundf("version %s not found", id)
	}
	cred, err := s.secrets.Get(ctx, v.CredentialRef)
	if err != nil {
		return Version{}, RegistryCredential{}, apierr.Wrap(apierr.Internal, "loading version credential", err)
	}
	return v, cred, nil
}

// GetLatestVersion returns the highest-sequence version for a service,
// including its credential — the bundle a DPU agent fetches on each poll
// for every service it is bound to.
func (s *Service) GetLatestVersion(ctx context.Context, serviceID uuid.UUID) (Version, RegistryCredential, error) {
	v, err := s.writer.LatestVersion(ctx, serviceID)
	if err != nil {
		return Version{}, RegistryCredential{}, apierr.NotFoundf("no version found for service %s", serviceID)
	}
	cred, err := s.secrets.Get(ctx, v.CredentialRef)
	if err != nil {
		return Version{}, RegistryCredential{}, apierr.Wrap(apierr.Internal, "loading version credential", err)
	}
	return v, cred, nil
}

// CreateVersion publishes a new immutable version. The registry credential
// is written to the SecretStore before the version row is committed to the
// database: if the process crashes between the two, the result is an
// orphaned secret (left in the SecretStore; nothing in this package
// removes it), never a version row
// pointing at a credential that was never stored.
func (s *Service) CreateVersion(ctx context.Context, serviceID uuid.UUID, req CreateVersionRequest) (Version, error) {
	if _, err := s.writer.Get(ctx, serviceID); err != nil {
		return Version{}, apierr.NotFoundf("extension service %s not found", serviceID)
	}

	seq, err := s.writer.LatestSequence(ctx, serviceID)
	if err != nil {
		return Version{}, apierr.Wrap(apierr.Internal, "looking up latest version sequence", err)
	}
	nextSeq := seq + 1

	credentialRef := fmt.Sprintf("%s-v%d", serviceID, nextSeq)
	if err := s.secrets.Put(ctx, credentialRef, req.RegistryCredential); err != nil {
		return Version{}, apierr.Wrap(apierr.Internal, "storing registry credential", err)
	}

	v, err := s.writer.CreateVersion(ctx, serviceID, nextSeq, req.PodSpecYAML, credentialRef, req.ObservabilityConfig)
	if err != nil {
		// The credential is now orphaned since the DB insert failed; it is
		// left in the SecretStore rather than risk a second failure
		// mid-error-path delete.
		return Version{}, apierr.Wrap(apierr.Internal, "creating version", err)
	}
	return v, nil
}

// DeleteVersion removes a version. The database row is deleted before the
// credential: a crash between the two leaves an orphaned secret rather than
// a version row that resolves to a missing credential.
func (s *Service) DeleteVersion(ctx context.Context, id uuid.UUID) error {
	v, err := s.writer.GetVersion(ctx, id)
	if err != nil {
		return apierr.NotFoundf("version %s not found", id)
	}

	if err := s.writer.DeleteVersion(ctx, id); err != nil {
		return apierr.Wrap(apierr.Internal, "deleting version", err)
	}

	if err := s.secrets.Delete(ctx, v.CredentialRef); err != nil {
		return apierr.Wrap(apierr.Internal, "deleting version credential", err)
	}
	return nil
}

// Delete removes a service. Callers must delete its versions first.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return apierr.Wrap(apierr.Internal, "deleting extension service", err)
	}
	return nil
}
