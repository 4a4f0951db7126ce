package extsvc

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/forgecp/forge/internal/db"
)

// Store provides database operations for extension services and their versions.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a Store backed by the given database handle.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const serviceColumns = `id, tenant_id, name, created_at, updated_at`

func scanServiceRow(row pgx.Row) (ExtensionService, error) {
	var s ExtensionService
	err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// Create inserts a new extension service.
func (s *Store) Create(ctx context.Context, req CreateRequest) (ExtensionService, error) {
	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO extension_services (id, tenant_id, name, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 RETURNING `+serviceColumns,
		uuid.New(), req.TenantID, req.Name,
	)
	return scanServiceRow(row)
}

// Get returns a single service by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (ExtensionService, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+serviceColumns+` FROM extension_services WHERE id = $1`, id)
	return scanServiceRow(row)
}

// FindByIDs returns every service whose ID is in ids.
func (s *Store) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]ExtensionService, error) {
	rows, err := s.dbtx.Query(ctx, `SELECT `+serviceColumns+` FROM extension_services WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("finding services by id: %w", err)
	}
	defer rows.Close()

	var out []ExtensionService
	for rows.Next() {
		svc, err := scanServiceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning service row: %w", err)
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

// Delete removes a service. Callers must delete its versions first.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.dbtx.Exec(ctx, `DELETE FROM extension_services WHERE id = $1`, id)
	return err
}

const versionColumns = `id, service_id, sequence, pod_spec_yaml, credential_ref, observability_config, created_at`

func scanVersionRow(row pgx.Row) (Version, error) {
	var v Version
	err := row.Scan(&v.ID, &v.ServiceID, &v.Sequence, &v.PodSpecYAML, &v.CredentialRef, &v.ObservabilityJSON, &v.CreatedAt)
	return v, err
}

// LatestSequence returns the highest existing version sequence for a service, or 0 if none.
func (s *Store) LatestSequence(ctx context.Context, serviceID uuid.UUID) (int, error) {
	var seq int
	err := s.dbtx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM extension_service_versions WHERE service_id = $1`, serviceID,
	).Scan(&seq)
	return seq, err
}

// CreateVersion inserts a new immutable version row. Callers must have
// already persisted the credential the returned row's CredentialRef points
// to, before calling this.
func (s *Store) CreateVersion(ctx context.Context, serviceID uuid.UUID, sequence int, podSpecYAML, credentialRef string, observability []byte) (Version, error) {
	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO extension_service_versions (id, service_id, sequence, pod_spec_yaml, credential_ref, observability_config, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 RETURNING `+versionColumns,
		uuid.New(), serviceID, sequence, podSpecYAML, credentialRef, observability,
	)
	return scanVersionRow(row)
}

// GetVersion returns a single version by ID.
func (s *Store) GetVersion(ctx context.Context, id uuid.UUID) (Version, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+versionColumns+` FROM extension_service_versions WHERE id = $1`, id)
	return scanVersionRow(row)
}

// LatestVersion returns the highest-sequence version for a service.
func (s *Store) LatestVersion(ctx context.Context, serviceID uuid.UUID) (Version, error) {
	row := s.dbtx.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM extension_service_versions
		 WHERE service_id = $1 ORDER BY sequence DESC LIMIT 1`,
		serviceID,
	)
	return scanVersionRow(row)
}

// VersionInfos returns lightweight metadata for every service's latest version.
func (s *Store) VersionInfos(ctx context.Context, serviceIDs []uuid.UUID) ([]VersionInfo, error) {
	rows, err := s.dbtx.Query(ctx,
		`SELECT DISTINCT ON (service_id) service_id, sequence, created_at
		 FROM extension_service_versions
		 WHERE service_id = ANY($1)
		 ORDER BY service_id, sequence DESC`,
		serviceIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("listing version infos: %w", err)
	}
	defer rows.Close()

	var out []VersionInfo
	for rows.Next() {
		var vi VersionInfo
		if err := rows.Scan(&vi.ServiceID, &vi.Sequence, &vi.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning version info row: %w", err)
		}
		out = append(out, vi)
	}
	return out, rows.Err()
}

// DeleteVersion removes a version row. Callers are responsible for deleting
// the referenced credential afterward.
func (s *Store) DeleteVersion(ctx context.Context, id uuid.UUID) error {
	_, err := s.dbtx.Exec(ctx, `DELETE FROM extension_service_versions WHERE id = $1`, id)
	return err
}
