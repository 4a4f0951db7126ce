package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/forgecp/forge/internal/db"
)

// Store provides database operations for tenants and tenant keysets.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a Store backed by the given database handle.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const tenantColumns = `id, name, slug, created_at, updated_at`

func scanTenantRow(row pgx.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// Get returns a single tenant by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Tenant, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenantRow(row)
}

// GetBySlug returns a single tenant by slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (Tenant, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
	return scanTenantRow(row)
}

// Create inserts a new tenant.
func (s *Store) Create(ctx context.Context, name, slug string) (Tenant, error) {
	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO tenants (id, name, slug, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 RETURNING `+tenantColumns,
		uuid.New(), name, slug,
	)
	return scanTenantRow(row)
}

// UpdateName renames a tenant.
func (s *Store) UpdateName(ctx context.Context, id uuid.UUID, name string) (Tenant, error) {
	row := s.dbtx.QueryRow(ctx,
		`UPDATE tenants SET name = $2, updated_at = now() WHERE id = $1 RETURNING `+tenantColumns,
		id, name,
	)
	return scanTenantRow(row)
}

// List returns a page of tenants ordered by name, along with the total
// tenant count so callers can compute page counts.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Tenant, int, error) {
	var total int
	if err := s.dbtx.QueryRow(ctx, `SELECT count(*) FROM tenants`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting tenants: %w", err)
	}

	rows, err := s.dbtx.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY name LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		t, err := scanTenantRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning tenant row: %w", err)
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

const keysetColumns = `id, tenant_id, active_key_id, created_at, rotated_at`

func scanKeysetRow(row pgx.Row) (Keyset, error) {
	var k Keyset
	err := row.Scan(&k.ID, &k.TenantID, &k.ActiveKeyID, &k.CreatedAt, &k.RotatedAt)
	return k, err
}

// GetKeyset returns the keyset belonging to a tenant.
func (s *Store) GetKeyset(ctx context.Context, tenantID uuid.UUID) (Keyset, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+keysetColumns+` FROM tenant_keysets WHERE tenant_id = $1`, tenantID)
	return scanKeysetRow(row)
}

// CreateKeyset creates an empty keyset for a tenant, to be populated by an
// initial Rotate call.
func (s *Store) CreateKeyset(ctx context.Context, tenantID uuid.UUID) (Keyset, error) {
	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO tenant_keysets (id, tenant_id, created_at) VALUES ($1, $2, now())
		 RETURNING `+keysetColumns,
		uuid.New(), tenantID,
	)
	return scanKeysetRow(row)
}

// AddKey appends a new key to a tenant's keyset and marks it active.
func (s *Store) AddKey(ctx context.Context, keysetID uuid.UUID, key KeysetKey) error {
	tx, err := beginIfPossible(ctx, s.dbtx)
	if err != nil {
		return err
	}
	defer tx.rollback(ctx)

	if _, err := tx.dbtx.Exec(ctx,
		`INSERT INTO tenant_keyset_keys (id, keyset_id, public_key_pem, created_at, revoked)
		 VALUES ($1, $2, $3, now(), false)`,
		key.ID, keysetID, key.PublicKeyPEM,
	); err != nil {
		return fmt.Errorf("inserting keyset key: %w", err)
	}

	if _, err := tx.dbtx.Exec(ctx,
		`UPDATE tenant_keysets SET active_key_id = $2, rotated_at = now() WHERE id = $1`,
		keysetID, key.ID,
	); err != nil {
		return fmt.Errorf("activating keyset key: %w", err)
	}

	return tx.commit(ctx)
}

// ListKeys returns every key (active and revoked) in a keyset, most recent first.
func (s *Store) ListKeys(ctx context.Context, keysetID uuid.UUID) ([]KeysetKey, error) {
	rows, err := s.dbtx.Query(ctx,
		`SELECT id, public_key_pem, created_at, revoked FROM tenant_keyset_keys
		 WHERE keyset_id = $1 ORDER BY created_at DESC`,
		keysetID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing keyset keys: %w", err)
	}
	defer rows.Close()

	var out []KeysetKey
	for rows.Next() {
		var k KeysetKey
		if err := rows.Scan(&k.ID, &k.PublicKeyPEM, &k.CreatedAt, &k.Revoked); err != nil {
			return nil, fmt.Errorf("scanning keyset key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// RevokeKey marks a single key as revoked without affecting the active key.
func (s *Store) RevokeKey(ctx context.Context, keyID uuid.UUID) error {
	_, err := s.dbtx.Exec(ctx, `UPDATE tenant_keyset_keys SET revoked = true WHERE id = $1`, keyID)
	return err
}

// txHandle narrows db.DBTX down to the pgx.Tx methods Store needs for
// multi-statement operations, matching how the rest of the corpus wraps
// transactions without importing pgxpool directly into domain packages.
type txHandle struct {
	tx       pgx.Tx
	dbtx     db.DBTX
	borrowed bool
}

func beginIfPossible(ctx context.Context, handle db.DBTX) (*txHandle, error) {
	type beginner interface {
		Begin(ctx context.Context) (pgx.Tx, error)
	}
	b, ok := handle.(beginner)
	if !ok {
		// handle is already a transaction (or a fake in tests); run the
		// statements directly against it with no separate commit step.
		return &txHandle{dbtx: handle, borrowed: true}, nil
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &txHandle{tx: tx, dbtx: tx}, nil
}

func (t *txHandle) commit(ctx context.Context) error {
	if t.borrowed {
		return nil
	}
	return t.tx.Commit(ctx)
}

func (t *txHandle) rollback(ctx context.Context) {
	if t.borrowed || t.tx == nil {
		return
	}
	_ = t.tx.Rollback(ctx)
}
