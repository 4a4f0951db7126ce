package vpc

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/forgecp/forge/internal/db"
)

// Store provides database operations for VPCs.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a Store backed by the given database handle.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const vpcColumns = `id, tenant_id, name, cidr, created_at, updated_at`

func scanVPCRow(row pgx.Row) (VPC, error) {
	var v VPC
	err := row.Scan(&v.ID, &v.TenantID, &v.Name, &v.CIDR, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

// Create inserts a new VPC.
func (s *Store) Create(ctx context.Context, req CreateRequest) (VPC, error) {
	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO vpcs (id, tenant_id, name, cidr, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now(), now())
		 RETURNING `+vpcColumns,
		uuid.New(), req.TenantID, req.Name, req.CIDR,
	)
	return scanVPCRow(row)
}

// Get returns a single VPC by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (VPC, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+vpcColumns+` FROM vpcs WHERE id = $1`, id)
	return scanVPCRow(row)
}

// ListByTenant returns every VPC owned by a tenant.
func (s *Store) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]VPC, error) {
	rows, err := s.dbtx.Query(ctx, `SELECT `+vpcColumns+` FROM vpcs WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing vpcs: %w", err)
	}
	defer rows.Close()

	var out []VPC
	for rows.Next() {
		v, err := scanVPCRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning vpc row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Delete removes a VPC.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.dbtx.Exec(ctx, `DELETE FROM vpcs WHERE id = $1`, id)
	return err
}
