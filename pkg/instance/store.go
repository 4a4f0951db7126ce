package instance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/forgecp/forge/internal/db"
)

// Store provides database operations for instances.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a Store backed by the given database handle.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const instanceColumns = `id, tenant_id, vpc_id, instance_type_id, machine_id, state, extension_service_configs, hostname, user_data, sitename, network_config_asn, keyset_ids, created_at, updated_at, removed_at`

func scanInstanceRow(row pgx.Row) (Instance, error) {
	var i Instance
	err := row.Scan(&i.ID, &i.TenantID, &i.VPCID, &i.InstanceTypeID, &i.MachineID, &i.State, &i.ExtensionServiceConfigs,
		&i.Hostname, &i.UserData, &i.Sitename, &i.NetworkConfigASN, &i.KeysetIDs, &i.CreatedAt, &i.UpdatedAt, &i.RemovedAt)
	return i, err
}

// Create inserts a new instance in PROVISIONING state. Hostname defaults to
// a value derived from the instance ID; callers update it once DNS/naming
// is assigned.
func (s *Store) Create(ctx context.Context, req CreateRequest) (Instance, error) {
	id := uuid.New()
	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO instances (id, tenant_id, vpc_id, instance_type_id, state, extension_service_configs, hostname, user_data, network_config_asn, keyset_ids, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, '[]', $6, '', '', '[]', now(), now())
		 RETURNING `+instanceColumns,
		id, req.TenantID, req.VPCID, req.InstanceTypeID, StateProvisioning, id.String(),
	)
	return scanInstanceRow(row)
}

// SetExtensionServiceConfigs replaces an instance's desired extension-service
// set wholesale; the DPU reconciler always works from a full desired list.
func (s *Store) SetExtensionServiceConfigs(ctx context.Context, id uuid.UUID, configs []ExtensionServiceConfig) (Instance, error) {
	row := s.dbtx.QueryRow(ctx,
		`UPDATE instances SET extension_service_configs = $2, updated_at = now() WHERE id = $1 RETURNING `+instanceColumns,
		id, configs,
	)
	return scanInstanceRow(row)
}

// Get returns a single instance by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Instance, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = $1`, id)
	return scanInstanceRow(row)
}

// BindMachine assigns a managed host to an instance and transitions it to RUNNING.
func (s *Store) BindMachine(ctx context.Context, id uuid.UUID, machineID string) (Instance, error) {
	row := s.dbtx.QueryRow(ctx,
		`UPDATE instances SET machine_id = $2, state = $3, updated_at = now() WHERE id = $1 RETURNING `+instanceColumns,
		id, machineID, StateRunning,
	)
	return scanInstanceRow(row)
}

// SetState updates an instance's lifecycle state.
func (s *Store) SetState(ctx context.Context, id uuid.UUID, state State) (Instance, error) {
	row := s.dbtx.QueryRow(ctx,
		`UPDATE instances SET state = $2, updated_at = now() WHERE id = $1 RETURNING `+instanceColumns,
		id, state,
	)
	return scanInstanceRow(row)
}

// ListByTenant returns every instance owned by a tenant.
func (s *Store) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Instance, error) {
	rows, err := s.dbtx.Query(ctx, `SELECT `+instanceColumns+` FROM instances WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}
	defer rows.Close()

	var out []Instance
	for rows.Next() {
		i, err := scanInstanceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning instance row: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// GetMetadataSnapshot returns the IMDS-facing projection of an instance.
// config_version and network_config_version are derived from updated_at
// rather than tracked as independent counters; Forge has a single mutable
// instance record, not the versioned-config history extension services use.
func (s *Store) GetMetadataSnapshot(ctx context.Context, id uuid.UUID) (MetadataSnapshot, error) {
	i, err := s.Get(ctx, id)
	if err != nil {
		return MetadataSnapshot{}, err
	}
	extSvcVersion := ""
	if len(i.ExtensionServiceConfigs) > 0 {
		extSvcVersion = fmt.Sprintf("%d", i.ExtensionServiceConfigs[len(i.ExtensionServiceConfigs)-1].Version)
	}
	return MetadataSnapshot{
		InstanceID:              i.ID,
		MachineID:               i.MachineID,
		Hostname:                i.Hostname,
		UserData:                i.UserData,
		Sitename:                i.Sitename,
		ASN:                     i.NetworkConfigASN,
		ConfigVersion:           i.UpdatedAt.Format(time.RFC3339Nano),
		NetworkConfigVersion:    i.UpdatedAt.Format(time.RFC3339Nano),
		ExtensionServiceVersion: extSvcVersion,
	}, nil
}

// ListByMachine returns every instance currently bound to a machine (normally zero or one).
func (s *Store) ListByMachine(ctx context.Context, machineID string) ([]Instance, error) {
	rows, err := s.dbtx.Query(ctx, `SELECT `+instanceColumns+` FROM instances WHERE machine_id = $1`, machineID)
	if err != nil {
		return nil, fmt.Errorf("listing instances by machine: %w", err)
	}
	defer rows.Close()

	var out []Instance
	for rows.Next() {
		i, err := scanInstanceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning instance row: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}
