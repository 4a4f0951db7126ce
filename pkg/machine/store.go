package machine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/forgecp/forge/internal/db"
)

// Store provides database operations for managed hosts.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a Store backed by the given database handle.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const hostColumns = `machine_id, tenant_id, state, previous_state, failure,
	allocated_to, last_phone_home, created_at, updated_at`

func scanHostRow(row pgx.Row) (ManagedHost, error) {
	var h ManagedHost
	var previousState *State
	var failureJSON []byte
	err := row.Scan(
		&h.MachineID, &h.TenantID, &h.State, &previousState, &failureJSON,
		&h.AllocatedTo, &h.LastPhoneHome, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return ManagedHost{}, err
	}
	if previousState != nil {
		h.PreviousState = *previousState
	}
	if len(failureJSON) > 0 {
		var f FailureDetails
		if err := json.Unmarshal(failureJSON, &f); err != nil {
			return ManagedHost{}, fmt.Errorf("unmarshaling failure details: %w", err)
		}
		h.Failure = &f
	}
	return h, nil
}

// Get returns a single managed host by machine ID.
func (s *Store) Get(ctx context.Context, machineID string) (ManagedHost, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+hostColumns+` FROM managed_hosts WHERE machine_id = $1`, machineID)
	return scanHostRow(row)
}

// Create registers a new managed host in StateDiscovery.
func (s *Store) Create(ctx context.Context, machineID string, tenantID uuid.UUID) (ManagedHost, error) {
	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO managed_hosts (machine_id, tenant_id, state, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 RETURNING `+hostColumns,
		machineID, tenantID, StateDiscovery,
	)
	return scanHostRow(row)
}

// UpdateState persists a state transition, recording the prior state and an
// optional failure payload.
func (s *Store) UpdateState(ctx context.Context, machineID string, to State, failure *FailureDetails) (ManagedHost, error) {
	var failureJSON []byte
	if failure != nil {
		var err error
		failureJSON, err = json.Marshal(failure)
		if err != nil {
			return ManagedHost{}, fmt.Errorf("marshaling failure details: %w", err)
		}
	}

	row := s.dbtx.QueryRow(ctx,
		`UPDATE managed_hosts
		 SET previous_state = state, state = $2, failure = $3, updated_at = now()
		 WHERE machine_id = $1
		 RETURNING `+hostColumns,
		machineID, to, failureJSON,
	)
	return scanHostRow(row)
}

// RecordPhoneHome stamps the last time an agent checked in.
func (s *Store) RecordPhoneHome(ctx context.Context, machineID string) error {
	_, err := s.dbtx.Exec(ctx,
		`UPDATE managed_hosts SET last_phone_home = now(), updated_at = now() WHERE machine_id = $1`,
		machineID,
	)
	return err
}

// SetAllocation marks a host allocated to (or released from, via nil) an instance.
func (s *Store) SetAllocation(ctx context.Context, machineID string, instanceID *uuid.UUID) error {
	_, err := s.dbtx.Exec(ctx,
		`UPDATE managed_hosts SET allocated_to = $2, updated_at = now() WHERE machine_id = $1`,
		machineID, instanceID,
	)
	return err
}

// FindByIDs returns every managed host whose ID is in ids, in no particular order.
func (s *Store) FindByIDs(ctx context.Context, ids []string) ([]ManagedHost, error) {
	rows, err := s.dbtx.Query(ctx, `SELECT `+hostColumns+` FROM managed_hosts WHERE machine_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("finding hosts by id: %w", err)
	}
	defer rows.Close()
	return scanHostRows(rows)
}

// ListByState returns every managed host currently in the given state,
// oldest-updated first, which the controller uses to pick up stalled hosts.
func (s *Store) ListByState(ctx context.Context, state State, limit int) ([]ManagedHost, error) {
	rows, err := s.dbtx.Query(ctx,
		`SELECT `+hostColumns+` FROM managed_hosts WHERE state = $1 ORDER BY updated_at ASC LIMIT $2`,
		state, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing hosts by state: %w", err)
	}
	defer rows.Close()
	return scanHostRows(rows)
}

// ListByTenant returns every managed host belonging to a tenant.
func (s *Store) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]ManagedHost, error) {
	rows, err := s.dbtx.Query(ctx, `SELECT `+hostColumns+` FROM managed_hosts WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing hosts by tenant: %w", err)
	}
	defer rows.Close()
	return scanHostRows(rows)
}

func scanHostRows(rows pgx.Rows) ([]ManagedHost, error) {
	var out []ManagedHost
	for rows.Next() {
		h, err := scanHostRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning managed host row: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
