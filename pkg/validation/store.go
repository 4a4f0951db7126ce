package validation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/forgecp/forge/internal/db"
)

// Store provides database operations for the validation-test catalog and its runs.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a Store backed by the given database handle.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const testColumns = `id, test_id, title, content, version, enabled, created_at`

func scanTestRow(row pgx.Row) (Test, error) {
	var t Test
	err := row.Scan(&t.ID, &t.TestID, &t.Title, &t.Content, &t.Version, &t.Enabled, &t.CreatedAt)
	return t, err
}

// LatestVersion returns the highest existing version number for a test key, or 0 if none exists.
func (s *Store) LatestVersion(ctx context.Context, testID string) (int, error) {
	var version int
	err := s.dbtx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM validation_tests WHERE test_id = $1`, testID,
	).Scan(&version)
	return version, err
}

// CreateVersion inserts a new version row for a test key.
func (s *Store) CreateVersion(ctx context.Context, req UpsertTestRequest, version int) (Test, error) {
	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO validation_tests (id, test_id, title, content, version, enabled, created_at)
		 VALUES ($1, $2, $3, $4, $5, true, now())
		 RETURNING `+testColumns,
		uuid.New(), req.TestID, req.Title, req.Content, version,
	)
	return scanTestRow(row)
}

// SetEnabled toggles whether a specific version of a test is eligible for selection.
func (s *Store) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	_, err := s.dbtx.Exec(ctx, `UPDATE validation_tests SET enabled = $2 WHERE id = $1`, id, enabled)
	return err
}

// ListLatestEnabled returns the highest-versioned enabled row for every test key.
func (s *Store) ListLatestEnabled(ctx context.Context) ([]Test, error) {
	rows, err := s.dbtx.Query(ctx,
		`SELECT DISTINCT ON (test_id) `+testColumns+`
		 FROM validation_tests
		 WHERE enabled = true
		 ORDER BY test_id, version DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing latest validation tests: %w", err)
	}
	defer rows.Close()

	var out []Test
	for rows.Next() {
		t, err := scanTestRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning validation test row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const runColumns = `id, machine_id, test_id, test_version, status, summary, started_at, completed_at`

func scanRunRow(row pgx.Row) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.MachineID, &r.TestID, &r.TestVersion, &r.Status, &r.Summary, &r.StartedAt, &r.CompletedAt)
	return r, err
}

// CreateRun inserts a pending run record for one test against one machine.
func (s *Store) CreateRun(ctx context.Context, machineID string, test Test) (Run, error) {
	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO validation_runs (id, machine_id, test_id, test_version, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 RETURNING `+runColumns,
		uuid.New(), machineID, test.TestID, test.Version, RunStatusPending,
	)
	return scanRunRow(row)
}

// CompleteRun marks a run passed or failed.
func (s *Store) CompleteRun(ctx context.Context, id uuid.UUID, status RunStatus, summary string) (Run, error) {
	row := s.dbtx.QueryRow(ctx,
		`UPDATE validation_runs SET status = $2, summary = $3, completed_at = now()
		 WHERE id = $1
		 RETURNING `+runColumns,
		id, status, summary,
	)
	return scanRunRow(row)
}

// LatestRunsForMachine returns the most recent run of each test key for a machine.
func (s *Store) LatestRunsForMachine(ctx context.Context, machineID string) ([]Run, error) {
	rows, err := s.dbtx.Query(ctx,
		`SELECT DISTINCT ON (test_id) `+runColumns+`
		 FROM validation_runs
		 WHERE machine_id = $1
		 ORDER BY test_id, started_at DESC`,
		machineID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing latest runs for machine: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRunRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning validation run row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
