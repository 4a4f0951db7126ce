package validation

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/forgecp/forge/internal/apierr"
)

// Service implements validation-catalog and validation-run business logic.
type Service struct {
	store *Store
}

// NewService constructs a Service.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// UpsertTest creates a new version of a test, leaving prior versions intact
// (and enabled, unless separately disabled) so in-flight runs keep pointing
// at the exact body that produced them.
func (s *Service) UpsertTest(ctx context.Context, req UpsertTestRequest) (Test, error) {
	latest, err := s.store.LatestVersion(ctx, req.TestID)
	if err != nil {
		return Test{}, apierr.Wrap(apierr.Internal, "looking up latest test version", err)
	}

	t, err := s.store.CreateVersion(ctx, req, latest+1)
	if err != nil {
		return Test{}, apierr.Wrap(apierr.Internal, "creating test version", err)
	}
	return t, nil
}

// Disable retires a specific test version from selection.
func (s *Service) Disable(ctx context.Context, id uuid.UUID) error {
	if err := s.store.SetEnabled(ctx, id, false); err != nil {
		return apierr.Wrap(apierr.Internal, "disabling test", err)
	}
	return nil
}

// Catalog returns the latest enabled version of every test.
func (s *Service) Catalog(ctx context.Context) ([]Test, error) {
	tests, err := s.store.ListLatestEnabled(ctx)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "listing validation catalog", err)
	}
	return tests, nil
}

// StartRuns kicks off one pending run per catalog test against a machine. It
// is called when a host enters StateValidation.
func (s *Service) StartRuns(ctx context.Context, machineID string) ([]Run, error) {
	tests, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	if len(tests) == 0 {
		return nil, apierr.FailedPreconditionf("no enabled validation tests in catalog")
	}

	runs := make([]Run, 0, len(tests))
	for _, t := range tests {
		run, err := s.store.CreateRun(ctx, machineID, t)
		if err != nil {
			return nil, apierr.Wrap(apierr.Internal, "creating validation run", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// CompleteRun records the outcome of a single validation run.
func (s *Service) CompleteRun(ctx context.Context, id uuid.UUID, req CompleteRunRequest) (Run, error) {
	run, err := s.store.CompleteRun(ctx, id, req.Status, req.Summary)
	if err != nil {
		return Run{}, apierr.Wrap(apierr.Internal, "completing validation run", err)
	}
	return run, nil
}

// Result is the aggregated outcome of every run started for a machine's most
// recent validation attempt.
type Result struct {
	Passed  bool
	Summary string
}

// ResultForMachine aggregates the latest run of each catalog test for a
// machine. The second return value is false while any run is still pending.
func (s *Service) ResultForMachine(ctx context.Context, machineID string) (Result, bool, error) {
	runs, err := s.store.LatestRunsForMachine(ctx, machineID)
	if err != nil {
		return Result{}, false, apierr.Wrap(apierr.Internal, "loading validation runs", err)
	}
	return aggregate(runs)
}

// aggregate is pure so it can be unit tested without a database: it is done
// once every run is no longer PENDING, and passes only if every run passed.
func aggregate(runs []Run) (Result, bool, error) {
	if len(runs) == 0 {
		return Result{}, false, nil
	}

	var failedTests []string
	for _, r := range runs {
		if r.Status == RunStatusPending {
			return Result{}, false, nil
		}
		if r.Status == RunStatusFailed {
			failedTests = append(failedTests, r.TestID)
		}
	}

	if len(failedTests) > 0 {
		return Result{Passed: false, Summary: "failed: " + strings.Join(failedTests, ", ")}, true, nil
	}
	return Result{Passed: true, Summary: "all validation tests passed"}, true, nil
}
