// Package validation implements the validation-test catalog: a versioned
// set of named tests run against a managed host before it is allowed into
// StateReady, plus the run records produced each time a host is validated.
package validation

import (
	"time"

	"github.com/google/uuid"
)

// Test is one version of a named validation test. Updating a test's content
// creates a new row with Version incremented rather than mutating the row in
// place, so a run record can always be traced back to the exact test body
// that produced it.
type Test struct {
	ID        uuid.UUID `json:"id"`
	TestID    string    `json:"test_id"` // stable human key, e.g. "nic-link-speed"
	Title     string    `json:"title"`
	Content   string    `json:"content"` // script or structured check body
	Version   int       `json:"version"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// RunStatus is the lifecycle of a single validation run.
type RunStatus string

const (
	RunStatusPending RunStatus = "PENDING"
	RunStatusPassed  RunStatus = "PASSED"
	RunStatusFailed  RunStatus = "FAILED"
)

// Run is a single execution of one Test against one machine.
type Run struct {
	ID          uuid.UUID  `json:"id"`
	MachineID   string     `json:"machine_id"`
	TestID      string     `json:"test_id"`
	TestVersion int        `json:"test_version"`
	Status      RunStatus  `json:"status"`
	Summary     string     `json:"summary,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// UpsertTestRequest creates a new version of a test, enabled by default.
type UpsertTestRequest struct {
	TestID  string `json:"test_id" validate:"required"`
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// CompleteRunRequest is the payload a DPU agent posts when a test finishes.
type CompleteRunRequest struct {
	Status  RunStatus `json:"status" validate:"required,oneof=PASSED FAILED"`
	Summary string    `json:"summary"`
}
