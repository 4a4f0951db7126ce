// Package machine implements the managed-host state machine (MHSM): the
// lifecycle of a physical host from discovery through validation,
// readiness, allocation to a tenant, and cleanup back to the pool.
package machine

import (
	"time"

	"github.com/google/uuid"
)

// State is one node of the managed-host lifecycle.
type State string

const (
	StateDiscovery  State = "DISCOVERY"
	StateValidation State = "VALIDATION"
	StateReady      State = "READY"
	StateAllocated  State = "ALLOCATED"
	StateCleanup    State = "CLEANUP"
	StateFailed     State = "FAILED"
)

// validStates enumerates every State for validation.
var validStates = map[State]struct{}{
	StateDiscovery:  {},
	StateValidation: {},
	StateReady:      {},
	StateAllocated:  {},
	StateCleanup:    {},
	StateFailed:     {},
}

// IsValid reports whether s is a recognized State.
func (s State) IsValid() bool {
	_, ok := validStates[s]
	return ok
}

// FailureSource identifies what raised a FailureDetails.
type FailureSource string

const (
	FailureSourceAgent      FailureSource = "AGENT"
	FailureSourceController FailureSource = "CONTROLLER"
	FailureSourceOperator   FailureSource = "OPERATOR"
)

// FailureCause classifies why a managed host transitioned to StateFailed.
type FailureCause string

const (
	FailureCauseHardwareFault     FailureCause = "HARDWARE_FAULT"
	FailureCauseValidationFailed  FailureCause = "VALIDATION_FAILED"
	FailureCauseTimeout           FailureCause = "TIMEOUT"
	FailureCauseAgentUnreachable  FailureCause = "AGENT_UNREACHABLE"
	FailureCauseOperatorRequested FailureCause = "OPERATOR_REQUESTED"
)

// FailureDetails records why and how a managed host failed, and whether the
// controller should keep retrying automatically.
type FailureDetails struct {
	Cause       FailureCause  `json:"cause"`
	Source      FailureSource `json:"source"`
	Message     string        `json:"message"`
	Retryable   bool          `json:"retryable"`
	OccurredAt  time.Time     `json:"occurred_at"`
	RetryCount  int           `json:"retry_count"`
}

// ManagedHost is a physical host under fleet control.
type ManagedHost struct {
	MachineID      string          `json:"machine_id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	State          State           `json:"state"`
	PreviousState  State           `json:"previous_state,omitempty"`
	Failure        *FailureDetails `json:"failure,omitempty"`
	AllocatedTo    *uuid.UUID      `json:"allocated_to,omitempty"` // instance ID, when ALLOCATED
	LastPhoneHome  *time.Time      `json:"last_phone_home,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RegisterRequest is the payload a DPU agent presents to register a newly
// discovered host with the control plane.
type RegisterRequest struct {
	TenantID uuid.UUID `json:"tenant_id" validate:"required"`
}

// PhoneHomeRequest is the periodic agent heartbeat payload.
type PhoneHomeRequest struct {
	State State `json:"state" validate:"required"`
}

// TransitionRequest is an operator- or controller-initiated manual
// transition, used mainly to clear a FAILED host back to DISCOVERY.
type TransitionRequest struct {
	ToState State  `json:"to_state" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
}
