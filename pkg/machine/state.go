package machine

import "fmt"

// MaxAutoRetries bounds how many times the controller will automatically
// retry a failed validation or cleanup before parking the host in
// StateFailed with Retryable=false, requiring an operator to clear it.
const MaxAutoRetries = 3

// Event is a fact observed by the controller that may drive a state
// transition: an agent phone-home, a validation result, an allocation
// request, or an operator override.
type Event string

const (
	EventDiscovered       Event = "DISCOVERED"
	EventValidationPassed Event = "VALIDATION_PASSED"
	EventValidationFailed Event = "VALIDATION_FAILED"
	EventAllocate         Event = "ALLOCATE"
	EventRelease          Event = "RELEASE"
	EventCleanupDone      Event = "CLEANUP_DONE"
	EventTimeout          Event = "TIMEOUT"
	EventOperatorClear    Event = "OPERATOR_CLEAR"
)

// transitions is the adjacency table of legal (from, event) -> to moves.
// Anything not listed is rejected by Next.
var transitions = map[State]map[Event]State{
	StateDiscovery: {
		EventDiscovered: StateValidation,
		EventTimeout:     StateFailed,
	},
	StateValidation: {
		EventValidationPassed: StateReady,
		EventValidationFailed: StateFailed,
		EventTimeout:          StateFailed,
	},
	StateReady: {
		EventAllocate: StateAllocated,
	},
	StateAllocated: {
		EventRelease: StateCleanup,
	},
	StateCleanup: {
		EventCleanupDone:      StateValidation,
		EventValidationFailed: StateFailed,
		EventTimeout:          StateFailed,
	},
	StateFailed: {
		EventOperatorClear: StateDiscovery,
	},
}

// Next computes the state a ManagedHost moves to in response to ev, applying
// the retry policy: a validation or cleanup failure re-enters the same stage
// up to MaxAutoRetries times before the controller gives up and parks the
// host in StateFailed as non-retryable.
func Next(host ManagedHost, ev Event, failure *FailureDetails) (State, *FailureDetails, error) {
	stageTransitions, ok := transitions[host.State]
	if !ok {
		return "", nil, fmt.Errorf("machine %s: no transitions defined from state %s", host.MachineID, host.State)
	}

	to, ok := stageTransitions[ev]
	if !ok {
		return "", nil, fmt.Errorf("machine %s: event %s is not valid from state %s", host.MachineID, ev, host.State)
	}

	if to != StateFailed {
		return to, nil, nil
	}

	retryCount := 0
	if host.Failure != nil {
		retryCount = host.Failure.RetryCount
	}

	if failure == nil {
		failure = &FailureDetails{Cause: FailureCauseTimeout, Source: FailureSourceController}
	}
	failure.RetryCount = retryCount + 1

	if failure.RetryCount <= MaxAutoRetries && failure.Cause != FailureCauseOperatorRequested {
		failure.Retryable = true
		// Re-enter the stage the host failed from instead of parking it,
		// letting the controller retry automatically.
		return host.State, failure, nil
	}

	failure.Retryable = false
	return StateFailed, failure, nil
}
