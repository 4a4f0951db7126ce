package machine

import (
	"testing"
	"time"
)

func TestNext_HappyPath(t *testing.T) {
	h := ManagedHost{MachineID: "fm100test", State: StateDiscovery}

	to, failure, err := Next(h, EventDiscovered, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if to != StateValidation {
		t.Errorf("to = %s, want %s", to, StateValidation)
	}
	if failure != nil {
		t.Errorf("expected no failure, got %+v", failure)
	}
}

func TestNext_IllegalEvent(t *testing.T) {
	h := ManagedHost{MachineID: "fm100test", State: StateReady}

	_, _, err := Next(h, EventCleanupDone, nil)
	if err == nil {
		t.Fatal("expected error for illegal event from READY")
	}
}

func TestNext_RetriesBeforeFailing(t *testing.T) {
	h := ManagedHost{MachineID: "fm100test", State: StateValidation}
	failure := &FailureDetails{Cause: FailureCauseValidationFailed, Source: FailureSourceController}

	for i := 1; i <= MaxAutoRetries; i++ {
		to, next, err := Next(h, EventValidationFailed, failure)
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		if to != StateValidation {
			t.Fatalf("attempt %d: to = %s, want retry back to %s", i, to, StateValidation)
		}
		if !next.Retryable {
			t.Fatalf("attempt %d: expected retryable failure", i)
		}
		if next.RetryCount != i {
			t.Fatalf("attempt %d: retry count = %d, want %d", i, next.RetryCount, i)
		}
		h.Failure = next
	}

	// One more failure beyond MaxAutoRetries should park the host permanently.
	to, next, err := Next(h, EventValidationFailed, &FailureDetails{Cause: FailureCauseValidationFailed, Source: FailureSourceController})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if to != StateFailed {
		t.Fatalf("to = %s, want %s", to, StateFailed)
	}
	if next.Retryable {
		t.Fatal("expected non-retryable failure after exhausting retries")
	}
}

func TestNext_OperatorRequestedFailsImmediately(t *testing.T) {
	h := ManagedHost{MachineID: "fm100test", State: StateValidation}
	failure := &FailureDetails{Cause: FailureCauseOperatorRequested, Source: FailureSourceOperator}

	to, next, err := Next(h, EventValidationFailed, failure)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if to != StateFailed {
		t.Fatalf("to = %s, want %s", to, StateFailed)
	}
	if next.Retryable {
		t.Fatal("operator-requested failures should never be retried")
	}
}

func TestNext_OperatorClearFromFailed(t *testing.T) {
	h := ManagedHost{
		MachineID: "fm100test",
		State:     StateFailed,
		Failure:   &FailureDetails{Cause: FailureCauseTimeout, Source: FailureSourceController, OccurredAt: time.Now()},
	}

	to, _, err := Next(h, EventOperatorClear, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if to != StateDiscovery {
		t.Errorf("to = %s, want %s", to, StateDiscovery)
	}
}

func TestStateIsValid(t *testing.T) {
	if !StateReady.IsValid() {
		t.Error("StateReady should be valid")
	}
	if State("BOGUS").IsValid() {
		t.Error("BOGUS should not be valid")
	}
}
