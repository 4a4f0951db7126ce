package validation

import "testing"

func TestAggregate_SomePending(t *testing.T) {
	runs := []Run{
		{TestID: "nic-link-speed", Status: RunStatusPending},
		{TestID: "disk-smart", Status: RunStatusPassed},
	}

	_, done, err := aggregate(runs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done {
		t.Fatal("expected aggregate to report not-done while a run is pending")
	}
}

func TestAggregate_AllPassed(t *testing.T) {
	runs := []Run{
		{TestID: "nic-link-speed", Status: RunStatusPassed},
		{TestID: "disk-smart", Status: RunStatusPassed},
	}

	result, done, err := aggregate(runs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done {
		t.Fatal("expected aggregate to be done")
	}
	if !result.Passed {
		t.Errorf("expected Passed = true, got false (summary: %s)", result.Summary)
	}
}

func TestAggregate_OneFailed(t *testing.T) {
	runs := []Run{
		{TestID: "nic-link-speed", Status: RunStatusPassed},
		{TestID: "disk-smart", Status: RunStatusFailed},
	}

	result, done, err := aggregate(runs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done {
		t.Fatal("expected aggregate to be done")
	}
	if result.Passed {
		t.Error("expected Passed = false when any test failed")
	}
	if result.Summary == "" {
		t.Error("expected a non-empty failure summary")
	}
}

func TestAggregate_NoRuns(t *testing.T) {
	_, done, err := aggregate(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done {
		t.Fatal("expected aggregate to report not-done when no runs exist yet")
	}
}
