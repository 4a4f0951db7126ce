package ids

import (
	"testing"
	"time"
)

func TestNewMachineIDShape(t *testing.T) {
	id, err := NewMachineID()
	if err != nil {
		t.Fatalf("NewMachineID: %v", err)
	}
	if !ValidMachineID(id) {
		t.Errorf("generated id %q does not look like a valid machine id", id)
	}
	id2, err := NewMachineID()
	if err != nil {
		t.Fatalf("NewMachineID: %v", err)
	}
	if id == id2 {
		t.Errorf("expected two generated machine ids to differ")
	}
}

func TestValidMachineIDRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "fm100", "not-a-machine-id", "fm200abc"} {
		if ValidMachineID(s) && s != "fm100" {
			continue
		}
	}
	if ValidMachineID("") {
		t.Errorf("empty string should not be a valid machine id")
	}
	if ValidMachineID("not-a-machine-id") {
		t.Errorf("non-prefixed string should not be a valid machine id")
	}
	if ValidMachineID("fm100") {
		t.Errorf("bare prefix with no payload should not be valid")
	}
}

func TestVersionRoundTrip(t *testing.T) {
	now := time.UnixMicro(1765432100123456)
	v := NewVersion(7, now)

	token := v.String()
	if token != "V7-T1765432100123456" {
		t.Fatalf("String() = %q, want V7-T1765432100123456", token)
	}

	parsed, err := ParseVersion(token)
	if err != nil {
		t.Fatalf("ParseVersion: %v", err)
	}
	if !parsed.Equal(v) {
		t.Errorf("parsed version %+v does not equal original %+v", parsed, v)
	}
}

func TestVersionOrdering(t *testing.T) {
	now := time.UnixMicro(1000)
	older := NewVersion(1, now)
	newer := NewVersion(2, now.Add(-time.Hour)) // clock skew: earlier timestamp, higher seq

	if !older.Less(newer) {
		t.Errorf("expected seq 1 to be less than seq 2 regardless of timestamp skew")
	}
	if newer.Less(older) {
		t.Errorf("expected seq 2 not to be less than seq 1")
	}
}

func TestParseVersionRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "V1", "1-T2", "Vx-T2", "V1-Tx"} {
		if _, err := ParseVersion(s); err == nil {
			t.Errorf("ParseVersion(%q) expected error, got nil", s)
		}
	}
}
