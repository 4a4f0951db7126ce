package debugbundle

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestBuild_WritesFixedTopLevelNames(t *testing.T) {
	var buf bytes.Buffer
	err := Build(&buf, Input{
		MachineID:    "fm100abcd",
		MachineInfo:  map[string]string{"state": "READY"},
		HealthAlerts: []map[string]string{{"kind": "THERMAL"}},
		HostLogs:     []LogLine{{Time: time.Date(2026, 1, 2, 3, 4, 5, 6e6, time.UTC), Message: "hello"}},
		GrafanaLinks: []GrafanaLink{{Label: "CPU temp", URL: "https://grafana.example/d/abc"}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	r, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("reading zip: %v", err)
	}

	want := map[string]bool{
		"host_logs_fm100abcd.txt":     false,
		"carbide_api_logs.txt":        false,
		"dpu_agent_logs_fm100abcd.txt": false,
		"health_alerts.json":          false,
		"health_alert_overrides.json": false,
		"site_controller_details.json": false,
		"machine_info.json":           false,
		"metadata.txt":                false,
	}
	for _, f := range r.File {
		if _, ok := want[f.Name]; !ok {
			t.Errorf("unexpected file %q in bundle", f.Name)
			continue
		}
		want[f.Name] = true
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("missing expected file %q", name)
		}
	}
}

func TestBuild_LogLineFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Build(&buf, Input{
		MachineID: "fm1",
		HostLogs: []LogLine{
			{Time: time.Date(2026, 3, 4, 5, 6, 7, 89e6, time.UTC), Message: "agent started"},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	r, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("reading zip: %v", err)
	}
	content := readZipFile(t, r, "host_logs_fm1.txt")
	want := "2026-03-04 05:06:07.089 agent started\n"
	if content != want {
		t.Errorf("log line = %q, want %q", content, want)
	}
}

func TestBuild_EmptySectionsStillPresent(t *testing.T) {
	var buf bytes.Buffer
	if err := Build(&buf, Input{MachineID: "fm2"}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	r, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("reading zip: %v", err)
	}
	content := readZipFile(t, r, "health_alerts.json")
	var alerts []any
	if err := json.Unmarshal([]byte(content), &alerts); err != nil {
		t.Fatalf("health_alerts.json is not a JSON array: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("expected empty health_alerts.json, got %v", alerts)
	}
}

func TestBuild_RequiresMachineID(t *testing.T) {
	var buf bytes.Buffer
	if err := Build(&buf, Input{}); err == nil {
		t.Fatal("expected error for missing machine id")
	}
}

func readZipFile(t *testing.T, r *zip.Reader, name string) string {
	t.Helper()
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening %s: %v", name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		return buf.String()
	}
	t.Fatalf("file %s not found in bundle", name)
	return ""
}
