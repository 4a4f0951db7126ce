// Package debugbundle assembles the operator-facing debug bundle forgectl
// produces for a managed host: a ZIP of logs, health state, and site
// metadata with a fixed, contract-visible layout so downstream support
// tooling can parse it without knowing about Forge internals.
package debugbundle

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// LogLine is one line of a newline-delimited log file in the bundle.
type LogLine struct {
	Time    time.Time
	Message string
}

// GrafanaLink is one deep-link entry listed in metadata.txt.
type GrafanaLink struct {
	Label string
	URL   string
}

// Input is everything needed to produce one bundle. Fields left empty still
// produce their corresponding file, just with no entries — forgectl always
// writes every fixed top-level name even when a section has nothing to say,
// so a bundle's shape never depends on what was available at collection time.
type Input struct {
	MachineID string

	MachineInfo           any
	HealthAlerts          any
	HealthAlertOverride   any
	SiteControllerDetails any

	HostLogs       []LogLine
	CarbideAPILogs []LogLine
	DPUAgentLogs   []LogLine

	GrafanaLinks []GrafanaLink
}

// Build writes a complete debug bundle to w.
func Build(w io.Writer, in Input) error {
	if in.MachineID == "" {
		return fmt.Errorf("debug bundle requires a machine id")
	}

	zw := zip.NewWriter(w)

	if err := writeJSON(zw, "machine_info.json", nonNil(in.MachineInfo)); err != nil {
		return err
	}
	if err := writeJSON(zw, "health_alerts.json", nonNilSlice(in.HealthAlerts)); err != nil {
		return err
	}
	if err := writeJSON(zw, "health_alert_overrides.json", nonNil(in.HealthAlertOverride)); err != nil {
		return err
	}
	if err := writeJSON(zw, "site_controller_details.json", nonNil(in.SiteControllerDetails)); err != nil {
		return err
	}
	if err := writeLogLines(zw, fmt.Sprintf("host_logs_%s.txt", in.MachineID), in.HostLogs); err != nil {
		return err
	}
	if err := writeLogLines(zw, "carbide_api_logs.txt", in.CarbideAPILogs); err != nil {
		return err
	}
	if err := writeLogLines(zw, fmt.Sprintf("dpu_agent_logs_%s.txt", in.MachineID), in.DPUAgentLogs); err != nil {
		return err
	}
	if err := writeMetadata(zw, in); err != nil {
		return err
	}

	return zw.Close()
}

func nonNil(v any) any {
	if v == nil {
		return struct{}{}
	}
	return v
}

func nonNilSlice(v any) any {
	if v == nil {
		return []struct{}{}
	}
	return v
}

func writeJSON(zw *zip.Writer, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	fw, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	_, err = fw.Write(data)
	return err
}

const logTimeFormat = "2006-01-02 15:04:05.000"

func writeLogLines(zw *zip.Writer, name string, lines []LogLine) error {
	var buf strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&buf, "%s %s\n", l.Time.Format(logTimeFormat), l.Message)
	}
	fw, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	_, err = fw.Write([]byte(buf.String()))
	return err
}

func writeMetadata(zw *zip.Writer, in Input) error {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Forge debug bundle for machine %s\n", in.MachineID)
	fmt.Fprintf(&buf, "generated %s\n\n", time.Now().UTC().Format(time.RFC3339))
	if len(in.GrafanaLinks) == 0 {
		buf.WriteString("no grafana links available for this batch\n")
	} else {
		buf.WriteString("grafana deep links:\n")
		for _, l := range in.GrafanaLinks {
			fmt.Fprintf(&buf, "  %s: %s\n", l.Label, l.URL)
		}
	}
	fw, err := zw.Create("metadata.txt")
	if err != nil {
		return fmt.Errorf("creating metadata.txt: %w", err)
	}
	_, err = fw.Write([]byte(buf.String()))
	return err
}
