package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgecp/forge/internal/cliclient"
	"github.com/forgecp/forge/pkg/debugbundle"
)

var (
	debugBundleOutput      string
	debugBundleHostLog     string
	debugBundleAPILog      string
	debugBundleAgentLog    string
	debugBundleGrafanaURLs []string
)

var debugBundleCmd = &cobra.Command{
	Use:   "debug-bundle <machine-id>",
	Short: "Export a support debug bundle for a managed host",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		machineID := args[0]
		ctx, cancel := context.WithTimeout(c.Context(), 60*time.Second)
		defer cancel()

		client := newClient()

		host, err := client.GetMachine(ctx, machineID)
		if err != nil {
			return fmt.Errorf("fetching machine %s: %w", machineID, err)
		}
		alerts, err := client.ListHealthAlerts(ctx, machineID)
		if err != nil {
			return fmt.Errorf("fetching health alerts for %s: %w", machineID, err)
		}

		override, err := client.GetHealthOverride(ctx, machineID)
		hasOverride := err == nil
		if err != nil && err != cliclient.ErrNotFound {
			return fmt.Errorf("fetching health alert override for %s: %w", machineID, err)
		}

		hostLogs, err := readLogFile(debugBundleHostLog)
		if err != nil {
			return err
		}
		apiLogs, err := readLogFile(debugBundleAPILog)
		if err != nil {
			return err
		}
		agentLogs, err := readLogFile(debugBundleAgentLog)
		if err != nil {
			return err
		}

		links := make([]debugbundle.GrafanaLink, 0, len(debugBundleGrafanaURLs))
		for _, u := range debugBundleGrafanaURLs {
			links = append(links, debugbundle.GrafanaLink{Label: u, URL: u})
		}

		outPath := debugBundleOutput
		if outPath == "" {
			outPath = fmt.Sprintf("forge-debug-%s.zip", machineID)
		}
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close()

		in := debugbundle.Input{
			MachineID:             machineID,
			MachineInfo:           host,
			HealthAlerts:          alerts,
			SiteControllerDetails: struct{}{},
			HostLogs:              hostLogs,
			CarbideAPILogs:        apiLogs,
			DPUAgentLogs:          agentLogs,
			GrafanaLinks:          links,
		}
		if hasOverride {
			in.HealthAlertOverride = override
		}

		if err := debugbundle.Build(f, in); err != nil {
			return fmt.Errorf("building debug bundle: %w", err)
		}

		fmt.Fprintf(c.OutOrStdout(), "wrote %s\n", outPath)
		return nil
	},
}

// readLogFile loads a plain-text log file for embedding. Source log files
// are not expected to carry structured timestamps of their own, so every
// line is stamped with the bundle's collection time rather than claiming a
// per-line time this tool doesn't have.
func readLogFile(path string) ([]debugbundle.LogLine, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	collectedAt := time.Now()
	var lines []debugbundle.LogLine
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, debugbundle.LogLine{Time: collectedAt, Message: scanner.Text()})
	}
	return lines, scanner.Err()
}

func init() {
	debugBundleCmd.Flags().StringVar(&debugBundleOutput, "output", "", "output zip path (default forge-debug-<machine-id>.zip)")
	debugBundleCmd.Flags().StringVar(&debugBundleHostLog, "host-log", "", "path to a local host log file to embed")
	debugBundleCmd.Flags().StringVar(&debugBundleAPILog, "api-log", "", "path to a local forge-api log file to embed")
	debugBundleCmd.Flags().StringVar(&debugBundleAgentLog, "agent-log", "", "path to a local forge-agent log file to embed")
	debugBundleCmd.Flags().StringArrayVar(&debugBundleGrafanaURLs, "grafana-link", nil, "grafana deep-link URL to list in metadata.txt (repeatable)")
}
