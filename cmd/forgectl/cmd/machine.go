package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var machineCmd = &cobra.Command{
	Use:   "machine",
	Short: "Inspect managed hosts",
}

var machineShowCmd = &cobra.Command{
	Use:   "show <machine-id>",
	Short: "Show a managed host's current state and open health alerts",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		machineID := args[0]
		ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
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

		out := struct {
			Machine any `json:"machine"`
			Alerts  any `json:"open_health_alerts"`
		}{Machine: host, Alerts: alerts}

		enc := json.NewEncoder(c.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	machineCmd.AddCommand(machineShowCmd)
}
