package cmd

import (
	"github.com/spf13/cobra"

	"github.com/forgecp/forge/internal/cliclient"
)

var (
	controlPlaneURL string
	apiKey          string
)

var rootCmd = &cobra.Command{
	Use:   "forgectl",
	Short: "Operator CLI for the Forge fleet control plane",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&controlPlaneURL, "control-plane-url", "http://localhost:8080", "forge-api base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "operator API key")

	rootCmd.AddCommand(machineCmd)
	rootCmd.AddCommand(debugBundleCmd)
}

// Execute runs the forgectl root command.
func Execute() error {
	return rootCmd.Execute()
}

func newClient() *cliclient.Client {
	return cliclient.New(controlPlaneURL, apiKey)
}
