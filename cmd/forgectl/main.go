// Command forgectl is the operator CLI for the Forge control plane: machine
// inspection and debug-bundle export against a running forge-api.
package main

import (
	"fmt"
	"os"

	"github.com/forgecp/forge/cmd/forgectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
