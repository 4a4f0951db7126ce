// Command forge-agent runs the DPU-resident Forge agent: it polls the
// control plane for this managed host's desired extension-service set,
// reconciles it onto the local kubelet and containerd, and serves the
// instance-metadata endpoint to the guest workload.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/forgecp/forge/internal/agentapp"
	"github.com/forgecp/forge/internal/agentconfig"
)

func main() {
	cfg, err := agentconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := agentapp.Run(ctx, cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
