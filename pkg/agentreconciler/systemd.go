package agentreconciler

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
)

// SystemdRestarter serializes every systemd unit restart the reconciler
// issues behind a single mutex: kubelet, containerd, and otelcol-contrib are
// singletons per DPU, and only the extension-service reconciler mutates
// their configuration.
type SystemdRestarter struct {
	mu     sync.Mutex
	dryRun bool
}

// NewSystemdRestarter builds a SystemdRestarter. In dry-run mode Restart
// logs nothing and never execs systemctl; callers still observe the
// serialization behavior under concurrent calls.
func NewSystemdRestarter(dryRun bool) *SystemdRestarter {
	return &SystemdRestarter{dryRun: dryRun}
}

// Restart runs `systemctl restart <unit>`, holding the restarter's mutex for
// the duration so two reconcile steps never race a restart.
func (s *SystemdRestarter) Restart(ctx context.Context, unit string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dryRun {
		return nil
	}

	cmd := exec.CommandContext(ctx, "systemctl", "restart", unit)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("restarting %s: %w: %s", unit, err, out)
	}
	return nil
}

// DaemonReload runs `systemctl daemon-reload`, needed after writing a new
// systemd drop-in before the corresponding unit is restarted.
func (s *SystemdRestarter) DaemonReload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dryRun {
		return nil
	}

	cmd := exec.CommandContext(ctx, "systemctl", "daemon-reload")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("daemon-reload: %w: %s", err, out)
	}
	return nil
}
