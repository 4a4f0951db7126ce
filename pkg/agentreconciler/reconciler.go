package agentreconciler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Reconciler drives a DPU's local state toward a desired extension-service
// set. It is not re-entrant: SetDesired coalesces back-to-back updates
// behind a size-1 "dirty" signal channel, so a reconcile already in flight
// picks up the latest desired set on its next pass instead of running
// concurrently with another reconcile.
type Reconciler struct {
	staticPodDir        string
	credProviderDir     string
	containerdSOCKSPath string
	otelFragmentDir     string

	restarter *SystemdRestarter
	logger    *slog.Logger

	dirty chan struct{}

	mu                 sync.Mutex
	desired            []DesiredService
	lastCredentials    map[string]RegistryCredential
	otelFragmentHashes map[string]string
	statuses           map[string]StatusObservation
}

// Config carries the filesystem paths a Reconciler reconciles against,
// taken from agentconfig.Config so pkg/agentreconciler has no import-time
// dependency on the config package itself.
type Config struct {
	StaticPodDir                string
	CredentialProviderConfigDir string
	ContainerdSOCKSConfigPath   string
	OTelFragmentDir             string
}

// New builds a Reconciler. restarter may be built in dry-run mode for tests
// or for an operator previewing a fetched config bundle.
func New(cfg Config, restarter *SystemdRestarter, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		staticPodDir:        cfg.StaticPodDir,
		credProviderDir:     cfg.CredentialProviderConfigDir,
		containerdSOCKSPath: cfg.ContainerdSOCKSConfigPath,
		otelFragmentDir:     cfg.OTelFragmentDir,
		restarter:           restarter,
		logger:              logger,
		dirty:               make(chan struct{}, 1),
		lastCredentials:     map[string]RegistryCredential{},
		otelFragmentHashes:  map[string]string{},
		statuses:            map[string]StatusObservation{},
	}
}

// SetDesired replaces the desired service set and signals the reconcile
// loop. Non-blocking: if a signal is already pending, this call is a no-op
// beyond updating the stored desired set, since the pending reconcile will
// read the latest value when it runs.
func (r *Reconciler) SetDesired(desired []DesiredService) {
	r.mu.Lock()
	r.desired = desired
	r.mu.Unlock()

	select {
	case r.dirty <- struct{}{}:
	default:
	}
}

// Statuses returns the most recently computed status observation for every
// desired service, as a slice in no particular order.
func (r *Reconciler) Statuses() []StatusObservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StatusObservation, 0, len(r.statuses))
	for _, s := range r.statuses {
		out = append(out, s)
	}
	return out
}

// Run blocks, reconciling whenever SetDesired signals a change, until ctx
// is cancelled. Exactly one reconcile runs at a time.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("extension-service reconciler started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("extension-service reconciler stopped")
			return nil
		case <-r.dirty:
			r.mu.Lock()
			desired := r.desired
			r.mu.Unlock()

			if err := r.reconcileOnce(ctx, desired); err != nil {
				r.logger.Error("reconcile failed", "error", err)
			}
		}
	}
}

// reconcileOnce runs every reconciliation step for the given desired set. A
// failing step is logged and never aborts the remaining steps. Only a
// credential-step error is surfaced in the next status observation, on every
// desired service that carries a credential; errors from the other steps are
// only logged.
func (r *Reconciler) reconcileOnce(ctx context.Context, desired []DesiredService) error {
	errs := map[string]string{}

	if err := r.reconcilePodSpecs(desired); err != nil {
		r.logger.Error("reconciling pod specs", "error", err)
	}
	if err := r.reconcileCredentials(ctx, desired); err != nil {
		r.logger.Error("reconciling credentials", "error", err)
		for _, d := range desired {
			if d.Credential != nil {
				errs[statusKey(d.ServiceID.String(), d.Version)] = err.Error()
			}
		}
	}
	if err := r.reconcileContainerdSOCKS(ctx); err != nil {
		r.logger.Error("reconciling containerd SOCKS proxy", "error", err)
	}
	if err := r.reconcileObservability(ctx, desired); err != nil {
		r.logger.Error("reconciling observability fragments", "error", err)
	}

	r.updateStatuses(desired, errs)
	return nil
}

func statusKey(serviceID string, version int) string {
	return fmt.Sprintf("%s@%d", serviceID, version)
}

func (r *Reconciler) updateStatuses(desired []DesiredService, errs map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]StatusObservation, len(desired))
	for _, d := range desired {
		key := statusKey(d.ServiceID.String(), d.Version)
		state := StateHealthy
		message := ""
		if msg, ok := errs[key]; ok {
			state = StateDegraded
			message = msg
		}
		next[key] = StatusObservation{
			ServiceID: d.ServiceID,
			Version:   d.Version,
			State:     state,
			Components: []ComponentStatus{
				{Name: "pod-spec", Version: fmt.Sprintf("%d", d.Version), Status: string(state)},
			},
			Message: message,
		}
	}
	r.statuses = next
}

// writeFileAtomic writes data to path by writing to a sibling temp file,
// fsyncing it, then renaming it into place, so a reader never observes a
// partially written file.
func (r *Reconciler) writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsyncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting temp file permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
