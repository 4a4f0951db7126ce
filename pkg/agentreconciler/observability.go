package agentreconciler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func otelFragmentName(serviceID string) string {
	return serviceID + ".yaml"
}

// reconcileObservability writes one OTel collector config fragment per
// desired service. A service with no observability config, or whose config
// count exceeds the per-service cap, gets its fragment removed instead of
// written. Writing is skipped when the fragment's content is unchanged, and
// the otel service is restarted only if something actually changed.
func (r *Reconciler) reconcileObservability(ctx context.Context, desired []DesiredService) error {
	changed := false
	seen := map[string]bool{}

	for _, d := range desired {
		name := otelFragmentName(d.ServiceID.String())
		path := filepath.Join(r.otelFragmentDir, name)

		if len(d.Observability) == 0 {
			continue
		}

		count, err := countObservabilityConfigs(d.Observability)
		if err != nil {
			r.logger.Error("parsing observability config", "service_id", d.ServiceID, "error", err)
			continue
		}
		if count > otelFragmentMaxConfigs {
			r.logger.Error("observability config count exceeds cap, dropping fragment",
				"service_id", d.ServiceID, "count", count, "cap", otelFragmentMaxConfigs)
			continue
		}

		seen[name] = true
		sum := contentHash(d.Observability)
		if r.otelFragmentHashes[name] == sum {
			continue
		}
		if err := r.writeFileAtomic(path, d.Observability, 0o644); err != nil {
			r.logger.Error("writing otel fragment", "service_id", d.ServiceID, "error", err)
			continue
		}
		r.otelFragmentHashes[name] = sum
		changed = true
	}

	entries, err := os.ReadDir(r.otelFragmentDir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading otel fragment dir: %w", err)
	}
	for _, e := range entries {
		if seen[e.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(r.otelFragmentDir, e.Name())); err != nil && !os.IsNotExist(err) {
			r.logger.Error("removing stale otel fragment", "file", e.Name(), "error", err)
			continue
		}
		delete(r.otelFragmentHashes, e.Name())
		changed = true
	}

	if !changed {
		return nil
	}

	// A bad fragment is logged by the otel wrapper's own validation, not
	// treated as fatal here; the reconcile loop must keep running.
	if err := r.restarter.Restart(ctx, otelUnit); err != nil {
		r.logger.Error("restarting otel collector", "error", err)
	}
	return nil
}

func countObservabilityConfigs(raw []byte) (int, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		return len(arr), nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, err
	}
	return 1, nil
}

func contentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
