package agentreconciler

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func newTestReconciler(t *testing.T) (*Reconciler, string) {
	t.Helper()
	root := t.TempDir()
	cfg := Config{
		StaticPodDir:                filepath.Join(root, "manifests"),
		CredentialProviderConfigDir: filepath.Join(root, "cred-provider"),
		ContainerdSOCKSConfigPath:   filepath.Join(root, "containerd", "http_proxy.conf"),
		OTelFragmentDir:             filepath.Join(root, "otel"),
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return New(cfg, NewSystemdRestarter(true), logger), root
}

func TestReconcilePodSpecs_WritesAndRemoves(t *testing.T) {
	r, root := newTestReconciler(t)
	svcA := uuid.New()
	svcB := uuid.New()

	desired := []DesiredService{
		{ServiceID: svcA, Version: 1, PodSpecYAML: "apiVersion: v1\nkind: Pod\nmetadata:\n  name: a\n"},
	}
	if err := r.reconcilePodSpecs(desired); err != nil {
		t.Fatalf("reconcilePodSpecs: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "manifests"))
	if err != nil {
		t.Fatalf("reading manifests dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 manifest, got %d", len(entries))
	}

	body, err := os.ReadFile(filepath.Join(root, "manifests", entries[0].Name()))
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	if !strings.Contains(string(body), "extservice-id") || !strings.Contains(string(body), svcA.String()) {
		t.Errorf("manifest missing injected labels: %s", body)
	}

	desired = []DesiredService{
		{ServiceID: svcB, Version: 1, PodSpecYAML: "apiVersion: v1\nkind: Pod\nmetadata:\n  name: b\n"},
	}
	if err := r.reconcilePodSpecs(desired); err != nil {
		t.Fatalf("second reconcilePodSpecs: %v", err)
	}

	entries, err = os.ReadDir(filepath.Join(root, "manifests"))
	if err != nil {
		t.Fatalf("reading manifests dir: %v", err)
	}
	if len(entries) != 1 || !strings.Contains(entries[0].Name(), svcB.String()) {
		t.Errorf("expected only service B's manifest to remain, got %v", entries)
	}
}

func TestReconcileCredentials_SkipsWhenUnchanged(t *testing.T) {
	r, root := newTestReconciler(t)
	desired := []DesiredService{
		{ServiceID: uuid.New(), Version: 1, Credential: &RegistryCredential{Registry: "registry.example.com", Username: "u", Password: "p"}},
	}

	if err := r.reconcileCredentials(context.Background(), desired); err != nil {
		t.Fatalf("first reconcileCredentials: %v", err)
	}
	configPath := filepath.Join(root, "cred-provider", credentialProviderConfigFile)
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("expected credential provider config to exist: %v", err)
	}
	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	firstModTime := info.ModTime()

	if err := r.reconcileCredentials(context.Background(), desired); err != nil {
		t.Fatalf("second reconcileCredentials: %v", err)
	}
	info2, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("stat after second reconcile: %v", err)
	}
	if !info2.ModTime().Equal(firstModTime) {
		t.Errorf("credential provider config was rewritten despite unchanged registry set")
	}
}

func TestReconcileContainerdSOCKS_Latches(t *testing.T) {
	r, root := newTestReconciler(t)

	if err := r.reconcileContainerdSOCKS(context.Background()); err != nil {
		t.Fatalf("first reconcileContainerdSOCKS: %v", err)
	}
	latch := filepath.Join(root, "containerd", containerdSOCKSLatchFile)
	if _, err := os.Stat(latch); err != nil {
		t.Fatalf("expected latch file: %v", err)
	}

	if err := os.Remove(r.containerdSOCKSPath); err != nil {
		t.Fatalf("removing drop-in: %v", err)
	}
	if err := r.reconcileContainerdSOCKS(context.Background()); err != nil {
		t.Fatalf("second reconcileContainerdSOCKS: %v", err)
	}
	if _, err := os.Stat(r.containerdSOCKSPath); err == nil {
		t.Errorf("expected drop-in to remain absent once latched")
	}
}

func TestSetDesired_CoalescesSignals(t *testing.T) {
	r, _ := newTestReconciler(t)

	r.SetDesired([]DesiredService{{ServiceID: uuid.New(), Version: 1}})
	r.SetDesired([]DesiredService{{ServiceID: uuid.New(), Version: 2}})

	select {
	case <-r.dirty:
	default:
		t.Fatal("expected a pending dirty signal")
	}
	select {
	case <-r.dirty:
		t.Fatal("expected only one coalesced dirty signal")
	default:
	}
}
