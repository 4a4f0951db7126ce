package agentreconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// credentialProviderConfig is the kubelet CredentialProviderConfig shape
// kubelet expects at CredentialProviderConfigDir/config.json.
type credentialProviderConfig struct {
	APIVersion string                   `json:"apiVersion"`
	Kind       string                   `json:"kind"`
	Providers  []credentialProviderSpec `json:"providers"`
}

type credentialProviderSpec struct {
	Name        string   `json:"name"`
	MatchImages []string `json:"matchImages"`
	DefaultCacheDuration string `json:"defaultCacheDuration"`
	APIVersion  string   `json:"apiVersion"`
}

// reconcileCredentials computes the union of registry credentials across
// desired services and reconciles the image-credential-provider config,
// script, and systemd override. It is a no-op if the registry set is
// unchanged since the last reconcile.
func (r *Reconciler) reconcileCredentials(ctx context.Context, desired []DesiredService) error {
	creds := map[string]RegistryCredential{}
	for _, d := range desired {
		if d.Credential != nil {
			creds[d.Credential.Registry] = *d.Credential
		}
	}

	if sameRegistrySet(creds, r.lastCredentials) {
		return nil
	}

	if len(creds) == 0 {
		if err := r.removeCredentialProvider(); err != nil {
			return err
		}
		if err := r.restarter.DaemonReload(ctx); err != nil {
			return err
		}
		if err := r.restarter.Restart(ctx, kubeletUnit); err != nil {
			return err
		}
		r.lastCredentials = creds
		return nil
	}

	if err := r.writeCredentialProviderConfig(creds); err != nil {
		return err
	}
	if err := r.writeCredentialProviderScript(creds); err != nil {
		return err
	}
	if err := r.writeKubeletOverride(); err != nil {
		return err
	}
	if err := r.restarter.DaemonReload(ctx); err != nil {
		return err
	}
	if err := r.restarter.Restart(ctx, kubeletUnit); err != nil {
		return err
	}

	r.lastCredentials = creds
	return nil
}

func sameRegistrySet(a, b map[string]RegistryCredential) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		other, ok := b[k]
		if !ok || other != v {
			return false
		}
	}
	return true
}

func (r *Reconciler) removeCredentialProvider() error {
	for _, name := range []string{credentialProviderConfigFile, credentialProviderScriptFile} {
		if err := os.Remove(filepath.Join(r.credProviderDir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", name, err)
		}
	}
	if err := os.Remove(kubeletSystemdOverrideFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing kubelet systemd override: %w", err)
	}
	return nil
}

func (r *Reconciler) writeCredentialProviderConfig(creds map[string]RegistryCredential) error {
	registries := sortedRegistries(creds)
	cfg := credentialProviderConfig{
		APIVersion: "kubelet.config.k8s.io/v1",
		Kind:       "CredentialProviderConfig",
		Providers: []credentialProviderSpec{{
			Name:                 "forge-cred-provider",
			MatchImages:          registries,
			DefaultCacheDuration: "1h",
			APIVersion:           "credentialprovider.kubelet.k8s.io/v1",
		}},
	}
	body, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credential provider config: %w", err)
	}
	return r.writeFileAtomic(filepath.Join(r.credProviderDir, credentialProviderConfigFile), body, 0o644)
}

// writeCredentialProviderScript writes a shell script kubelet invokes as its
// credential-provider binary: it prints a tab-separated prefix/username/password
// line for the image, matched by longest prefix at lookup time.
func (r *Reconciler) writeCredentialProviderScript(creds map[string]RegistryCredential) error {
	var b strings.Builder
	b.WriteString("#!/bin/sh\nset -eu\nIMAGE=\"$1\"\n")
	// The first matching case wins, so longer prefixes are emitted first.
	registries := sortedRegistries(creds)
	sort.SliceStable(registries, func(i, j int) bool { return len(registries[i]) > len(registries[j]) })
	for _, registry := range registries {
		c := creds[registry]
		fmt.Fprintf(&b, "case \"$IMAGE\" in\n%s*)\n  printf '%%s\\t%%s\\t%%s\\n' %q %q %q\n  exit 0\n  ;;\nesac\n",
			registry, registry, c.Username, c.Password)
	}
	b.WriteString("exit 1\n")
	return r.writeFileAtomic(filepath.Join(r.credProviderDir, credentialProviderScriptFile), []byte(b.String()), 0o755)
}

func (r *Reconciler) writeKubeletOverride() error {
	body := fmt.Sprintf(`[Service]
Environment="KUBELET_CREDENTIAL_PROVIDER_CONFIG=--image-credential-provider-config=%s --image-credential-provider-bin-dir=%s"
`, filepath.Join(r.credProviderDir, credentialProviderConfigFile), r.credProviderDir)
	return r.writeFileAtomic(kubeletSystemdOverrideFile, []byte(body), 0o644)
}

func sortedRegistries(creds map[string]RegistryCredential) []string {
	out := make([]string, 0, len(creds))
	for k := range creds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// reconcileContainerdSOCKS writes the containerd SOCKS proxy drop-in exactly
// once per DPU lifetime, latched via a marker file so repeated ticks never
// re-trigger a containerd restart.
func (r *Reconciler) reconcileContainerdSOCKS(ctx context.Context) error {
	latch := filepath.Join(filepath.Dir(r.containerdSOCKSPath), containerdSOCKSLatchFile)
	if _, err := os.Stat(latch); err == nil {
		return nil
	}

	if err := r.writeFileAtomic(r.containerdSOCKSPath, []byte(containerdSOCKSDropIn), 0o644); err != nil {
		return fmt.Errorf("writing containerd SOCKS drop-in: %w", err)
	}
	if err := r.restarter.Restart(ctx, containerdUnit); err != nil {
		return fmt.Errorf("restarting containerd: %w", err)
	}
	if err := os.WriteFile(latch, []byte("applied\n"), 0o644); err != nil {
		return fmt.Errorf("writing containerd SOCKS latch: %w", err)
	}
	return nil
}

const containerdSOCKSDropIn = `[Service]
Environment="HTTP_PROXY=socks5h://127.0.0.1:1080"
Environment="HTTPS_PROXY=socks5h://127.0.0.1:1080"
`
