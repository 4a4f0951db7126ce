package agentfetch

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/forgecp/forge/pkg/agentimds"
	"github.com/forgecp/forge/pkg/agentreconciler"
)

func TestFetcher_Tick_ResolvesDesiredSet(t *testing.T) {
	serviceID := uuid.New()
	instanceID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/machines/fm100test", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}
		json.NewEncoder(w).Encode(managedHost{MachineID: "fm100test", State: "ALLOCATED"})
	})
	mux.HandleFunc("/api/v1/instances", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]instance{
			{ID: instanceID, ExtensionServiceConfigs: []extensionServiceConfig{{ServiceID: serviceID, Version: 1}}},
		})
	})
	mux.HandleFunc("/api/v1/instances/"+instanceID.String()+"/metadata", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(metadataSnapshot{InstanceID: instanceID, Hostname: "test-host"})
	})
	mux.HandleFunc("/api/v1/extension-services/versions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]versionInfo{{ServiceID: serviceID, Sequence: 1}})
	})
	mux.HandleFunc("/api/v1/extension-services/"+serviceID.String()+"/versions/latest", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(versionBundle{
			ServiceID:   serviceID,
			Sequence:    1,
			PodSpecYAML: "apiVersion: v1\nkind: Pod\n",
			RegistryCredential: &registryCredential{
				Registry: "registry.example.com", Username: "u", Password: "p",
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	staticPodDir := t.TempDir()
	reconciler := agentreconciler.New(agentreconciler.Config{
		StaticPodDir:                staticPodDir,
		CredentialProviderConfigDir: t.TempDir(),
		ContainerdSOCKSConfigPath:   filepath.Join(t.TempDir(), "http_proxy.conf"),
		OTelFragmentDir:             t.TempDir(),
	}, agentreconciler.NewSystemdRestarter(true), logger)
	imds := agentimds.NewStore()

	f := New(client, reconciler, imds, "fm100test", time.Second, logger)
	if err := f.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	entries, err := os.ReadDir(staticPodDir)
	if err != nil {
		t.Fatalf("reading static pod dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one pod spec file, got %d", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "extservice_") {
		t.Errorf("unexpected pod spec file name %q", entries[0].Name())
	}

	snap := imds.Get()
	if snap.InstanceMetadata == nil || snap.InstanceMetadata.Hostname != "test-host" {
		t.Errorf("imds snapshot not published: %+v", snap)
	}
}

func TestFetcher_Tick_NoBoundInstancesClearsDesired(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/machines/fm100test", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}
		json.NewEncoder(w).Encode(managedHost{MachineID: "fm100test", State: "ALLOCATED"})
	})
	mux.HandleFunc("/api/v1/instances", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]instance{})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	reconciler := agentreconciler.New(agentreconciler.Config{
		StaticPodDir:                t.TempDir(),
		CredentialProviderConfigDir: t.TempDir(),
		ContainerdSOCKSConfigPath:   filepath.Join(t.TempDir(), "http_proxy.conf"),
		OTelFragmentDir:             t.TempDir(),
	}, agentreconciler.NewSystemdRestarter(true), logger)

	f := New(client, reconciler, agentimds.NewStore(), "fm100test", time.Second, logger)
	if err := f.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
}
