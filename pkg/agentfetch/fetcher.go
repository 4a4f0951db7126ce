package agentfetch

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/forgecp/forge/pkg/agentimds"
	"github.com/forgecp/forge/pkg/agentreconciler"
)

// instance mirrors the subset of pkg/instance.Instance this agent needs.
type instance struct {
	ID                      uuid.UUID                `json:"id"`
	MachineID               *string                  `json:"machine_id,omitempty"`
	ExtensionServiceConfigs []extensionServiceConfig `json:"extension_service_configs"`
}

type extensionServiceConfig struct {
	ServiceID uuid.UUID `json:"service_id"`
	Version   int       `json:"version"`
}

// versionInfo mirrors pkg/extsvc.VersionInfo.
type versionInfo struct {
	ServiceID uuid.UUID `json:"service_id"`
	Sequence  int       `json:"sequence"`
}

// versionBundle mirrors the body extsvc's handleGetVersion returns.
type versionBundle struct {
	ID                 uuid.UUID           `json:"id"`
	ServiceID          uuid.UUID           `json:"service_id"`
	Sequence           int                 `json:"sequence"`
	PodSpecYAML        string              `json:"pod_spec_yaml"`
	ObservabilityJSON  []byte              `json:"observability_config,omitempty"`
	RegistryCredential *registryCredential `json:"registry_credential,omitempty"`
}

type registryCredential struct {
	Registry string `json:"registry"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// metadataSnapshot mirrors pkg/instance.MetadataSnapshot.
type metadataSnapshot struct {
	InstanceID              uuid.UUID `json:"instance_id"`
	MachineID               *string   `json:"machine_id,omitempty"`
	Address                 string    `json:"address"`
	Hostname                string    `json:"hostname"`
	UserData                string    `json:"user_data"`
	Sitename                *string   `json:"sitename,omitempty"`
	ASN                     string    `json:"asn"`
	ConfigVersion           string    `json:"config_version"`
	NetworkConfigVersion    string    `json:"network_config_version"`
	ExtensionServiceVersion string    `json:"extension_service_version"`
}

// Fetcher polls forge-api for this DPU's bound instances and their
// extension-service versions, fetches the latest full version bundle for
// every bound service on each tick, and pushes the resulting desired set to
// a Reconciler.
type Fetcher struct {
	client     *Client
	reconciler *agentreconciler.Reconciler
	imds       *agentimds.Store
	machineID  string
	interval   time.Duration
	logger     *slog.Logger

	// lastSeq records the last-fetched sequence per service. It is written on
	// each fetch and not consulted; every tick fetches the full bundle.
	lastSeq map[uuid.UUID]int
}

// New builds a Fetcher. imds may be nil; the fetcher then skips publishing
// an instance-metadata snapshot (useful for tests that only exercise
// extension-service reconciliation).
func New(client *Client, reconciler *agentreconciler.Reconciler, imds *agentimds.Store, machineID string, interval time.Duration, logger *slog.Logger) *Fetcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Fetcher{
		client:     client,
		reconciler: reconciler,
		imds:       imds,
		machineID:  machineID,
		interval:   interval,
		logger:     logger,
		lastSeq:    map[uuid.UUID]int{},
	}
}

// Run blocks, polling on Fetcher's interval until ctx is cancelled.
func (f *Fetcher) Run(ctx context.Context) error {
	f.logger.Info("config fetcher started", "interval", f.interval, "machine_id", f.machineID)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	// Fetch once immediately so the agent doesn't sit idle for a full
	// interval on startup.
	if err := f.tick(ctx); err != nil {
		f.logger.Error("initial config fetch", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("config fetcher stopped")
			return nil
		case <-ticker.C:
			if err := f.tick(ctx); err != nil {
				f.logger.Error("config fetch tick", "error", err)
			}
		}
	}
}

// PhoneHome reports this DPU's heartbeat immediately, outside the regular
// tick interval. It is wired as the instance-metadata endpoint's
// phone_home trigger, so a guest workload's own cloud-init run causes an
// immediate check-in instead of waiting for the next poll.
func (f *Fetcher) PhoneHome(r *http.Request) error {
	return f.reportPhoneHome(r.Context())
}

func (f *Fetcher) tick(ctx context.Context) error {
	if err := f.reportPhoneHome(ctx); err != nil {
		f.logger.Error("reporting phone-home", "error", err)
	}

	instances, err := f.fetchBoundInstances(ctx)
	if err != nil {
		return err
	}

	if f.imds != nil {
		f.publishIMDSSnapshot(ctx, instances)
	}

	wanted := map[uuid.UUID]int{}
	for _, inst := range instances {
		for _, cfg := range inst.ExtensionServiceConfigs {
			wanted[cfg.ServiceID] = cfg.Version
		}
	}
	if len(wanted) == 0 {
		f.reconciler.SetDesired(nil)
		return nil
	}

	ids := make([]uuid.UUID, 0, len(wanted))
	for id := range wanted {
		ids = append(ids, id)
	}

	infos, err := f.fetchVersionInfos(ctx, ids)
	if err != nil {
		return err
	}
	latest := map[uuid.UUID]int{}
	for _, vi := range infos {
		latest[vi.ServiceID] = vi.Sequence
	}

	desired := make([]agentreconciler.DesiredService, 0, len(wanted))
	for serviceID, wantVersion := range wanted {
		seq, ok := latest[serviceID]
		if !ok {
			f.logger.Error("no version info for bound service", "service_id", serviceID)
			continue
		}
		if seq != wantVersion {
			f.logger.Warn("bound instance references a version that is not the service's current sequence",
				"service_id", serviceID, "bound_version", wantVersion, "current_sequence", seq)
		}

		bundle, err := f.fetchLatestVersion(ctx, serviceID)
		if err != nil {
			f.logger.Error("fetching version bundle", "service_id", serviceID, "error", err)
			continue
		}

		ds := agentreconciler.DesiredService{
			ServiceID:     serviceID,
			Version:       bundle.Sequence,
			PodSpecYAML:   bundle.PodSpecYAML,
			Observability: bundle.ObservabilityJSON,
		}
		if bundle.RegistryCredential != nil {
			ds.Credential = &agentreconciler.RegistryCredential{
				Registry: bundle.RegistryCredential.Registry,
				Username: bundle.RegistryCredential.Username,
				Password: bundle.RegistryCredential.Password,
			}
		}
		desired = append(desired, ds)
		f.lastSeq[serviceID] = seq
	}

	f.reconciler.SetDesired(desired)
	return nil
}

// publishIMDSSnapshot fetches the metadata projection for this DPU's bound
// instance and swaps it into the local IMDS store. A DPU hosts at most one
// tenant instance at a time; if none is bound, the IMDS store is cleared so
// stale metadata from a prior tenant is never served to a new one.
func (f *Fetcher) publishIMDSSnapshot(ctx context.Context, instances []instance) {
	if len(instances) == 0 {
		f.imds.Swap(agentimds.Snapshot{})
		return
	}
	snap, err := f.fetchMetadataSnapshot(ctx, instances[0].ID)
	if err != nil {
		f.logger.Error("fetching instance metadata snapshot", "instance_id", instances[0].ID, "error", err)
		return
	}
	f.imds.Swap(agentimds.Snapshot{
		InstanceMetadata: &agentimds.InstanceMetadata{
			InstanceID:              &snap.InstanceID,
			MachineID:               snap.MachineID,
			Address:                 snap.Address,
			Hostname:                snap.Hostname,
			UserData:                snap.UserData,
			Sitename:                snap.Sitename,
			ConfigVersion:           snap.ConfigVersion,
			NetworkConfigVersion:    snap.NetworkConfigVersion,
			ExtensionServiceVersion: snap.ExtensionServiceVersion,
		},
		NetworkConfig: &agentimds.NetworkConfig{ASN: snap.ASN},
	})
}
