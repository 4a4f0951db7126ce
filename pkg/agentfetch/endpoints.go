package agentfetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// fetchBoundInstances returns every instance currently bound to this agent's
// machine.
func (f *Fetcher) fetchBoundInstances(ctx context.Context) ([]instance, error) {
	var out []instance
	path := "/api/v1/instances?machine_id=" + url.QueryEscape(f.machineID)
	if err := f.client.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, fmt.Errorf("fetching bound instances: %w", err)
	}
	return out, nil
}

// fetchVersionInfos returns lightweight latest-sequence metadata for a
// batch of extension services.
func (f *Fetcher) fetchVersionInfos(ctx context.Context, ids []uuid.UUID) ([]versionInfo, error) {
	var out []versionInfo
	path := "/api/v1/extension-services/versions?ids=" + joinUUIDs(ids)
	if err := f.client.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, fmt.Errorf("fetching version infos: %w", err)
	}
	return out, nil
}

// fetchLatestVersion returns the full pod-spec bundle and credential for a
// service's current version.
func (f *Fetcher) fetchLatestVersion(ctx context.Context, serviceID uuid.UUID) (versionBundle, error) {
	var out versionBundle
	path := fmt.Sprintf("/api/v1/extension-services/%s/versions/latest", serviceID)
	if err := f.client.do(ctx, "GET", path, nil, &out); err != nil {
		return versionBundle{}, fmt.Errorf("fetching latest version: %w", err)
	}
	return out, nil
}

// fetchMetadataSnapshot returns the IMDS-facing projection of an instance.
func (f *Fetcher) fetchMetadataSnapshot(ctx context.Context, instanceID uuid.UUID) (metadataSnapshot, error) {
	var out metadataSnapshot
	path := fmt.Sprintf("/api/v1/instances/%s/metadata", instanceID)
	if err := f.client.do(ctx, "GET", path, nil, &out); err != nil {
		return metadataSnapshot{}, fmt.Errorf("fetching metadata snapshot: %w", err)
	}
	return out, nil
}

// reportPhoneHome fetches this agent's own managed-host record and echoes
// its current state back as a heartbeat, confirming liveness without
// attempting to compute or second-guess the controller's state transitions.
func (f *Fetcher) reportPhoneHome(ctx context.Context) error {
	var host managedHost
	if err := f.client.do(ctx, "GET", "/api/v1/machines/"+f.machineID, nil, &host); err != nil {
		return fmt.Errorf("fetching managed host: %w", err)
	}

	path := fmt.Sprintf("/api/v1/machines/%s/phone-home", f.machineID)
	if err := f.client.do(ctx, "POST", path, phoneHomeRequest{State: host.State}, nil); err != nil {
		return fmt.Errorf("posting phone-home: %w", err)
	}
	return nil
}

func joinUUIDs(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}
