// Package agentconfig loads the forge-agent (DPU-resident) process
// configuration from environment variables.
package agentconfig

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all forge-agent configuration.
type Config struct {
	// Mode names the agent's run mode. "agent" is the only mode; the agent
	// does not read this field.
	Mode string `env:"FORGE_AGENT_MODE" envDefault:"agent"`

	// MachineID identifies this DPU's managed host to the control plane.
	MachineID string `env:"FORGE_MACHINE_ID,required"`

	// ControlPlaneURL is the base URL of the forge-api server this agent
	// fetches extension-service config and reports phone-home status to.
	ControlPlaneURL string `env:"FORGE_CONTROL_PLANE_URL,required"`

	// AgentAPIKey authenticates this DPU to the control plane.
	AgentAPIKey string `env:"FORGE_AGENT_API_KEY,required"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9100"`

	// IMDSListenAddr is the link-local address the instance-metadata
	// endpoint binds to inside the DPU network namespace.
	IMDSListenAddr string `env:"FORGE_IMDS_LISTEN_ADDR" envDefault:"169.254.169.254:80"`

	// FetchInterval is how often the agent polls the control plane for a
	// new extension-service configuration bundle.
	FetchInterval string `env:"FORGE_FETCH_INTERVAL" envDefault:"15s"`

	// ReconcileDebounce is loaded but not read by the agent; back-to-back
	// fetch notifications are coalesced by the reconciler's one-slot
	// change signal, with no delay.
	ReconcileDebounce string `env:"FORGE_RECONCILE_DEBOUNCE" envDefault:"2s"`

	// StaticPodDir is the kubelet static-pod manifest directory this agent
	// reconciles extension-service pod specs into.
	StaticPodDir string `env:"FORGE_STATIC_POD_DIR" envDefault:"/etc/kubernetes/manifests"`

	// CredentialProviderConfigDir holds the kubelet image-credential-provider
	// config and script: a single pair covering the registry creds of every
	// desired extension service.
	CredentialProviderConfigDir string `env:"FORGE_CRED_PROVIDER_DIR" envDefault:"/etc/kubernetes/image-credential-provider.d"`

	// ContainerdSOCKSConfigPath is the systemd drop-in for containerd.service
	// that routes containerd's HTTP(S) traffic through the local SOCKS proxy
	// at 127.0.0.1:1080. It is written once per DPU, not per service.
	ContainerdSOCKSConfigPath string `env:"FORGE_CONTAINERD_SOCKS_CONF" envDefault:"/etc/systemd/system/containerd.service.d/http_proxy.conf"`

	// OTelFragmentDir holds per-service OpenTelemetry collector config
	// fragments reconciled from extension-service observability configs.
	OTelFragmentDir string `env:"FORGE_OTEL_FRAGMENT_DIR" envDefault:"/etc/otelcol/conf.d"`

	// DryRun makes the agent log systemd unit restarts instead of performing
	// them. Files are still written.
	DryRun bool `env:"FORGE_AGENT_DRY_RUN" envDefault:"false"`
}

// Load reads agent configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing agent config from env: %w", err)
	}
	return cfg, nil
}
