package agentreconciler

// Filesystem and service contracts the reconciler mutates on a DPU. These
// are named constants rather than config fields where the upstream contract
// fixes the name; the directories they live under remain configurable via
// agentconfig.Config.
const (
	// podSpecFilePattern is the sprintf pattern for one desired service's
	// static-pod manifest, rooted under agentconfig.Config.StaticPodDir.
	podSpecFilePattern = "extservice_%s_%d.yaml"

	// credentialProviderConfigFile is the kubelet CredentialProviderConfig
	// JSON, rooted under agentconfig.Config.CredentialProviderConfigDir.
	credentialProviderConfigFile = "config.json"

	// credentialProviderScriptFile is the shell script kubelet invokes as its
	// image-credential-provider binary.
	credentialProviderScriptFile = "cred-provider.sh"

	// kubeletSystemdOverrideFile is the systemd drop-in passing
	// --image-credential-provider-config/--image-credential-provider-bin-dir
	// to kubelet.
	kubeletSystemdOverrideFile = "/etc/systemd/system/kubelet.service.d/20-forge-credential-provider.conf"

	// containerdSOCKSLatchFile marks that the containerd SOCKS proxy drop-in
	// has already been written once; its presence makes the write idempotent
	// without re-reading file content every tick.
	containerdSOCKSLatchFile = ".forge-socks-proxy-applied"

	// otelFragmentMaxConfigs is the per-service observability config cap;
	// above this the fragment is dropped rather than written.
	otelFragmentMaxConfigs = 20
)

// kubeletUnit, containerdUnit, and otelUnit are the systemd unit names
// restarted when their respective configuration changes.
const (
	kubeletUnit    = "kubelet.service"
	containerdUnit = "containerd.service"
	otelUnit       = "otelcol-contrib.service"
)
