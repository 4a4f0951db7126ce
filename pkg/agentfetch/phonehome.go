package agentfetch

// managedHost mirrors the subset of pkg/machine.ManagedHost this agent
// needs to echo its current state back in a phone-home heartbeat.
type managedHost struct {
	MachineID string `json:"machine_id"`
	State     string `json:"state"`
}

type phoneHomeRequest struct {
	State string `json:"state"`
}
