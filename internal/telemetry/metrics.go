package telemetry

import "github.com/prometheus/client_golang/prometheus"

var MachineStateTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "forge",
		Subsystem: "machine",
		Name:      "state_transitions_total",
		Help:      "Total number of managed-host state machine transitions.",
	},
	[]string{"from", "to"},
)

var MachineValidationRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "forge",
		Subsystem: "machine",
		Name:      "validation_runs_total",
		Help:      "Total number of validation-test runs, by test_id and result.",
	},
	[]string{"test_id", "result"},
)

var MachineHealthAlertsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "forge",
		Subsystem: "machine",
		Name:      "health_alerts_total",
		Help:      "Total number of health alerts raised, by kind.",
	},
	[]string{"kind"},
)

var ControllerTickDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "forge",
		Subsystem: "controller",
		Name:      "tick_duration_seconds",
		Help:      "Duration of one controller loop iteration.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	},
	[]string{"loop"},
)

var ExtensionServiceVersionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "forge",
		Subsystem: "extsvc",
		Name:      "versions_created_total",
		Help:      "Total number of extension-service versions created.",
	},
	[]string{"service_id"},
)

var NSGPropagationStatus = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "forge",
		Subsystem: "nsg",
		Name:      "propagation_status",
		Help:      "Current propagation status of a network security group (1 if the gauge's labeled status is the current one, else 0).",
	},
	[]string{"nsg_id", "status"},
)

// All returns all forge-api-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		MachineStateTransitionsTotal,
		MachineValidationRunsTotal,
		MachineHealthAlertsTotal,
		ControllerTickDuration,
		ExtensionServiceVersionsTotal,
		NSGPropagationStatus,
	}
}
