package machine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/forgecp/forge/internal/db"
)

// OverrideMode controls how a per-machine override's alert set combines
// with the alerts the controller and agents actually reported.
type OverrideMode string

const (
	// OverrideModeMerge shows the override's alerts alongside the real ones.
	OverrideModeMerge OverrideMode = "MERGE"
	// OverrideModeReplace hides every underlying alert and shows only the
	// override's, e.g. while an operator investigates a known false-positive
	// sensor and wants a single explanatory alert in its place.
	OverrideModeReplace OverrideMode = "REPLACE"
)

// OverrideAlert is an operator-authored alert entry carried by an override.
// It has no dedup identity of its own; it is not persisted as a
// HealthAlert row.
type OverrideAlert struct {
	Kind           HealthAlertKind `json:"kind"`
	Target         string          `json:"target"`
	Message        string          `json:"message"`
	Classification Classification  `json:"classification,omitempty"`
}

// HealthAlertOverride is the operator-set masking rule for one machine.
type HealthAlertOverride struct {
	MachineID string          `json:"machine_id"`
	Mode      OverrideMode    `json:"mode"`
	Alerts    []OverrideAlert `json:"alerts"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SetHealthOverrideRequest is the operator-facing payload for installing or
// replacing a machine's override.
type SetHealthOverrideRequest struct {
	Mode   OverrideMode    `json:"mode" validate:"required,oneof=MERGE REPLACE"`
	Alerts []OverrideAlert `json:"alerts"`
}

// OverrideStore persists health-alert overrides, one row per machine.
type OverrideStore struct {
	dbtx db.DBTX
}

// NewOverrideStore creates an OverrideStore.
func NewOverrideStore(dbtx db.DBTX) *OverrideStore {
	return &OverrideStore{dbtx: dbtx}
}

// Set installs or replaces the override for a machine.
func (s *OverrideStore) Set(ctx context.Context, machineID string, mode OverrideMode, alerts []OverrideAlert) (HealthAlertOverride, error) {
	if alerts == nil {
		alerts = []OverrideAlert{}
	}
	encoded, err := json.Marshal(alerts)
	if err != nil {
		return HealthAlertOverride{}, fmt.Errorf("encoding override alerts: %w", err)
	}

	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO machine_health_overrides (machine_id, mode, alerts, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 ON CONFLICT (machine_id) DO UPDATE SET mode = $2, alerts = $3, updated_at = now()
		 RETURNING machine_id, mode, alerts, created_at, updated_at`,
		machineID, mode, encoded,
	)
	return scanOverrideRow(row)
}

// Get returns the override installed for a machine, or (_, pgx.ErrNoRows) if
// none is installed.
func (s *OverrideStore) Get(ctx context.Context, machineID string) (HealthAlertOverride, error) {
	row := s.dbtx.QueryRow(ctx,
		`SELECT machine_id, mode, alerts, created_at, updated_at FROM machine_health_overrides WHERE machine_id = $1`,
		machineID,
	)
	return scanOverrideRow(row)
}

// Clear removes a machine's override, if any.
func (s *OverrideStore) Clear(ctx context.Context, machineID string) error {
	_, err := s.dbtx.Exec(ctx, `DELETE FROM machine_health_overrides WHERE machine_id = $1`, machineID)
	return err
}

func scanOverrideRow(row pgx.Row) (HealthAlertOverride, error) {
	var o HealthAlertOverride
	var raw []byte
	if err := row.Scan(&o.MachineID, &o.Mode, &raw, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return HealthAlertOverride{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o.Alerts); err != nil {
			return HealthAlertOverride{}, fmt.Errorf("decoding override alerts: %w", err)
		}
	}
	return o, nil
}

// EffectiveReport applies an override, if any, to a machine's raw open
// alerts: REPLACE discards the real alerts entirely, MERGE appends the
// override's synthetic alerts to them.
func EffectiveReport(real []HealthAlert, override *HealthAlertOverride) []HealthAlert {
	if override == nil {
		return real
	}
	synthetic := make([]HealthAlert, len(override.Alerts))
	for i, a := range override.Alerts {
		synthetic[i] = HealthAlert{
			MachineID:      override.MachineID,
			Kind:           a.Kind,
			Target:         a.Target,
			Message:        a.Message,
			Classification: a.Classification,
			FirstSeenAt:    override.CreatedAt,
			LastSeenAt:     override.UpdatedAt,
		}
	}
	if override.Mode == OverrideModeReplace {
		return synthetic
	}
	return append(real, synthetic...)
}
