package machine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/forgecp/forge/internal/db"
)

// HealthAlertKind classifies the condition a health alert reports.
type HealthAlertKind string

const (
	HealthAlertKindThermal      HealthAlertKind = "THERMAL"
	HealthAlertKindNIC          HealthAlertKind = "NIC_LINK_DOWN"
	HealthAlertKindDisk         HealthAlertKind = "DISK_PREDICTIVE_FAILURE"
	HealthAlertKindMemory       HealthAlertKind = "MEMORY_ECC"
	HealthAlertKindAgentStale   HealthAlertKind = "AGENT_STALE"
	HealthAlertKindStateFailed  HealthAlertKind = "STATE_FAILED"
)

// Classification tags an alert with a consequence the rest of the fleet
// control plane reacts to, independent of what produced the alert.
type Classification string

// ClassificationPreventAllocations marks a host ineligible for new
// instances while the alert is open.
const ClassificationPreventAllocations Classification = "PREVENT_ALLOCATIONS"

// HealthAlert is a durable record of a degraded condition observed on a
// managed host. Alerts are deduplicated on (machine_id, kind, target) so a
// flapping sensor does not create unbounded rows; repeated reports instead
// bump occurrence_count on the existing alert.
type HealthAlert struct {
	ID              uuid.UUID       `json:"id"`
	MachineID       string          `json:"machine_id"`
	Kind            HealthAlertKind `json:"kind"`
	Target          string          `json:"target"` // e.g. a NIC name or disk device path
	Message         string          `json:"message"`
	Classification  Classification  `json:"classification,omitempty"`
	OccurrenceCount int             `json:"occurrence_count"`
	Resolved        bool            `json:"resolved"`
	FirstSeenAt     time.Time       `json:"first_seen_at"`
	LastSeenAt      time.Time       `json:"last_seen_at"`
}

// ReportHealthAlertRequest is the payload a DPU agent posts when it observes
// a degraded condition.
type ReportHealthAlertRequest struct {
	Kind    HealthAlertKind `json:"kind" validate:"required"`
	Target  string          `json:"target" validate:"required"`
	Message string          `json:"message" validate:"required"`
}

const dedupTTL = 5 * time.Minute
const redisKeyPrefix = "forge:health-alert:dedup:"

func dedupKey(machineID string, kind HealthAlertKind, target string) string {
	return redisKeyPrefix + machineID + ":" + string(kind) + ":" + target
}

// HealthStore provides durable storage and Redis-backed dedup for health alerts.
type HealthStore struct {
	dbtx   db.DBTX
	rdb    *redis.Client
	logger *slog.Logger
}

// NewHealthStore creates a HealthStore. rdb may be nil, in which case dedup
// falls back to a plain database lookup on every report.
func NewHealthStore(dbtx db.DBTX, rdb *redis.Client, logger *slog.Logger) *HealthStore {
	return &HealthStore{dbtx: dbtx, rdb: rdb, logger: logger}
}

const healthAlertColumns = `id, machine_id, kind, target, message, classification, occurrence_count,
	resolved, first_seen_at, last_seen_at`

func scanHealthAlertRow(row pgx.Row) (HealthAlert, error) {
	var a HealthAlert
	err := row.Scan(&a.ID, &a.MachineID, &a.Kind, &a.Target, &a.Message, &a.Classification,
		&a.OccurrenceCount, &a.Resolved, &a.FirstSeenAt, &a.LastSeenAt)
	return a, err
}

// Report records an observed condition, deduplicating against any open alert
// for the same (machine, kind, target) tuple.
func (s *HealthStore) Report(ctx context.Context, machineID string, req ReportHealthAlertRequest) (HealthAlert, error) {
	return s.report(ctx, machineID, req.Kind, req.Target, req.Message, "")
}

// RaiseClassified records a controller-originated alert carrying a
// Classification, e.g. the prevent_allocations alert the state machine
// raises whenever a host enters StateFailed.
func (s *HealthStore) RaiseClassified(ctx context.Context, machineID string, kind HealthAlertKind, target, message string, classification Classification) (HealthAlert, error) {
	return s.report(ctx, machineID, kind, target, message, classification)
}

func (s *HealthStore) report(ctx context.Context, machineID string, kind HealthAlertKind, target, message string, classification Classification) (HealthAlert, error) {
	key := dedupKey(machineID, kind, target)

	if s.rdb != nil {
		if idStr, err := s.rdb.Get(ctx, key).Result(); err == nil {
			id, parseErr := uuid.Parse(idStr)
			if parseErr == nil {
				return s.bump(ctx, id)
			}
		} else if err != redis.Nil {
			s.logger.Warn("redis health-alert dedup lookup failed, falling back to DB", "error", err)
		}
	}

	existing, err := s.getOpen(ctx, machineID, kind, target)
	if err == nil {
		s.cacheSet(ctx, key, existing.ID)
		return s.bump(ctx, existing.ID)
	}
	if err != pgx.ErrNoRows {
		return HealthAlert{}, fmt.Errorf("looking up open health alert: %w", err)
	}

	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO machine_health_alerts (id, machine_id, kind, target, message, classification,
			occurrence_count, resolved, first_seen_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 1, false, now(), now())
		 RETURNING `+healthAlertColumns,
		uuid.New(), machineID, kind, target, message, classification,
	)
	created, err := scanHealthAlertRow(row)
	if err != nil {
		return HealthAlert{}, fmt.Errorf("creating health alert: %w", err)
	}
	s.cacheSet(ctx, key, created.ID)
	return created, nil
}

func (s *HealthStore) getOpen(ctx context.Context, machineID string, kind HealthAlertKind, target string) (HealthAlert, error) {
	row := s.dbtx.QueryRow(ctx,
		`SELECT `+healthAlertColumns+` FROM machine_health_alerts
		 WHERE machine_id = $1 AND kind = $2 AND target = $3 AND resolved = false`,
		machineID, kind, target,
	)
	return scanHealthAlertRow(row)
}

func (s *HealthStore) bump(ctx context.Context, id uuid.UUID) (HealthAlert, error) {
	row := s.dbtx.QueryRow(ctx,
		`UPDATE machine_health_alerts
		 SET occurrence_count = occurrence_count + 1, last_seen_at = now()
		 WHERE id = $1
		 RETURNING `+healthAlertColumns,
		id,
	)
	a, err := scanHealthAlertRow(row)
	if err != nil {
		return HealthAlert{}, fmt.Errorf("bumping health alert occurrence: %w", err)
	}
	return a, nil
}

func (s *HealthStore) cacheSet(ctx context.Context, key string, id uuid.UUID) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Set(ctx, key, id.String(), dedupTTL).Err(); err != nil {
		s.logger.Warn("failed to warm health-alert dedup cache", "error", err)
	}
}

// Resolve marks a health alert resolved, e.g. once the underlying sensor
// clears or an operator acknowledges it.
func (s *HealthStore) Resolve(ctx context.Context, id uuid.UUID) error {
	_, err := s.dbtx.Exec(ctx, `UPDATE machine_health_alerts SET resolved = true WHERE id = $1`, id)
	return err
}

// ClearByClassification resolves every open alert of a given classification
// for a machine, e.g. clearing the prevent_allocations alert once a host
// re-enters StateReady.
func (s *HealthStore) ClearByClassification(ctx context.Context, machineID string, classification Classification) error {
	_, err := s.dbtx.Exec(ctx,
		`UPDATE machine_health_alerts SET resolved = true
		 WHERE machine_id = $1 AND classification = $2 AND resolved = false`,
		machineID, classification,
	)
	return err
}

// ListOpen returns every unresolved alert for a machine.
func (s *HealthStore) ListOpen(ctx context.Context, machineID string) ([]HealthAlert, error) {
	rows, err := s.dbtx.Query(ctx,
		`SELECT `+healthAlertColumns+` FROM machine_health_alerts
		 WHERE machine_id = $1 AND resolved = false ORDER BY last_seen_at DESC`,
		machineID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing open health alerts: %w", err)
	}
	defer rows.Close()

	var out []HealthAlert
	for rows.Next() {
		a, err := scanHealthAlertRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning health alert row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
