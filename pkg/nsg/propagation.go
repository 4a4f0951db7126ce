package nsg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// AttachmentReport is the last propagation outcome recorded for one
// instance's attachment to a group.
type AttachmentReport struct {
	InstanceID uuid.UUID `json:"instance_id"`
	Applied    bool      `json:"applied"`
	Error      string    `json:"error,omitempty"`
	ReportedAt time.Time `json:"reported_at"`
}

// Aggregate reduces every known attachment report for a group, plus the
// group's total attachment count, into a single PropagationStatus:
//
//   - no attachments, or none have reported yet: Unknown
//   - every attachment reported an error: Error
//   - every attachment applied successfully: Full
//   - a mix of applied/errored/not-yet-reported: Partial
//   - every attachment reported, none applied, none errored (the enforcement
//     agent acknowledged but hasn't converged): None
func Aggregate(reports []AttachmentReport, totalAttachments int) PropagationStatus {
	if totalAttachments == 0 || len(reports) == 0 {
		return PropagationUnknown
	}

	applied, errored := 0, 0
	for _, r := range reports {
		switch {
		case r.Applied:
			applied++
		case r.Error != "":
			errored++
		}
	}

	switch {
	case errored == totalAttachments:
		return PropagationError
	case applied == totalAttachments:
		return PropagationFull
	case applied == 0 && errored == 0 && len(reports) == totalAttachments:
		return PropagationNone
	default:
		return PropagationPartial
	}
}

const (
	propagationKeyPrefix = "forge:nsg:propagation:"
	propagationChannel   = "forge:nsg:propagation:updates"
)

func attachmentKey(groupID uuid.UUID) string {
	return propagationKeyPrefix + groupID.String()
}

// PropagationStore tracks per-attachment reports in Redis (a hash keyed by
// instance ID, one per group) and publishes the computed status so operator
// dashboards can subscribe instead of polling.
type PropagationStore struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewPropagationStore creates a PropagationStore.
func NewPropagationStore(rdb *redis.Client, logger *slog.Logger) *PropagationStore {
	return &PropagationStore{rdb: rdb, logger: logger}
}

// RecordReport stores the latest report for one attachment.
func (p *PropagationStore) RecordReport(ctx context.Context, groupID uuid.UUID, report AttachmentReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling propagation report: %w", err)
	}
	if err := p.rdb.HSet(ctx, attachmentKey(groupID), report.InstanceID.String(), payload).Err(); err != nil {
		return fmt.Errorf("recording propagation report: %w", err)
	}
	return nil
}

// Reports returns every recorded attachment report for a group.
func (p *PropagationStore) Reports(ctx context.Context, groupID uuid.UUID) ([]AttachmentReport, error) {
	vals, err := p.rdb.HGetAll(ctx, attachmentKey(groupID)).Result()
	if err != nil {
		return nil, fmt.Errorf("loading propagation reports: %w", err)
	}
	out := make([]AttachmentReport, 0, len(vals))
	for _, raw := range vals {
		var r AttachmentReport
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			p.logger.Warn("skipping malformed propagation report", "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Publish announces a group's newly computed status to subscribers.
func (p *PropagationStore) Publish(ctx context.Context, groupID uuid.UUID, status PropagationStatus) {
	payload, _ := json.Marshal(struct {
		GroupID uuid.UUID         `json:"group_id"`
		Status  PropagationStatus `json:"status"`
	}{groupID, status})
	if err := p.rdb.Publish(ctx, propagationChannel, payload).Err(); err != nil {
		p.logger.Warn("publishing propagation status", "error", err)
	}
}

// Runner periodically recomputes and publishes propagation status for every
// security group on a fixed interval.
type Runner struct {
	store    *Store
	prop     *PropagationStore
	logger   *slog.Logger
	interval time.Duration
	gauge    *prometheus.GaugeVec // nsg_propagation_status{group_id,status}
}

// NewRunner builds a propagation aggregation Runner.
func NewRunner(store *Store, prop *PropagationStore, logger *slog.Logger, gauge *prometheus.GaugeVec, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Runner{store: store, prop: prop, logger: logger, gauge: gauge, interval: interval}
}

// Run blocks, recomputing propagation status for every group on each tick,
// until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("nsg propagation runner started", "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("nsg propagation runner stopped")
			return nil
		case <-ticker.C:
			if err := r.tick(ctx); err != nil {
				r.logger.Error("nsg propagation tick", "error", err)
			}
		}
	}
}

func (r *Runner) tick(ctx context.Context) error {
	groups, err := r.store.ListAllGroups(ctx)
	if err != nil {
		return fmt.Errorf("listing groups: %w", err)
	}

	for _, g := range groups {
		attachments, err := r.store.ListAttachments(ctx, g.ID)
		if err != nil {
			r.logger.Error("listing attachments", "group_id", g.ID, "error", err)
			continue
		}
		reports, err := r.prop.Reports(ctx, g.ID)
		if err != nil {
			r.logger.Error("loading propagation reports", "group_id", g.ID, "error", err)
			continue
		}

		status := Aggregate(reports, len(attachments))
		r.prop.Publish(ctx, g.ID, status)
		if r.gauge != nil {
			r.gauge.WithLabelValues(g.ID.String(), string(status)).Set(1)
		}
	}
	return nil
}
