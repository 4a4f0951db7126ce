package machine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/forgecp/forge/internal/apierr"
	"github.com/forgecp/forge/internal/ids"
	"github.com/forgecp/forge/internal/notify"
)

// healthAlertNotifier delivers a raised health alert to an operator-facing
// channel. It is satisfied by *notify.Notifier; Service accepts the
// narrower interface so tests can fake delivery without a Slack client.
type healthAlertNotifier interface {
	PostHealthAlert(ctx context.Context, alert notify.HealthAlert)
}

// Service implements managed-host business logic over a Store and HealthStore.
type Service struct {
	store     *Store
	health    *HealthStore
	overrides *OverrideStore
	notifier  healthAlertNotifier
}

// NewService constructs a Service. overrides may be nil, in which case
// health reports are never masked. notifier may be nil (or a disabled
// *notify.Notifier), in which case raised alerts are not posted anywhere.
func NewService(store *Store, health *HealthStore, overrides *OverrideStore, notifier healthAlertNotifier) *Service {
	return &Service{store: store, health: health, overrides: overrides, notifier: notifier}
}

// Register creates a new managed host for a DPU presenting for the first
// time, minting a fresh content-addressed MachineID.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (ManagedHost, error) {
	machineID, err := ids.NewMachineID()
	if err != nil {
		return ManagedHost{}, apierr.Wrap(apierr.Internal, "generating machine id", err)
	}

	h, err := s.store.Create(ctx, machineID, req.TenantID)
	if err != nil {
		return ManagedHost{}, apierr.Wrap(apierr.Internal, "registering managed host", err)
	}
	return h, nil
}

// Get returns a managed host by ID.
func (s *Service) Get(ctx context.Context, machineID string) (ManagedHost, error) {
	h, err := s.store.Get(ctx, machineID)
	if err != nil {
		return ManagedHost{}, apierr.NotFoundf("machine %s not found", machineID)
	}
	return h, nil
}

// FindByIDs returns every managed host among the given IDs that exists.
func (s *Service) FindByIDs(ctx context.Context, machineIDs []string) ([]ManagedHost, error) {
	hosts, err := s.store.FindByIDs(ctx, machineIDs)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "finding managed hosts", err)
	}
	return hosts, nil
}

// ListByTenant returns every managed host owned by a tenant.
func (s *Service) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]ManagedHost, error) {
	hosts, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "listing managed hosts", err)
	}
	return hosts, nil
}

// PhoneHome records a DPU agent heartbeat. An agent-reported FAILED state
// moves a host that is not already FAILED to FAILED through the timeout
// event; any other reported state only records the heartbeat.
func (s *Service) PhoneHome(ctx context.Context, machineID string, req PhoneHomeRequest) (ManagedHost, error) {
	h, err := s.store.Get(ctx, machineID)
	if err != nil {
		return ManagedHost{}, apierr.NotFoundf("machine %s not found", machineID)
	}

	if err := s.store.RecordPhoneHome(ctx, machineID); err != nil {
		return ManagedHost{}, apierr.Wrap(apierr.Internal, "recording phone-home", err)
	}
	now := time.Now()
	h.LastPhoneHome = &now

	if req.State == StateFailed && h.State != StateFailed {
		failure := &FailureDetails{Cause: FailureCauseAgentUnreachable, Source: FailureSourceAgent, Message: "agent reported failed state"}
		to, nextFailure, err := Next(h, EventTimeout, failure)
		if err != nil {
			return h, nil // agent report doesn't map to a legal transition; ignore
		}
		updated, err := s.store.UpdateState(ctx, machineID, to, nextFailure)
		if err != nil {
			return ManagedHost{}, apierr.Wrap(apierr.Internal, "applying agent-reported failure", err)
		}
		return updated, nil
	}

	return h, nil
}

// Allocate moves a READY host to ALLOCATED against an instance.
func (s *Service) Allocate(ctx context.Context, machineID string, instanceID uuid.UUID) (ManagedHost, error) {
	h, err := s.store.Get(ctx, machineID)
	if err != nil {
		return ManagedHost{}, apierr.NotFoundf("machine %s not found", machineID)
	}

	to, _, err := Next(h, EventAllocate, nil)
	if err != nil {
		return ManagedHost{}, apierr.FailedPreconditionf("%s", err)
	}

	if err := s.store.SetAllocation(ctx, machineID, &instanceID); err != nil {
		return ManagedHost{}, apierr.Wrap(apierr.Internal, "recording allocation", err)
	}
	updated, err := s.store.UpdateState(ctx, machineID, to, nil)
	if err != nil {
		return ManagedHost{}, apierr.Wrap(apierr.Internal, "persisting allocation transition", err)
	}
	return updated, nil
}

// Release moves an ALLOCATED host to CLEANUP.
func (s *Service) Release(ctx context.Context, machineID string) (ManagedHost, error) {
	h, err := s.store.Get(ctx, machineID)
	if err != nil {
		return ManagedHost{}, apierr.NotFoundf("machine %s not found", machineID)
	}

	to, _, err := Next(h, EventRelease, nil)
	if err != nil {
		return ManagedHost{}, apierr.FailedPreconditionf("%s", err)
	}

	if err := s.store.SetAllocation(ctx, machineID, nil); err != nil {
		return ManagedHost{}, apierr.Wrap(apierr.Internal, "clearing allocation", err)
	}
	updated, err := s.store.UpdateState(ctx, machineID, to, nil)
	if err != nil {
		return ManagedHost{}, apierr.Wrap(apierr.Internal, "persisting release transition", err)
	}
	return updated, nil
}

// Clear is an operator override that moves a FAILED host back to DISCOVERY.
func (s *Service) Clear(ctx context.Context, machineID string, req TransitionRequest) (ManagedHost, error) {
	h, err := s.store.Get(ctx, machineID)
	if err != nil {
		return ManagedHost{}, apierr.NotFoundf("machine %s not found", machineID)
	}
	if h.State != StateFailed {
		return ManagedHost{}, apierr.FailedPreconditionf("machine %s is not in a failed state", machineID)
	}

	to, _, err := Next(h, EventOperatorClear, nil)
	if err != nil {
		return ManagedHost{}, apierr.FailedPreconditionf("%s", err)
	}

	updated, err := s.store.UpdateState(ctx, machineID, to, nil)
	if err != nil {
		return ManagedHost{}, apierr.Wrap(apierr.Internal, "clearing failed machine", err)
	}
	return updated, nil
}

// ReportHealthAlert records an agent-observed degraded condition.
func (s *Service) ReportHealthAlert(ctx context.Context, machineID string, req ReportHealthAlertRequest) (HealthAlert, error) {
	if _, err := s.store.Get(ctx, machineID); err != nil {
		return HealthAlert{}, apierr.NotFoundf("machine %s not found", machineID)
	}
	a, err := s.health.Report(ctx, machineID, req)
	if err != nil {
		return HealthAlert{}, apierr.Wrap(apierr.Internal, "reporting health alert", err)
	}
	if s.notifier != nil {
		s.notifier.PostHealthAlert(ctx, notify.HealthAlert{
			MachineID:      a.MachineID,
			Kind:           string(a.Kind),
			Target:         a.Target,
			Message:        a.Message,
			Classification: string(a.Classification),
		})
	}
	return a, nil
}

// ListHealthAlerts returns the effective open health alerts for a host: the
// real alerts the controller and agents reported, masked by any operator
// override installed for the machine.
func (s *Service) ListHealthAlerts(ctx context.Context, machineID string) ([]HealthAlert, error) {
	alerts, err := s.health.ListOpen(ctx, machineID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "listing health alerts", err)
	}

	if s.overrides == nil {
		return alerts, nil
	}
	override, err := s.overrides.Get(ctx, machineID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return alerts, nil
		}
		return nil, apierr.Wrap(apierr.Internal, "loading health alert override", err)
	}
	return EffectiveReport(alerts, &override), nil
}

// SetHealthOverride installs or replaces the health-alert override for a
// host, e.g. while an operator is investigating a known false-positive
// sensor and wants it masked from the tenant-visible report.
func (s *Service) SetHealthOverride(ctx context.Context, machineID string, req SetHealthOverrideRequest) (HealthAlertOverride, error) {
	if _, err := s.store.Get(ctx, machineID); err != nil {
		return HealthAlertOverride{}, apierr.NotFoundf("machine %s not found", machineID)
	}
	if s.overrides == nil {
		return HealthAlertOverride{}, apierr.Wrap(apierr.Internal, "setting health alert override", apierr.NotFoundf("overrides not configured"))
	}
	override, err := s.overrides.Set(ctx, machineID, req.Mode, req.Alerts)
	if err != nil {
		return HealthAlertOverride{}, apierr.Wrap(apierr.Internal, "setting health alert override", err)
	}
	return override, nil
}

// GetHealthOverride returns the health-alert override installed for a host,
// or apierr.NotFound if none is installed.
func (s *Service) GetHealthOverride(ctx context.Context, machineID string) (HealthAlertOverride, error) {
	if s.overrides == nil {
		return HealthAlertOverride{}, apierr.NotFoundf("no health alert override for machine %s", machineID)
	}
	override, err := s.overrides.Get(ctx, machineID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return HealthAlertOverride{}, apierr.NotFoundf("no health alert override for machine %s", machineID)
		}
		return HealthAlertOverride{}, apierr.Wrap(apierr.Internal, "loading health alert override", err)
	}
	return override, nil
}

// ClearHealthOverride removes a host's health-alert override, if any.
func (s *Service) ClearHealthOverride(ctx context.Context, machineID string) error {
	if s.overrides == nil {
		return nil
	}
	if err := s.overrides.Clear(ctx, machineID); err != nil {
		return apierr.Wrap(apierr.Internal, "clearing health alert override", err)
	}
	return nil
}
