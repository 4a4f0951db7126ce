package machine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/forgecp/forge/internal/notify"
)

// staleAfter is how long without a phone-home before the controller treats
// an agent as unreachable and fails the host out of VALIDATION or ALLOCATED.
const staleAfter = 2 * time.Minute

// Controller drives managed hosts forward through the state machine: it
// times out hosts that have stopped phoning home and advances hosts whose
// validation runs have completed.
type Controller struct {
	pool      *pgxpool.Pool
	store     *Store
	validator *ValidationGate
	health    *HealthStore
	notifier  healthAlertNotifier
	logger    *slog.Logger
	interval  time.Duration

	// onEnterValidation is invoked whenever a host transitions into
	// StateValidation, so the validation-test catalog can kick off a fresh
	// batch of runs. pkg/machine never imports pkg/validation directly.
	onEnterValidation func(ctx context.Context, machineID string) error

	transitions *prometheus.CounterVec // machine_state_transitions_total{from,to}
	tickDur     *prometheus.HistogramVec
}

// NewController builds a Controller over a connection pool. validator
// supplies the pass/fail verdict for hosts sitting in StateValidation.
// onEnterValidation, if non-nil, is called every time a host newly enters
// StateValidation. health, if non-nil, receives a prevent_allocations alert
// on every StateFailed transition, cleared on return to StateReady. notifier,
// if non-nil, is posted the same prevent_allocations alert for operator
// visibility outside the API.
func NewController(pool *pgxpool.Pool, validator *ValidationGate, onEnterValidation func(ctx context.Context, machineID string) error, health *HealthStore, notifier healthAlertNotifier, logger *slog.Logger, transitions *prometheus.CounterVec, tickDur *prometheus.HistogramVec, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Controller{
		pool:              pool,
		store:             NewStore(pool),
		validator:         validator,
		health:            health,
		notifier:          notifier,
		onEnterValidation: onEnterValidation,
		logger:            logger,
		interval:          interval,
		transitions:       transitions,
		tickDur:           tickDur,
	}
}

// Run starts the controller loop. It blocks until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("machine controller started", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("machine controller stopped")
			return nil
		case <-ticker.C:
			start := time.Now()
			if err := c.tick(ctx); err != nil {
				c.logger.Error("machine controller tick", "error", err)
			}
			if c.tickDur != nil {
				c.tickDur.WithLabelValues("machine_controller").Observe(time.Since(start).Seconds())
			}
		}
	}
}

// tick sweeps every in-flight state and advances or times out hosts.
func (c *Controller) tick(ctx context.Context) error {
	for _, state := range []State{StateDiscovery, StateValidation, StateAllocated, StateCleanup} {
		hosts, err := c.store.ListByState(ctx, state, 200)
		if err != nil {
			return fmt.Errorf("listing hosts in state %s: %w", state, err)
		}
		for _, h := range hosts {
			if err := c.advance(ctx, h); err != nil {
				c.logger.Error("advancing managed host", "machine_id", h.MachineID, "state", h.State, "error", err)
			}
		}
	}
	return nil
}

// advance evaluates a single host and applies whatever transition its
// current state and staleness warrant. Hosts that are not yet due for a
// transition are left untouched.
func (c *Controller) advance(ctx context.Context, h ManagedHost) error {
	var ev Event
	var failure *FailureDetails

	switch h.State {
	case StateDiscovery:
		ev = EventDiscovered
	case StateValidation:
		if c.isStale(h) {
			ev = EventTimeout
			failure = &FailureDetails{Cause: FailureCauseAgentUnreachable, Source: FailureSourceController, Message: "no phone-home during validation"}
			break
		}
		result, ok, err := c.validator.Result(ctx, h.MachineID)
		if err != nil {
			return fmt.Errorf("checking validation result: %w", err)
		}
		if !ok {
			return nil // validation still running
		}
		if result.Passed {
			ev = EventValidationPassed
		} else {
			ev = EventValidationFailed
			failure = &FailureDetails{Cause: FailureCauseValidationFailed, Source: FailureSourceController, Message: result.Summary}
		}
	case StateAllocated:
		if c.isStale(h) {
			ev = EventTimeout
			failure = &FailureDetails{Cause: FailureCauseAgentUnreachable, Source: FailureSourceController, Message: "no phone-home while allocated"}
			break
		}
		return nil
	case StateCleanup:
		ev = EventCleanupDone
	default:
		return nil
	}

	return c.apply(ctx, h, ev, failure)
}

func (c *Controller) isStale(h ManagedHost) bool {
	if h.LastPhoneHome == nil {
		return time.Since(h.CreatedAt) > staleAfter
	}
	return time.Since(*h.LastPhoneHome) > staleAfter
}

// apply computes the next state via Next and persists it, bumping the
// transition metric.
func (c *Controller) apply(ctx context.Context, h ManagedHost, ev Event, failure *FailureDetails) error {
	to, nextFailure, err := Next(h, ev, failure)
	if err != nil {
		return err
	}

	if _, err := c.store.UpdateState(ctx, h.MachineID, to, nextFailure); err != nil {
		return fmt.Errorf("persisting transition: %w", err)
	}

	if c.transitions != nil {
		c.transitions.WithLabelValues(string(h.State), string(to)).Inc()
	}
	c.logger.Info("managed host transitioned", "machine_id", h.MachineID, "from", h.State, "to", to, "event", ev)

	if to == StateValidation && h.State != StateValidation && c.onEnterValidation != nil {
		if err := c.onEnterValidation(ctx, h.MachineID); err != nil {
			c.logger.Error("starting validation runs", "machine_id", h.MachineID, "error", err)
		}
	}

	if c.health != nil {
		if to == StateFailed {
			target := string(nextFailure.Cause)
			if _, err := c.health.RaiseClassified(ctx, h.MachineID, HealthAlertKindStateFailed, target, nextFailure.Message, ClassificationPreventAllocations); err != nil {
				c.logger.Error("raising prevent-allocations alert", "machine_id", h.MachineID, "error", err)
			} else if c.notifier != nil {
				c.notifier.PostHealthAlert(ctx, notify.HealthAlert{
					MachineID:      h.MachineID,
					Kind:           string(HealthAlertKindStateFailed),
					Target:         target,
					Message:        nextFailure.Message,
					Classification: string(ClassificationPreventAllocations),
				})
			}
		}
		if to == StateReady {
			if err := c.health.ClearByClassification(ctx, h.MachineID, ClassificationPreventAllocations); err != nil {
				c.logger.Error("clearing prevent-allocations alert", "machine_id", h.MachineID, "error", err)
			}
		}
	}
	return nil
}

// ValidationResult is the outcome of running the validation-test catalog
// against a host.
type ValidationResult struct {
	Passed  bool
	Summary string
}

// ValidationGate reports whether a host's in-flight validation run has
// completed, and with what result. It is implemented by pkg/validation.
type ValidationGate struct {
	resultFn func(ctx context.Context, machineID string) (ValidationResult, bool, error)
}

// NewValidationGate wraps a result-lookup function, keeping pkg/machine free
// of a direct dependency on pkg/validation's storage internals.
func NewValidationGate(resultFn func(ctx context.Context, machineID string) (ValidationResult, bool, error)) *ValidationGate {
	return &ValidationGate{resultFn: resultFn}
}

// Result returns (result, true, nil) once a validation run has finished, or
// (_, false, nil) while one is still outstanding.
func (g *ValidationGate) Result(ctx context.Context, machineID string) (ValidationResult, bool, error) {
	if g.resultFn == nil {
		return ValidationResult{}, false, nil
	}
	return g.resultFn(ctx, machineID)
}
