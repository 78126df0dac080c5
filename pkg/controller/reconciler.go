// Package controller drives one agent through the fixed-rate control loop
// spec.md §2 and §5 describe: wait → descend → adjust_platform →
// sample_platform → ascend → send_up, repeated forever at a fixed cadence.
// It is the surrounding-system counterpart to pkg/agent, grounded on the
// teacher's Reconciler (a struct wrapping the domain state plus a
// Reconcile method the controller's loop calls once per tick) and
// loop/run.go's RunAutoscalerOnce (health-check + metrics bracketing of one
// iteration).
package controller

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/jobpower/powerbalancer/pkg/agent"
	berrors "github.com/jobpower/powerbalancer/pkg/errors"
	"github.com/jobpower/powerbalancer/pkg/health"
	"github.com/jobpower/powerbalancer/pkg/metrics"
	"github.com/jobpower/powerbalancer/pkg/tracing"
	"github.com/jobpower/powerbalancer/pkg/transport"
	"github.com/jobpower/powerbalancer/pkg/vector"

	"log/slog"
)

// Controller repeatedly ticks one Agent at a fixed cadence, wiring in the
// tree transport, job-cap injection (root only), tracing, metrics, and
// liveness reporting around the core's wait→descend→adjust_platform→
// sample_platform→ascend→send_up cycle.
type Controller struct {
	role        string
	level       int
	waitInterval time.Duration

	agent *agent.Agent
	tree  transport.Tree

	capInjector *CapInjector
	health      *health.HealthCheck

	state tickState
}

// New constructs a Controller for the given agent. role is used only for
// metrics/trace labels and diagnostics, not for dispatch (the Agent already
// knows its own role).
func New(role string, level int, waitInterval time.Duration, ag *agent.Agent, tree transport.Tree, opts ...Option) *Controller {
	c := &Controller{
		role:         role,
		level:        level,
		waitInterval: waitInterval,
		agent:        ag,
		tree:         tree,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run drives the control loop until ctx is cancelled or a fatal *berrors.Error
// is produced, in which case it stops and returns that error for the caller
// (main.go's run) to surface and restart the process, per spec.md §6/§7.
func (c *Controller) Run(ctx context.Context) error {
	if c.health != nil {
		c.health.StartMonitoring()
	}

	next := time.Now()
	for {
		next = next.Add(c.waitInterval)
		busyWait(ctx, next)

		select {
		case <-ctx.Done():
			return nil
		default:
		}

		tickStart := time.Now()
		err := c.tick(ctx)
		c.state.recordTick(tickStart, err)
		if c.health != nil {
			c.health.UpdateLastActivity(tickStart)
		}
		metrics.Ticks.WithLabelValues(c.role).Inc()
		metrics.TickDuration.WithLabelValues(c.role).Observe(time.Since(tickStart).Seconds())
		metrics.UpdateDurationFromStart("tick", tickStart)

		if err != nil {
			if be, ok := err.(*berrors.Error); ok {
				metrics.TickErrors.WithLabelValues(string(be.Kind)).Inc()
				if be.Fatal() {
					slog.Error("fatal error, stopping control loop", "role", c.role, "level", c.level, "kind", be.Kind, "err", be)
					return err
				}
				slog.Warn("recoverable tick error", "role", c.role, "level", c.level, "kind", be.Kind, "err", be)
				continue
			}
			slog.Error("unexpected tick error, stopping control loop", "role", c.role, "level", c.level, "err", err)
			return err
		}

		if c.health != nil {
			c.health.UpdateLastSuccessfulRun(time.Now())
		}
	}
}

// tick runs exactly one descend→adjust_platform→sample_platform→ascend→
// send_up cycle for this node.
func (c *Controller) tick(ctx context.Context) error {
	ctx, span := tracing.StartTick(ctx, c.level, c.role)
	defer span.End()

	policyIn, err := c.resolvePolicyIn(ctx)
	if err != nil {
		return err
	}

	out, err := c.agent.Tick(ctx, policyIn)
	if err != nil {
		return err
	}

	level := strconv.Itoa(c.level)
	metrics.StepCount.WithLabelValues(level).Set(float64(out.StepCount))
	metrics.EpochRuntime.WithLabelValues(level, "max").Set(out.MaxEpochRuntime)
	metrics.PowerSlack.WithLabelValues(level, "sum").Set(out.SumPowerSlack)

	limitSum := c.recordPowerLimit(level)
	tracing.SetTickPolicy(span, policyIn, limitSum)
	return nil
}

// recordPowerLimit sets the per-package power_limit gauge for a leaf
// agent's packages (spec.md §6's trace surface: the enforced per-package
// power limit, summed across packages) and returns that sum. Non-leaf
// agents enforce no power limit of their own and report a sum of 0.
func (c *Controller) recordPowerLimit(level string) float64 {
	packages, ok := c.agent.LeafPackages()
	if !ok {
		return 0
	}
	var sum float64
	for i, p := range packages {
		limit := p.Balancer.EnforcedLimit()
		metrics.PowerLimit.WithLabelValues(level, strconv.Itoa(i)).Set(limit)
		sum += limit
	}
	return sum
}

// resolvePolicyIn obtains this tick's incoming policy: the root computes
// its own (folding in any freshly-injected job-level cap), while every
// other role blocks on its parent's next descend.
func (c *Controller) resolvePolicyIn(ctx context.Context) (vector.Policy, error) {
	if isRootAgent(c.agent) {
		r := c.agent.Root()
		if c.capInjector != nil {
			if watts, ok := c.capInjector.Take(); ok {
				return r.InjectCap(vector.Policy{PowerCap: watts})
			}
		}
		return r.NextPolicy(), nil
	}
	return c.tree.ReceiveDown(ctx, c.level)
}

func isRootAgent(a *agent.Agent) bool {
	return a.Kind == agent.KindRoot
}

// busyWait spins on the monotonic clock until until, per spec.md §9: a
// genuine sleep would let the scheduler introduce jitter into the control
// cadence. runtime.Gosched yields between checks so the spin does not
// fully starve other goroutines on the same process (the tree transport's
// HTTP handlers, metrics server, and so on).
func busyWait(ctx context.Context, until time.Time) {
	for time.Now().Before(until) {
		select {
		case <-ctx.Done():
			return
		default:
			runtime.Gosched()
		}
	}
}

// LastTick reports the time of the most recent tick and the error (if any)
// it produced, for diagnostics.
func (c *Controller) LastTick() (time.Time, error) {
	return c.state.snapshot()
}
