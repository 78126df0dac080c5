package role

import (
	"context"
	"math"

	"github.com/jobpower/powerbalancer/pkg/balancer"
	berrors "github.com/jobpower/powerbalancer/pkg/errors"
	"github.com/jobpower/powerbalancer/pkg/platform"
	"github.com/jobpower/powerbalancer/pkg/step"
	"github.com/jobpower/powerbalancer/pkg/vector"
)

// Leaf is the per-compute-node role: it owns one PowerBalancer per package,
// drives the current step's hooks against measured epoch runtimes, and
// enforces the resulting power_limit on the platform. descend/ascend are
// invalid here — only adjust_platform/sample_platform apply.
type Leaf struct {
	stepState

	facade   platform.Facade
	packages []*step.Package
}

// NewLeaf constructs a Leaf with one PowerBalancer per floor value (one per
// package/NUMA domain, floor being that package's platform minimum power).
func NewLeaf(facade platform.Facade, cfg balancer.Config, floors []float64) *Leaf {
	packages := make([]*step.Package, len(floors))
	for i, floor := range floors {
		packages[i] = &step.Package{Balancer: balancer.New(cfg, floor)}
	}
	return &Leaf{facade: facade, packages: packages}
}

// Packages exposes the per-package balancer state for trace reporting.
func (l *Leaf) Packages() []*step.Package { return l.packages }

// AdjustPlatform applies policy to this leaf's packages, per spec §4.2: a
// nonzero power_cap forces a hard reset and even cap distribution; otherwise
// the step advances and its enter hook runs. In both cases every package's
// current power_limit is then pushed to the platform.
func (l *Leaf) AdjustPlatform(ctx context.Context, policy vector.Policy) error {
	if policy.PowerCap != 0 {
		l.reset()
		perPackage := policy.PowerCap / step.NumPackagesFloat(len(l.packages))
		for _, p := range l.packages {
			p.Balancer.PowerCap(perPackage)
			p.OutOfBounds = false
			p.Done = true
		}
		l.markComplete(true)
	} else {
		advanced, err := l.transition(policy)
		if err != nil {
			return err.WithContext("leaf", l.Step().String(), map[string]any{"incoming_step_count": policy.StepCount})
		}
		if advanced {
			done := step.For(l.Step()).Enter(l.packages, policy)
			l.markComplete(done)
		}
	}

	for i, p := range l.packages {
		limit := p.Balancer.PowerLimit()
		if math.IsNaN(limit) || limit <= 0 {
			continue
		}
		actual, err := l.facade.WriteControl(ctx, platform.ControlPowerPackageLimit, "package", i, limit)
		if err != nil {
			// TransientPlatform: skip this package's write, no state change.
			continue
		}
		p.Balancer.PowerLimitAdjusted(actual)
		if actual < limit {
			p.OutOfBounds = true
		}
	}
	return nil
}

// SamplePlatform reads one epoch's signals for every package, feeds them
// through the current step's sample hook, and fills out with the resulting
// sample vector. It returns true iff every package has completed the step.
func (l *Leaf) SamplePlatform(ctx context.Context, out *vector.Sample) (bool, error) {
	hook := step.For(l.Step())

	allDone := true
	for i, p := range l.packages {
		if !p.Done {
			balancedRuntime, ok := l.readBalancedRuntime(ctx, i)
			if ok {
				p.Done = hook.Sample(p, balancedRuntime)
			}
		}
		if !p.Done {
			allDone = false
		}
	}

	// A sample reports its step_count as "complete" only once every
	// package is done; until then it reports the prior step_count, so a
	// min-aggregating parent only advances once every child has actually
	// finished the step, not merely received it.
	if allDone {
		out.StepCount = l.StepCount()
	} else {
		out.StepCount = l.StepCount() - 1
	}
	out.MaxEpochRuntime = 0
	out.SumPowerSlack = 0
	out.MinPowerHeadroom = math.Inf(1)
	for _, p := range l.packages {
		if p.Runtime > out.MaxEpochRuntime {
			out.MaxEpochRuntime = p.Runtime
		}
		slack := p.Balancer.PowerSlack()
		out.SumPowerSlack += slack
		if slack < out.MinPowerHeadroom {
			out.MinPowerHeadroom = slack
		}
	}
	if len(l.packages) == 0 {
		out.MinPowerHeadroom = 0
	}

	if allDone {
		l.markComplete(true)
	}
	return allDone, nil
}

// readBalancedRuntime reads the three epoch-time signals for package idx
// and removes non-local time. A transient read failure on any of the three
// signals causes the whole sample to be skipped for this tick.
func (l *Leaf) readBalancedRuntime(ctx context.Context, idx int) (float64, bool) {
	total, err := l.facade.ReadSignal(ctx, platform.SignalEpochRuntime, "package", idx)
	if err != nil {
		return 0, false
	}
	network, err := l.facade.ReadSignal(ctx, platform.SignalEpochRuntimeNetwork, "package", idx)
	if err != nil {
		return 0, false
	}
	ignore, err := l.facade.ReadSignal(ctx, platform.SignalEpochRuntimeIgnore, "package", idx)
	if err != nil {
		return 0, false
	}
	return step.BalancedRuntime(total, network, ignore), true
}

// Descend is invalid on a leaf.
func (l *Leaf) Descend(context.Context, vector.Policy) ([]vector.Policy, error) {
	return nil, berrors.New(berrors.WrongRole, "descend called on leaf role")
}

// Ascend is invalid on a leaf.
func (l *Leaf) Ascend(context.Context, []vector.Sample) (vector.Sample, error) {
	return vector.Sample{}, berrors.New(berrors.WrongRole, "ascend called on leaf role")
}
