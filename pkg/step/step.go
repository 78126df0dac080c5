// Package step implements the three per-cycle step strategies a leaf role
// walks through: SEND_DOWN_LIMIT, MEASURE_RUNTIME, REDUCE_LIMIT. Each step
// is a small stateless value dispatched against a leaf's []*Package, rather than a
// class hierarchy — the three strategies share a capability set (enter,
// sample) instead of a common base type.
package step

import (
	"github.com/jobpower/powerbalancer/pkg/balancer"
	"github.com/jobpower/powerbalancer/pkg/vector"
)

// Package is one NUMA/power-domain unit on a leaf: its balancer plus the
// bookkeeping the step hooks need (done/out-of-bounds flags, the last
// measured runtime).
type Package struct {
	Balancer *balancer.PowerBalancer

	// OutOfBounds is set when the platform clipped a requested control
	// write for this package; the REDUCE step treats it as target-met.
	OutOfBounds bool

	// Runtime is the package's last recorded balanced epoch runtime,
	// filled in by MEASURE_RUNTIME once stable.
	Runtime float64

	// Done tracks per-package completion within the current step. The
	// role drives Sample only while it is false.
	Done bool
}

// Hook is the capability set every step strategy implements. enter runs
// once when a role transitions into the step; sample runs once per epoch
// while the step is active. Either may be a no-op for a given step.
type Hook interface {
	// Enter runs once on transition into this step, with the policy that
	// triggered the transition. It returns true if every package is
	// immediately done with the step.
	Enter(packages []*Package, policy vector.Policy) (done bool)

	// Sample runs once per epoch; balancedRuntime is the already-adjusted
	// (network and ignore time removed) epoch runtime for pkg. It returns
	// true iff pkg is now done with the step.
	Sample(pkg *Package, balancedRuntime float64) (done bool)
}

// For returns the Hook implementing s.
func For(s vector.Step) Hook {
	switch s {
	case vector.SendDownLimit:
		return sendDownLimit{}
	case vector.MeasureRuntime:
		return measureRuntime{}
	case vector.ReduceLimit:
		return reduceLimit{}
	default:
		panic("step: unknown step")
	}
}

// NumPackagesFloat avoids repeated int-to-float conversions at call sites.
func NumPackagesFloat(n int) float64 { return float64(n) }

type sendDownLimit struct{}

func (sendDownLimit) Enter(packages []*Package, policy vector.Policy) bool {
	if len(packages) == 0 {
		return true
	}
	perPackage := policy.PowerSlack / NumPackagesFloat(len(packages))
	for _, p := range packages {
		p.Balancer.PowerCap(p.Balancer.Cap() + perPackage)
		p.OutOfBounds = false
		p.Done = true
	}
	return true
}

func (sendDownLimit) Sample(pkg *Package, _ float64) bool {
	pkg.Done = true
	return true
}

type measureRuntime struct{}

func (measureRuntime) Enter(packages []*Package, _ vector.Policy) bool {
	for _, p := range packages {
		p.Done = false
	}
	return len(packages) == 0
}

func (measureRuntime) Sample(pkg *Package, balancedRuntime float64) bool {
	if !pkg.Balancer.IsRuntimeStable(balancedRuntime) {
		return false
	}
	pkg.Runtime = pkg.Balancer.RuntimeSample()
	pkg.Done = true
	return true
}

type reduceLimit struct{}

func (reduceLimit) Enter(packages []*Package, policy vector.Policy) bool {
	for _, p := range packages {
		p.Balancer.TargetRuntime(policy.MaxEpochRuntime)
		p.Done = p.OutOfBounds
	}
	return len(packages) == 0
}

func (reduceLimit) Sample(pkg *Package, balancedRuntime float64) bool {
	if pkg.OutOfBounds {
		pkg.Done = true
		return true
	}
	met := pkg.Balancer.IsTargetMet(balancedRuntime)
	pkg.Done = met
	return met
}

// BalancedRuntime computes the node-local epoch runtime used by the
// MEASURE_RUNTIME and REDUCE_LIMIT samplers: wall time minus cross-node
// synchronization time and any application-declared ignore regions.
func BalancedRuntime(total, network, ignore float64) float64 {
	return total - network - ignore
}
