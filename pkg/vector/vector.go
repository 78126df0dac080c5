// Package vector defines the two fixed-size numeric messages that flow
// through the balancing tree — Policy downward, Sample upward — along with
// the per-field aggregation rules intermediate and root agents apply when
// folding children's samples into one, and the boundary validation a root
// applies to any freshly-injected job-level policy.
package vector

import "math"

// Step names the three-step cycle every agent walks through, selected by
// StepCount mod 3.
type Step int

const (
	// SendDownLimit (k ≡ 0): the root publishes the slack each leaf should
	// add to its current limit.
	SendDownLimit Step = 0
	// MeasureRuntime (k ≡ 1): leaves collect epoch runtimes at the current
	// limit until stable; the root republishes the tree-wide maximum.
	MeasureRuntime Step = 1
	// ReduceLimit (k ≡ 2): leaves lower their limit while still meeting the
	// target runtime; slack and headroom flow back up.
	ReduceLimit Step = 2
)

func (s Step) String() string {
	switch s {
	case SendDownLimit:
		return "SEND_DOWN_LIMIT"
	case MeasureRuntime:
		return "MEASURE_RUNTIME"
	case ReduceLimit:
		return "REDUCE_LIMIT"
	default:
		return "UNKNOWN_STEP"
	}
}

// StepOf derives the current step from a step counter.
func StepOf(stepCount int64) Step {
	return Step(stepCount % 3)
}

// Policy flows from the root toward the leaves.
type Policy struct {
	// PowerCap is the per-node average cap for the whole job. Non-zero only
	// when a fresh job-level cap has arrived; zero on every other tick.
	PowerCap float64
	// StepCount is a monotone counter; StepCount mod 3 selects the step.
	StepCount int64
	// MaxEpochRuntime is the slowest per-node epoch runtime observed at the
	// last measurement step (0 until measured).
	MaxEpochRuntime float64
	// PowerSlack is the per-node average power leaves may add to their caps
	// after a reduction round (0 until computed).
	PowerSlack float64
}

// Step reports which of the three steps this policy belongs to.
func (p Policy) Step() Step { return StepOf(p.StepCount) }

// Sample flows from the leaves toward the root.
type Sample struct {
	// StepCount is aggregated by min, so the root can detect "every child
	// has reported this step".
	StepCount int64
	// MaxEpochRuntime is aggregated by max: the slowest node in the subtree.
	MaxEpochRuntime float64
	// SumPowerSlack is aggregated by sum: total slack yielded by the subtree.
	SumPowerSlack float64
	// MinPowerHeadroom is aggregated by min: the smallest cap-to-limit gap
	// anywhere in the subtree.
	MinPowerHeadroom float64
}

// AggregateSamples folds a set of children's samples into one, applying the
// §3 per-field aggregation rules (min, max, sum, min). Called with zero
// samples returns the zero Sample.
func AggregateSamples(children []Sample) Sample {
	if len(children) == 0 {
		return Sample{}
	}
	out := Sample{
		StepCount:        children[0].StepCount,
		MaxEpochRuntime:  children[0].MaxEpochRuntime,
		MinPowerHeadroom: children[0].MinPowerHeadroom,
	}
	for _, c := range children {
		if c.StepCount < out.StepCount {
			out.StepCount = c.StepCount
		}
		if c.MaxEpochRuntime > out.MaxEpochRuntime {
			out.MaxEpochRuntime = c.MaxEpochRuntime
		}
		if c.MinPowerHeadroom < out.MinPowerHeadroom {
			out.MinPowerHeadroom = c.MinPowerHeadroom
		}
		out.SumPowerSlack += c.SumPowerSlack
	}
	return out
}

// ValidationBounds carries the per-job-package power bounds used to clamp
// and reject job-level policies at the root, per the §6 boundary contract.
type ValidationBounds struct {
	MinPowerPerPackage float64
	MaxPowerPerPackage float64
	TDPPerPackage      float64
	NumPackagesInJob   int
}

// ValidatePolicy applies the §6 boundary contract to a freshly-received
// job-level policy: NaN fields are replaced by their defaults (cap → TDP,
// others → 0), a non-zero cap is clamped to
// [min*numPackages, max*numPackages], and an all-zero policy is rejected.
func ValidatePolicy(p Policy, bounds ValidationBounds) (Policy, bool) {
	if math.IsNaN(p.PowerCap) {
		p.PowerCap = bounds.TDPPerPackage * float64(bounds.NumPackagesInJob)
	}
	if math.IsNaN(p.MaxEpochRuntime) {
		p.MaxEpochRuntime = 0
	}
	if math.IsNaN(p.PowerSlack) {
		p.PowerSlack = 0
	}

	if p.PowerCap != 0 {
		lo := bounds.MinPowerPerPackage * float64(bounds.NumPackagesInJob)
		hi := bounds.MaxPowerPerPackage * float64(bounds.NumPackagesInJob)
		if p.PowerCap < lo {
			p.PowerCap = lo
		}
		if p.PowerCap > hi {
			p.PowerCap = hi
		}
	}

	if p.PowerCap == 0 && p.StepCount == 0 && p.MaxEpochRuntime == 0 && p.PowerSlack == 0 {
		return Policy{}, false
	}

	return p, true
}
