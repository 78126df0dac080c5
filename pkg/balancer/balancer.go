// Package balancer implements the per-package PowerBalancer: given a stream
// of balanced epoch-runtime measurements under a stationary power cap, it
// decides when the stream has stabilized, then searches downward for the
// smallest limit that still meets a later-supplied target runtime.
package balancer

import "math"

// Config carries the tunables from spec.md §9's configuration surface.
// StabilityFactor and MeasurementWindow together define the tolerance band
// used by both the stability test and the target-met test; MinNumSamples is
// the minimum ring occupancy before either test can return true;
// ReductionStepFraction is α in the limit-reduction rule.
type Config struct {
	StabilityFactor       float64
	MeasurementWindow     float64
	MinNumSamples         int
	ReductionStepFraction float64
}

// PowerBalancer is the per-package (per-NUMA-domain) balancing core
// described in spec.md §4.5. One instance exists per package on a leaf.
type PowerBalancer struct {
	cfg Config

	cap           float64
	limit         float64
	enforcedLimit float64 // limit as actually applied, after any clipping
	floor         float64 // platform minimum power for this package
	lastGoodLimit float64
	target        float64
	floorReached  bool

	ring *runtimeRing
}

// New constructs a PowerBalancer against the given platform floor (the
// minimum power this package's platform will accept).
func New(cfg Config, floor float64) *PowerBalancer {
	return &PowerBalancer{
		cfg:   cfg,
		floor: floor,
		ring:  newRuntimeRing(ringCapacity(cfg.MinNumSamples)),
	}
}

func ringCapacity(minSamples int) int {
	if minSamples < 1 {
		return 1
	}
	// Hold a little more than the minimum so the median stays meaningful
	// as new samples displace the oldest ones.
	return minSamples * 2
}

// PowerCap sets the hard upper bound for this package. It also resets
// power_limit to the new cap, clears the runtime ring, and resets all
// stability/reduction state — this is the "reset law" of spec.md §8.
func (b *PowerBalancer) PowerCap(c float64) {
	b.cap = c
	b.limit = c
	b.enforcedLimit = c
	b.lastGoodLimit = c
	b.floorReached = false
	b.ring.reset()
}

// Cap returns the current hard upper bound.
func (b *PowerBalancer) Cap() float64 { return b.cap }

// PowerLimit returns the currently requested enforced limit. Always <= Cap.
func (b *PowerBalancer) PowerLimit() float64 { return b.limit }

// PowerLimitAdjusted informs the balancer that the platform clipped the
// requested limit to actual; subsequent slack reporting uses actual instead
// of the originally requested limit.
func (b *PowerBalancer) PowerLimitAdjusted(actual float64) {
	b.enforcedLimit = actual
}

// TargetRuntime installs the runtime the balancer will try to meet while
// minimizing power, and starts a fresh measurement window for it.
func (b *PowerBalancer) TargetRuntime(t float64) {
	b.target = t
	b.lastGoodLimit = b.limit
	b.ring.reset()
}

// Target returns the currently installed target runtime.
func (b *PowerBalancer) Target() float64 { return b.target }

func (b *PowerBalancer) tolerance() float64 {
	return b.cfg.StabilityFactor * b.cfg.MeasurementWindow
}

// IsRuntimeStable appends sample to the ring (if it is a valid measurement)
// and reports whether the measured runtime has stabilized: at least
// MinNumSamples have been seen and they all fall within the tolerance band
// around the running median.
func (b *PowerBalancer) IsRuntimeStable(sample float64) bool {
	b.insert(sample)
	if b.ring.len() < b.cfg.MinNumSamples {
		return false
	}
	return b.ring.allWithin(b.tolerance())
}

// RuntimeSample returns the median of the ring, recomputed on demand.
func (b *PowerBalancer) RuntimeSample() float64 {
	return b.ring.median()
}

// IsTargetMet appends sample to the ring and drives the reduction search:
// while the package still runs faster than the target (beyond tolerance) it
// lowers the limit by a fixed fraction of the remaining headroom and keeps
// searching; if a reduction overshoots (the package becomes slower than the
// target beyond tolerance) it reverts to the last known-good limit and
// declares the target met; once a decrease would take the limit at or below
// the platform floor, the reduction budget is exhausted and the target is
// declared met at the floor.
func (b *PowerBalancer) IsTargetMet(sample float64) bool {
	if b.floorReached {
		return true
	}

	b.insert(sample)
	if b.ring.len() < b.cfg.MinNumSamples {
		return false
	}

	tol := b.tolerance()
	median := b.ring.median()
	diff := median - b.target

	switch {
	case diff > tol:
		// Overshot: this package is now running slower than the target.
		// Back off to the last limit known to meet the target.
		b.limit = b.lastGoodLimit
		b.enforcedLimit = b.limit
		b.ring.reset()
		return true

	case diff < -tol:
		// Still comfortably faster than the target: keep lowering.
		b.lastGoodLimit = b.limit
		next := b.limit - b.cfg.ReductionStepFraction*(b.limit-b.floor)
		if next <= b.floor {
			next = b.floor
			b.floorReached = true
		}
		b.limit = next
		b.enforcedLimit = next
		b.ring.reset()
		return b.floorReached

	default:
		// Within tolerance of the target: converged.
		b.ring.reset()
		return true
	}
}

// PowerSlack returns Cap - (enforced limit), at the moment of the call.
func (b *PowerBalancer) PowerSlack() float64 {
	return b.cap - b.enforcedLimit
}

// EnforcedLimit returns the power_limit value actually applied by the
// platform (after any clipping reported through PowerLimitAdjusted) —
// the figure the trace surface (spec.md §6) reports, as opposed to
// PowerLimit's requested value.
func (b *PowerBalancer) EnforcedLimit() float64 {
	return b.enforcedLimit
}

// insert pushes sample into the ring unless it is not a usable measurement.
func (b *PowerBalancer) insert(sample float64) {
	if math.IsNaN(sample) || sample <= 0 {
		return
	}
	b.ring.push(sample)
}
