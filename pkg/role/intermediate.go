package role

import (
	"context"

	berrors "github.com/jobpower/powerbalancer/pkg/errors"
	"github.com/jobpower/powerbalancer/pkg/vector"
)

// Intermediate is a pure aggregator/forwarder role: it pushes policies down
// unchanged to every child and aggregates samples up with the per-field
// functions in spec.md §3 (min/max/sum/min).
type Intermediate struct {
	stepState

	numChildren int
	lastPolicy  vector.Policy
}

// NewIntermediate constructs an Intermediate fanning out to numChildren
// direct children.
func NewIntermediate(numChildren int) *Intermediate {
	return &Intermediate{numChildren: numChildren}
}

// Descend re-emits the last policy unchanged if in carries the same
// step_count as this role (idempotent re-delivery); otherwise it validates
// the transition and fans a copy of in out to every child. It reports
// whether a new policy was produced.
func (n *Intermediate) Descend(_ context.Context, in vector.Policy) ([]vector.Policy, bool, error) {
	if in.StepCount == n.stepCount && in.PowerCap == 0 {
		return n.broadcast(n.lastPolicy), false, nil
	}

	advanced, err := n.transition(in)
	if err != nil {
		return nil, false, err.WithContext("intermediate", n.Step().String(), map[string]any{"incoming_step_count": in.StepCount})
	}
	if !advanced {
		return n.broadcast(n.lastPolicy), false, nil
	}

	n.lastPolicy = in
	return n.broadcast(in), true, nil
}

func (n *Intermediate) broadcast(p vector.Policy) []vector.Policy {
	out := make([]vector.Policy, n.numChildren)
	for i := range out {
		out[i] = p
	}
	return out
}

// Ascend aggregates the children's sample vectors and reports whether the
// aggregate represents this role's current step newly completing.
func (n *Intermediate) Ascend(_ context.Context, children []vector.Sample) (vector.Sample, bool, error) {
	agg := vector.AggregateSamples(children)

	switch {
	case agg.StepCount == n.stepCount:
		wasComplete := n.complete
		n.markComplete(true)
		return agg, !wasComplete, nil
	case agg.StepCount < n.stepCount:
		// Not every child has reported this step yet; nothing to signal.
		return agg, false, nil
	default:
		return agg, false, berrors.New(berrors.ProtocolDesync,
			"aggregated child step_count %d is ahead of own step_count %d",
			agg.StepCount, n.stepCount).WithContext("intermediate", n.Step().String(), nil)
	}
}
