package role

import (
	"context"

	berrors "github.com/jobpower/powerbalancer/pkg/errors"
	"github.com/jobpower/powerbalancer/pkg/vector"
)

// Root extends Intermediate with the global policy-update rules (§4.4) that
// close the loop for each algorithm step, and the job-level cap injection
// and validation boundary (§6, §7) that only exist at the top of the tree.
type Root struct {
	Intermediate

	numNode int
	bounds  vector.ValidationBounds
	policy  vector.Policy
}

// NewRoot constructs a Root fanning out to numChildren direct children,
// coordinating a job of numNode leaves total.
func NewRoot(numChildren, numNode int, bounds vector.ValidationBounds) *Root {
	return &Root{Intermediate: *NewIntermediate(numChildren), numNode: numNode, bounds: bounds}
}

// InjectCap validates and installs a fresh job-level power cap, per the
// boundary contract of spec.md §6. It forces a hard reset and the next
// Descend rebroadcasts the new cap. An invalid cap is rejected and leaves
// all state untouched.
func (r *Root) InjectCap(raw vector.Policy) (vector.Policy, error) {
	valid, ok := vector.ValidatePolicy(raw, r.bounds)
	if !ok {
		return vector.Policy{}, invalidPolicyErr(raw)
	}
	r.policy = valid
	return valid, nil
}

// Ascend aggregates child samples and, on completing the current step,
// applies the step-specific policy-update rule before bumping step_count
// for the next cycle's Descend.
func (r *Root) Ascend(ctx context.Context, children []vector.Sample) (vector.Sample, bool, error) {
	agg, newlyComplete, err := r.Intermediate.Ascend(ctx, children)
	if err != nil {
		return agg, false, err
	}
	if !newlyComplete {
		return agg, false, nil
	}

	switch r.Step() {
	case vector.SendDownLimit:
		r.policy.PowerCap = 0
	case vector.MeasureRuntime:
		r.policy.MaxEpochRuntime = agg.MaxEpochRuntime
	case vector.ReduceLimit:
		perNode := agg.SumPowerSlack / float64(r.numNode)
		if agg.MinPowerHeadroom < perNode {
			perNode = agg.MinPowerHeadroom
		}
		r.policy.PowerSlack = perNode
	}

	r.policy.StepCount = r.StepCount() + 1
	r.lastPolicy = r.policy
	return agg, true, nil
}

// NextPolicy returns the policy the next Descend call should disseminate.
func (r *Root) NextPolicy() vector.Policy { return r.policy }

func invalidPolicyErr(raw vector.Policy) *berrors.Error {
	return berrors.New(berrors.InvalidPolicy, "job-level policy rejected: power_cap=%v step_count=%v max_epoch_runtime=%v power_slack=%v",
		raw.PowerCap, raw.StepCount, raw.MaxEpochRuntime, raw.PowerSlack).WithContext("root", "", nil)
}
