package role

import (
	berrors "github.com/jobpower/powerbalancer/pkg/errors"
	"github.com/jobpower/powerbalancer/pkg/vector"
)

// stepState is the step-counter bookkeeping shared by every role: the
// current step_count, whether this role has marked the current step
// complete, and the transition rule from spec §4.1 that guards advancing
// it. Embedded by Leaf and Intermediate, and through Intermediate by Root.
type stepState struct {
	stepCount int64
	complete  bool
}

func (s *stepState) Step() vector.Step    { return vector.StepOf(s.stepCount) }
func (s *stepState) StepCount() int64     { return s.stepCount }
func (s *stepState) Complete() bool       { return s.complete }
func (s *stepState) markComplete(v bool)  { s.complete = v }

// reset hard-resets to SEND_DOWN_LIMIT at step 0, as if the role had just
// been constructed — the reset law of spec.md §8.
func (s *stepState) reset() {
	s.stepCount = 0
	s.complete = false
}

// transition applies the step-transition contract of spec.md §4.1 to an
// incoming policy. It reports whether the role's step advanced (including
// a hard reset) and any protocol violation. A role only ever calls this
// once per received policy.
func (s *stepState) transition(in vector.Policy) (advanced bool, err *berrors.Error) {
	if in.PowerCap != 0 {
		s.reset()
		return true, nil
	}

	if in.StepCount == s.stepCount {
		// Idempotent re-delivery: no state change.
		return false, nil
	}

	if s.complete && in.StepCount == s.stepCount+1 {
		s.stepCount = in.StepCount
		s.complete = false
		return true, nil
	}

	return false, berrors.New(berrors.ProtocolDesync,
		"policy step_count %d is not a valid successor of %d (complete=%v)",
		in.StepCount, s.stepCount, s.complete)
}
