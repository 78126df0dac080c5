package role

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berrors "github.com/jobpower/powerbalancer/pkg/errors"
	"github.com/jobpower/powerbalancer/pkg/vector"
)

func TestStepStateTransitionAdvancesOnlyWhenCompleteAndSuccessor(t *testing.T) {
	s := &stepState{}
	s.markComplete(true)

	advanced, err := s.transition(vector.Policy{StepCount: 1})
	require.Nil(t, err)
	assert.True(t, advanced)
	assert.Equal(t, int64(1), s.stepCount)
	assert.False(t, s.complete)
}

func TestStepStateTransitionRejectsWrongSuccessor(t *testing.T) {
	s := &stepState{}
	s.markComplete(true)

	_, err := s.transition(vector.Policy{StepCount: 2})
	require.NotNil(t, err)
	assert.Equal(t, berrors.ProtocolDesync, err.Kind)
}

func TestStepStateTransitionRejectsWhenNotComplete(t *testing.T) {
	s := &stepState{}
	_, err := s.transition(vector.Policy{StepCount: 1})
	require.NotNil(t, err)
	assert.Equal(t, berrors.ProtocolDesync, err.Kind)
}

func TestStepStateTransitionIdempotentOnSameStepCount(t *testing.T) {
	s := &stepState{stepCount: 2, complete: true}
	advanced, err := s.transition(vector.Policy{StepCount: 2})
	require.Nil(t, err)
	assert.False(t, advanced)
	assert.True(t, s.complete)
}

func TestStepStateTransitionForcesResetOnNonzeroCap(t *testing.T) {
	s := &stepState{stepCount: 5, complete: false}
	advanced, err := s.transition(vector.Policy{PowerCap: 240, StepCount: 5})
	require.Nil(t, err)
	assert.True(t, advanced)
	assert.Equal(t, int64(0), s.stepCount)
	assert.False(t, s.complete)
}
