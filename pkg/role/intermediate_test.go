package role_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobpower/powerbalancer/pkg/role"
	"github.com/jobpower/powerbalancer/pkg/vector"
)

func TestIntermediateDescendBroadcastsIdenticalPolicyToEveryChild(t *testing.T) {
	node := role.NewIntermediate(3)
	out, produced, err := node.Descend(context.Background(), vector.Policy{PowerCap: 300})
	require.NoError(t, err)
	assert.True(t, produced)
	require.Len(t, out, 3)
	for _, p := range out {
		assert.Equal(t, out[0], p)
	}
}

func TestIntermediateDescendIsIdempotentOnUnchangedStepCount(t *testing.T) {
	node := role.NewIntermediate(2)
	first, _, err := node.Descend(context.Background(), vector.Policy{PowerCap: 300})
	require.NoError(t, err)

	again, produced, err := node.Descend(context.Background(), vector.Policy{StepCount: 0})
	require.NoError(t, err)
	assert.False(t, produced)
	assert.Equal(t, first, again)
}

func TestIntermediateAscendAggregatesAndSignalsOnceAllChildrenMatch(t *testing.T) {
	node := role.NewIntermediate(2)
	_, _, err := node.Descend(context.Background(), vector.Policy{PowerCap: 300})
	require.NoError(t, err)

	agg, signaled, err := node.Ascend(context.Background(), []vector.Sample{
		{StepCount: 0, MaxEpochRuntime: 1.0},
		{StepCount: 0, MaxEpochRuntime: 2.0},
	})
	require.NoError(t, err)
	assert.True(t, signaled)
	assert.Equal(t, 2.0, agg.MaxEpochRuntime)

	// Re-ascending the same step again should not re-signal.
	_, signaled, err = node.Ascend(context.Background(), []vector.Sample{
		{StepCount: 0, MaxEpochRuntime: 1.0},
		{StepCount: 0, MaxEpochRuntime: 2.0},
	})
	require.NoError(t, err)
	assert.False(t, signaled)
}

func TestIntermediateAscendWaitsWhenChildrenBehind(t *testing.T) {
	node := role.NewIntermediate(2)
	_, _, err := node.Descend(context.Background(), vector.Policy{PowerCap: 300})
	require.NoError(t, err)
	_, signaled, err := node.Ascend(context.Background(), []vector.Sample{
		{StepCount: 0}, {StepCount: 0},
	})
	require.NoError(t, err)
	require.True(t, signaled)

	_, _, err = node.Descend(context.Background(), vector.Policy{StepCount: 1})
	require.NoError(t, err)

	_, signaled, err = node.Ascend(context.Background(), []vector.Sample{
		{StepCount: 0},
		{StepCount: 1},
	})
	require.NoError(t, err)
	assert.False(t, signaled)
}

func TestIntermediateAscendErrorsWhenChildrenAheadOfParent(t *testing.T) {
	node := role.NewIntermediate(2)
	_, signaled, err := node.Ascend(context.Background(), []vector.Sample{
		{StepCount: 1},
	})
	assert.False(t, signaled)
	assert.Error(t, err)
}
