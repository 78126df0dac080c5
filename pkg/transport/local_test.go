package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobpower/powerbalancer/pkg/transport"
	"github.com/jobpower/powerbalancer/pkg/vector"
)

// Levels: 0 is root, 1 and 2 are its direct children.
func twoChildTree() *transport.LocalTree {
	tree := transport.NewLocalTree()
	tree.Connect(0, 1)
	tree.Connect(0, 2)
	return tree
}

func TestDescendDownDeliversToEveryChildInOrder(t *testing.T) {
	tree := twoChildTree()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- tree.DescendDown(ctx, 0, []vector.Policy{
			{StepCount: 1},
			{StepCount: 2},
		})
	}()

	p1, err := tree.ReceiveDown(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p1.StepCount)

	p2, err := tree.ReceiveDown(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p2.StepCount)

	require.NoError(t, <-done)
}

func TestAscendUpCollectsChildSamplesInOrder(t *testing.T) {
	tree := twoChildTree()
	ctx := context.Background()

	go func() {
		_ = tree.SendUp(ctx, 1, vector.Sample{MaxEpochRuntime: 1.0})
		_ = tree.SendUp(ctx, 2, vector.Sample{MaxEpochRuntime: 2.0})
	}()

	samples, err := tree.AscendUp(ctx, 0)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 1.0, samples[0].MaxEpochRuntime)
	assert.Equal(t, 2.0, samples[1].MaxEpochRuntime)
}

func TestRootSendUpAndReceiveDownAreNoops(t *testing.T) {
	tree := twoChildTree()
	ctx := context.Background()

	require.NoError(t, tree.SendUp(ctx, 0, vector.Sample{}))
	p, err := tree.ReceiveDown(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, vector.Policy{}, p)
}

func TestDescendDownRespectsContextCancellation(t *testing.T) {
	tree := twoChildTree()
	background := context.Background()

	// Fill both children's buffered channels; nobody ever receives.
	require.NoError(t, tree.DescendDown(background, 0, []vector.Policy{{}, {}}))

	ctx, cancel := context.WithTimeout(background, 20*time.Millisecond)
	defer cancel()

	err := tree.DescendDown(ctx, 0, []vector.Policy{{}, {}})
	assert.Error(t, err)
}
