package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobpower/powerbalancer/pkg/agent"
	"github.com/jobpower/powerbalancer/pkg/balancer"
	"github.com/jobpower/powerbalancer/pkg/platform"
	"github.com/jobpower/powerbalancer/pkg/role"
	"github.com/jobpower/powerbalancer/pkg/transport"
	"github.com/jobpower/powerbalancer/pkg/vector"
)

func leafCfg() balancer.Config {
	return balancer.Config{StabilityFactor: 2, MeasurementWindow: 0.05, MinNumSamples: 3, ReductionStepFraction: 0.2}
}

func bounds() vector.ValidationBounds {
	return vector.ValidationBounds{MinPowerPerPackage: 50, MaxPowerPerPackage: 200, TDPPerPackage: 150, NumPackagesInJob: 2}
}

type result struct {
	sample vector.Sample
	err    error
}

// runCycle runs one tick of the root (which fans policyIn out to children
// over tree and then blocks waiting for their samples) concurrently with
// one tick of every leaf (which receives its policy from tree and sends its
// own sample back up), and returns the root's resulting sample.
func runCycle(t *testing.T, ctx context.Context, tree *transport.LocalTree, root *agent.Agent, leaves []*agent.Agent, policyIn vector.Policy) vector.Sample {
	t.Helper()

	rootDone := make(chan result, 1)
	go func() {
		s, err := root.Tick(ctx, policyIn)
		rootDone <- result{s, err}
	}()

	leafDone := make([]chan result, len(leaves))
	for i, leaf := range leaves {
		leafDone[i] = make(chan result, 1)
		go func(leaf *agent.Agent, ch chan result) {
			p, err := tree.ReceiveDown(ctx, leaf.Level)
			if err != nil {
				ch <- result{err: err}
				return
			}
			s, err := leaf.Tick(ctx, p)
			ch <- result{s, err}
		}(leaf, leafDone[i])
	}

	for _, ch := range leafDone {
		r := <-ch
		require.NoError(t, r.err)
	}
	r := <-rootDone
	require.NoError(t, r.err)
	return r.sample
}

// TestTreeWideWarmStartAndMeasure wires a root with two leaf children over a
// LocalTree and drives one SEND_DOWN_LIMIT cycle followed by six more
// cycles through the Agent facade end-to-end (MEASURE_RUNTIME completes on
// the third of them; the rest run in REDUCE_LIMIT), reproducing the shape
// of scenarios S1/S2.
func TestTreeWideWarmStartAndMeasure(t *testing.T) {
	ctx := context.Background()
	tree := transport.NewLocalTree()
	tree.Connect(0, 1)
	tree.Connect(0, 2)

	rootRole := role.NewRoot(2, 2, bounds())
	rootAgent := agent.NewRootAgent(0, rootRole, tree)

	facadeA := platform.NewNoopFacade(map[string]float64{"EPOCH_RUNTIME/package/0": 1.0})
	facadeB := platform.NewNoopFacade(map[string]float64{"EPOCH_RUNTIME/package/0": 2.0})
	leafA := agent.NewLeafAgent(1, role.NewLeaf(facadeA, leafCfg(), []float64{50}), tree)
	leafB := agent.NewLeafAgent(2, role.NewLeaf(facadeB, leafCfg(), []float64{50}), tree)

	cap, err := rootRole.InjectCap(vector.Policy{PowerCap: 300})
	require.NoError(t, err)

	runCycle(t, ctx, tree, rootAgent, []*agent.Agent{leafA, leafB}, cap)

	var lastRootSample vector.Sample
	for i := 0; i < 6; i++ {
		lastRootSample = runCycle(t, ctx, tree, rootAgent, []*agent.Agent{leafA, leafB}, rootRole.NextPolicy())
	}
	assert.Equal(t, 2.0, lastRootSample.MaxEpochRuntime)
	assert.Equal(t, 2.0, rootRole.NextPolicy().MaxEpochRuntime)
}

func TestSingleNodeLeafAgentWithoutTree(t *testing.T) {
	ctx := context.Background()
	facade := platform.NewNoopFacade(map[string]float64{})
	leaf := agent.NewLeafAgent(1, role.NewLeaf(facade, leafCfg(), []float64{50, 50}), nil)

	out, err := leaf.Tick(ctx, vector.Policy{PowerCap: 300})
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.StepCount)
}

func TestRootAccessorPanicsOnNonRootAgent(t *testing.T) {
	leaf := agent.NewLeafAgent(1, role.NewLeaf(platform.NewNoopFacade(map[string]float64{}), leafCfg(), []float64{50}), nil)
	assert.Panics(t, func() { leaf.Root() })
}
