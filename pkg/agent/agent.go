// Package agent provides the uniform external contract every tree position
// is driven through: wait → descend → adjust_platform → sample_platform →
// ascend → send_up (spec.md §2). It dispatches each step to the underlying
// role (pkg/role) and, for non-leaf roles, to the tree transport
// (pkg/transport) that actually moves vectors between nodes.
package agent

import (
	"context"

	berrors "github.com/jobpower/powerbalancer/pkg/errors"
	"github.com/jobpower/powerbalancer/pkg/role"
	"github.com/jobpower/powerbalancer/pkg/step"
	"github.com/jobpower/powerbalancer/pkg/transport"
	"github.com/jobpower/powerbalancer/pkg/vector"
)

// Kind names which role this Agent wraps, purely for trace/error context.
type Kind string

const (
	KindLeaf         Kind = "leaf"
	KindIntermediate Kind = "intermediate"
	KindRoot         Kind = "root"
)

// leafRole and nonLeafRole narrow role.Leaf/Intermediate/Root down to the
// methods Agent actually dispatches to, so Agent doesn't need to know which
// concrete role type it holds beyond construction time.
type leafRole interface {
	AdjustPlatform(ctx context.Context, policy vector.Policy) error
	SamplePlatform(ctx context.Context, out *vector.Sample) (bool, error)
}

type nonLeafRole interface {
	Descend(ctx context.Context, in vector.Policy) ([]vector.Policy, bool, error)
	Ascend(ctx context.Context, children []vector.Sample) (vector.Sample, bool, error)
}

// Agent is the fixed-shape control-loop participant the controller (see
// pkg/controller) invokes once per tick. level identifies this node's
// position for transport addressing.
type Agent struct {
	Kind  Kind
	Level int

	leaf    leafRole
	nonLeaf nonLeafRole
	tree    transport.Tree
}

// NewLeafAgent wraps a leaf role. tree may be nil for a single-node,
// transport-free simulation (the leaf then never publishes upward).
func NewLeafAgent(level int, leaf *role.Leaf, tree transport.Tree) *Agent {
	return &Agent{Kind: KindLeaf, Level: level, leaf: leaf, tree: tree}
}

// NewIntermediateAgent wraps an intermediate (pure aggregator) role.
func NewIntermediateAgent(level int, node *role.Intermediate, tree transport.Tree) *Agent {
	return &Agent{Kind: KindIntermediate, Level: level, nonLeaf: node, tree: tree}
}

// NewRootAgent wraps the root role. The root has no parent, so its Tick
// never calls SendUp.
func NewRootAgent(level int, root *role.Root, tree transport.Tree) *Agent {
	return &Agent{Kind: KindRoot, Level: level, nonLeaf: root, tree: tree}
}

// Tick runs one control-loop iteration: descend the given policy (received
// from the parent, or the root's own computed NextPolicy), drive the role,
// collect from children, and publish this node's resulting sample upward.
// It returns the sample this node reports for the tick.
func (a *Agent) Tick(ctx context.Context, policyIn vector.Policy) (vector.Sample, error) {
	switch a.Kind {
	case KindLeaf:
		return a.tickLeaf(ctx, policyIn)
	default:
		return a.tickNonLeaf(ctx, policyIn)
	}
}

func (a *Agent) tickLeaf(ctx context.Context, policyIn vector.Policy) (vector.Sample, error) {
	if err := a.leaf.AdjustPlatform(ctx, policyIn); err != nil {
		return vector.Sample{}, err
	}

	var out vector.Sample
	if _, err := a.leaf.SamplePlatform(ctx, &out); err != nil {
		return vector.Sample{}, err
	}

	if a.tree != nil {
		if err := a.tree.SendUp(ctx, a.Level, out); err != nil {
			return vector.Sample{}, err
		}
	}
	return out, nil
}

func (a *Agent) tickNonLeaf(ctx context.Context, policyIn vector.Policy) (vector.Sample, error) {
	childPolicies, _, err := a.nonLeaf.Descend(ctx, policyIn)
	if err != nil {
		return vector.Sample{}, err
	}

	if a.tree != nil {
		if err := a.tree.DescendDown(ctx, a.Level, childPolicies); err != nil {
			return vector.Sample{}, err
		}
	}

	var childSamples []vector.Sample
	if a.tree != nil {
		childSamples, err = a.tree.AscendUp(ctx, a.Level)
		if err != nil {
			return vector.Sample{}, err
		}
	}

	out, _, err := a.nonLeaf.Ascend(ctx, childSamples)
	if err != nil {
		return vector.Sample{}, err
	}

	if a.Kind != KindRoot && a.tree != nil {
		if err := a.tree.SendUp(ctx, a.Level, out); err != nil {
			return vector.Sample{}, err
		}
	}
	return out, nil
}

// LeafPackages exposes the wrapped leaf role's per-package balancer state
// for trace/metric reporting (spec.md §6's trace surface). ok is false for
// a non-leaf Agent, which has no per-package power_limit of its own.
func (a *Agent) LeafPackages() ([]*step.Package, bool) {
	l, ok := a.leaf.(*role.Leaf)
	if !ok {
		return nil, false
	}
	return l.Packages(), true
}

// Root narrows the wrapped role back to *role.Root, for callers (e.g. the
// control loop) that need InjectCap/NextPolicy. It panics if this Agent is
// not a root agent — a programming error, not a runtime condition.
func (a *Agent) Root() *role.Root {
	r, ok := a.nonLeaf.(*role.Root)
	if !ok {
		panic(berrors.New(berrors.WrongRole, "Root() called on a non-root agent").Error())
	}
	return r
}
