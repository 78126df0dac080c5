package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/jobpower/powerbalancer/pkg/vector"
)

// edge is the pair of channels carrying one parent-child relationship: the
// parent's outgoing policy and the child's outgoing sample. Buffered to 1 so
// a node never blocks publishing its own tick's result before its peer has
// consumed the previous one.
type edge struct {
	down chan vector.Policy
	up   chan vector.Sample
}

// LocalTree simulates the whole tree transport in one process over Go
// channels, addressing nodes by an arbitrary caller-assigned level. It
// exists for tests and single-process demonstrations of the full tree; a
// real multi-host deployment uses an inter-process Tree implementation
// instead.
type LocalTree struct {
	mu       sync.Mutex
	parent   map[int]int
	children map[int][]int
	edges    map[[2]int]*edge
}

// NewLocalTree constructs an empty LocalTree. Call Connect to wire up
// parent-child relationships before use.
func NewLocalTree() *LocalTree {
	return &LocalTree{
		parent:   map[int]int{},
		children: map[int][]int{},
		edges:    map[[2]int]*edge{},
	}
}

// Connect registers child as a direct child of parent, in the order
// Connect is called for a given parent (DescendDown/AscendUp preserve this
// order).
func (t *LocalTree) Connect(parent, child int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.parent[child] = parent
	t.children[parent] = append(t.children[parent], child)
	t.edges[[2]int{parent, child}] = &edge{
		down: make(chan vector.Policy, 1),
		up:   make(chan vector.Sample, 1),
	}
}

func (t *LocalTree) edgeFor(parent, child int) (*edge, error) {
	t.mu.Lock()
	e, ok := t.edges[[2]int{parent, child}]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("transport: no edge registered for parent=%d child=%d", parent, child)
	}
	return e, nil
}

func (t *LocalTree) childrenOf(level int) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.children[level]...)
}

func (t *LocalTree) parentOf(level int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.parent[level]
	return p, ok
}

func (t *LocalTree) DescendDown(ctx context.Context, level int, policies []vector.Policy) error {
	children := t.childrenOf(level)
	if len(policies) != len(children) {
		return fmt.Errorf("transport: descend at level %d got %d policies for %d children", level, len(policies), len(children))
	}
	for i, child := range children {
		e, err := t.edgeFor(level, child)
		if err != nil {
			return err
		}
		select {
		case e.down <- policies[i]:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (t *LocalTree) AscendUp(ctx context.Context, level int) ([]vector.Sample, error) {
	children := t.childrenOf(level)
	out := make([]vector.Sample, len(children))
	for i, child := range children {
		e, err := t.edgeFor(level, child)
		if err != nil {
			return nil, err
		}
		select {
		case out[i] = <-e.up:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

func (t *LocalTree) SendUp(ctx context.Context, level int, sample vector.Sample) error {
	parent, ok := t.parentOf(level)
	if !ok {
		return nil // root: nothing above to send to.
	}
	e, err := t.edgeFor(parent, level)
	if err != nil {
		return err
	}
	select {
	case e.up <- sample:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *LocalTree) ReceiveDown(ctx context.Context, level int) (vector.Policy, error) {
	parent, ok := t.parentOf(level)
	if !ok {
		return vector.Policy{}, nil // root: nothing above to receive from.
	}
	e, err := t.edgeFor(parent, level)
	if err != nil {
		return vector.Policy{}, err
	}
	select {
	case p := <-e.down:
		return p, nil
	case <-ctx.Done():
		return vector.Policy{}, ctx.Err()
	}
}
