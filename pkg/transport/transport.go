// Package transport provides the tree-structured message-passing contract
// spec.md §6 treats as an external collaborator: hierarchical down-policy /
// up-sample flow between a node and its direct children. The balancing core
// only depends on the small Tree interface here.
package transport

import (
	"context"

	"github.com/jobpower/powerbalancer/pkg/vector"
)

// Tree is the per-node view of the tree transport. level identifies the
// calling node's position (used by implementations that multiplex several
// nodes over one transport instance, e.g. LocalTree).
type Tree interface {
	// DescendDown delivers policies to this node's direct children,
	// one policy per child in child order. LocalTree delivers every policy
	// in order per edge; HTTPTree keeps only the newest unread policy at
	// each child.
	DescendDown(ctx context.Context, level int, policies []vector.Policy) error
	// AscendUp blocks until every direct child at level has published a
	// sample for the current cycle, then returns them in child order.
	AscendUp(ctx context.Context, level int) ([]vector.Sample, error)
	// SendUp delivers this node's own sample to its parent. A no-op for
	// the root, which has no parent.
	SendUp(ctx context.Context, level int, sample vector.Sample) error
	// ReceiveDown blocks until this node's parent has delivered the next
	// policy. A no-op for the root, which originates policies itself.
	ReceiveDown(ctx context.Context, level int) (vector.Policy, error)
}
