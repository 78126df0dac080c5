// Package topology resolves a node agent's tree neighbors (its parent and
// children's addresses) from Kubernetes Node labels instead of a static
// address book, grounded on the teacher's nodeops.ListManagedNodes label
// filtering. It never feeds the balancing algorithm directly — only the
// address book main.go's resolveTree assembles before
// pkg/transport.NewHTTPTree is constructed.
package topology

import (
	"context"
	"fmt"
	"sort"

	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Discovery finds tree neighbors among the Nodes carrying JobLabel, grouped
// by LevelLabel and addressed by AddrLabel.
type Discovery struct {
	JobLabel    string
	LevelLabel  string
	AddrLabel   string
	ParentLevel int
	OwnLevel    int
}

// Neighbors is the resolved address book for one node agent.
type Neighbors struct {
	Parent   string
	Children []string
}

// Resolve lists every Node carrying d.JobLabel, partitions it by d.LevelLabel
// into d.ParentLevel and d.OwnLevel+1 (children one level below ours), and
// returns their d.AddrLabel values. Children are sorted by node name so every
// node in the job agrees on fan-out order — a disagreement here would corrupt
// DescendDown/AscendUp's positional pairing of policies and child addresses.
func (d Discovery) Resolve(ctx context.Context, client kubernetes.Interface, jobID string) (Neighbors, error) {
	nodes, err := client.CoreV1().Nodes().List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", d.JobLabel, jobID),
	})
	if err != nil {
		return Neighbors{}, fmt.Errorf("topology: listing job nodes: %w", err)
	}

	var parentAddr string
	var children []v1.Node
	for _, n := range nodes.Items {
		level := n.Labels[d.LevelLabel]
		addr := n.Labels[d.AddrLabel]
		if addr == "" {
			continue
		}
		switch level {
		case levelString(d.ParentLevel):
			parentAddr = addr
		case levelString(d.OwnLevel + 1):
			children = append(children, n)
		}
	}

	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })

	out := Neighbors{Parent: parentAddr}
	for _, n := range children {
		out.Children = append(out.Children, n.Labels[d.AddrLabel])
	}
	return out, nil
}

func levelString(level int) string {
	return fmt.Sprintf("%d", level)
}
