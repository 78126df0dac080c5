package topology_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	corefake "k8s.io/client-go/kubernetes/fake"

	"github.com/jobpower/powerbalancer/pkg/topology"
)

func node(name, job, level, addr string) *v1.Node {
	return &v1.Node{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			Labels: map[string]string{
				"powerbalancer.io/job":   job,
				"powerbalancer.io/level": level,
				"powerbalancer.io/addr":  addr,
			},
		},
	}
}

func TestDiscoveryResolve(t *testing.T) {
	client := corefake.NewSimpleClientset(
		node("root0", "job-a", "0", "http://root0:8080"),
		node("leaf1", "job-a", "1", "http://leaf1:8080"),
		node("leaf2", "job-a", "1", "http://leaf2:8080"),
		node("leaf0", "job-a", "1", "http://leaf0:8080"),
		node("other", "job-b", "1", "http://other:8080"),
	)

	d := topology.Discovery{
		JobLabel:    "powerbalancer.io/job",
		LevelLabel:  "powerbalancer.io/level",
		AddrLabel:   "powerbalancer.io/addr",
		ParentLevel: 0,
		OwnLevel:    0,
	}

	got, err := d.Resolve(context.Background(), client, "job-a")
	require.NoError(t, err)

	assert.Equal(t, "http://root0:8080", got.Parent)
	assert.Equal(t, []string{"http://leaf0:8080", "http://leaf1:8080", "http://leaf2:8080"}, got.Children)
}

func TestDiscoveryResolve_NoMatches(t *testing.T) {
	client := corefake.NewSimpleClientset()

	d := topology.Discovery{JobLabel: "powerbalancer.io/job", LevelLabel: "powerbalancer.io/level", AddrLabel: "powerbalancer.io/addr"}
	got, err := d.Resolve(context.Background(), client, "job-a")
	require.NoError(t, err)
	assert.Empty(t, got.Parent)
	assert.Empty(t, got.Children)
}
