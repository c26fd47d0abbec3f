package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEdge_Validation(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")

	require.NoError(t, g.AddEdge("a", "b"))

	assert.Error(t, g.AddEdge("missing", "b"), "unknown dependency")
	assert.Error(t, g.AddEdge("a", "missing"), "unknown step")
	assert.Error(t, g.AddEdge("a", "a"), "self-loop")

	// Duplicate edges are collapsed.
	require.NoError(t, g.AddEdge("a", "b"))
	assert.Equal(t, []string{"a"}, g.Parents("b"))
}

func TestHasCycle(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c"} {
		g.AddNode(id)
	}
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))

	cyclic, _ := g.HasCycle()
	assert.False(t, cyclic)

	require.NoError(t, g.AddEdge("c", "a"))
	cyclic, at := g.HasCycle()
	assert.True(t, cyclic)
	assert.NotEmpty(t, at)
}

func TestTopologicalSort(t *testing.T) {
	g := New()
	for _, id := range []string{"ingest", "validate", "staging", "silver", "gold"} {
		g.AddNode(id)
	}
	require.NoError(t, g.AddEdge("ingest", "validate"))
	require.NoError(t, g.AddEdge("validate", "staging"))
	require.NoError(t, g.AddEdge("staging", "silver"))
	require.NoError(t, g.AddEdge("silver", "gold"))

	order, err := g.TopologicalSort()
	require.NoError(t, err)

	assert.Equal(t, []string{"ingest", "validate", "staging", "silver", "gold"}, order)
}

func TestTopologicalSort_Deterministic(t *testing.T) {
	build := func() *Graph {
		g := New()
		for _, id := range []string{"z", "m", "a"} {
			g.AddNode(id)
		}
		return g
	}

	first, err := build().TopologicalSort()
	require.NoError(t, err)
	second, err := build().TopologicalSort()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a", "m", "z"}, first, "independent nodes sort by id")
}

func TestTopologicalSort_CycleFails(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "a"))

	_, err := g.TopologicalSort()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}
