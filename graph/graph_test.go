package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraph_TransposeInvariant(t *testing.T) {
	g := NewGraph([]Edge{
		{From: "a", To: "b"},
		{From: "b", To: "c"},
		{From: "c", To: "a"},
		{From: "a", To: "a"},
	})

	for _, x := range g.Nodes() {
		for _, y := range g.Neighbors(x) {
			assert.Contains(t, g.ReverseNeighbors(y), x, "y in G[x] must imply x in G^-1[y]")
		}
		for _, y := range g.ReverseNeighbors(x) {
			assert.Contains(t, g.Neighbors(y), x, "x in G^-1[y] must imply y in G[x]")
		}
	}
}

func TestNewGraph_MissingIDReturnsEmpty(t *testing.T) {
	g := NewGraph([]Edge{{From: "a", To: "b"}})
	assert.Nil(t, g.Neighbors("ghost"))
	assert.Nil(t, g.ReverseNeighbors("ghost"))
	assert.False(t, g.HasNode("ghost"))
}

func TestNewGraph_EdgeCountCountsParallelAndSelfLoops(t *testing.T) {
	g := NewGraph([]Edge{
		{From: "a", To: "b"},
		{From: "a", To: "b"},
		{From: "a", To: "a"},
	})
	assert.Equal(t, 3, g.EdgeCount())
	assert.True(t, g.SelfLoops()["a"])
}

func TestNewGraph_EmptyGraph(t *testing.T) {
	g := NewGraph(nil)
	assert.Empty(t, g.Nodes())
	assert.Equal(t, 0, g.EdgeCount())
}

func TestNewGraph_NodesSortedStable(t *testing.T) {
	g := NewGraph([]Edge{{From: "z", To: "a"}, {From: "m", To: "b"}})
	require.Equal(t, []string{"a", "b", "m", "z"}, g.Nodes())
}
