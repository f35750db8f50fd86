package deterministic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/librarian-core/analysis/deterministic"
	"github.com/aleutian-labs/librarian-core/graph"
)

func TestTarjanSCC_EmptyGraph(t *testing.T) {
	g := graph.NewGraph(nil)
	comps := deterministic.TarjanSCC(context.Background(), g, nil)
	assert.Empty(t, comps)
}

func TestTarjanSCC_SingleNodeSelfLoopIsCyclic(t *testing.T) {
	g := graph.NewGraph([]graph.Edge{{From: "a", To: "a"}})
	comps := deterministic.TarjanSCC(context.Background(), g, nil)
	require.Len(t, comps, 1)
	assert.True(t, comps[0].Cyclic)
	assert.Equal(t, "a", comps[0].RootID)
}

func TestTarjanSCC_SingleNodeNoSelfLoopIsAcyclic(t *testing.T) {
	g := graph.NewGraph([]graph.Edge{{From: "a", To: "b"}})
	comps := deterministic.TarjanSCC(context.Background(), g, nil)
	// two singleton components: {a}, {b}
	require.Len(t, comps, 2)
	for _, c := range comps {
		assert.Len(t, c.Entities, 1)
		assert.False(t, c.Cyclic)
	}
}

func TestTarjanSCC_TwoNodeCycle(t *testing.T) {
	g := graph.NewGraph([]graph.Edge{{From: "a", To: "b"}, {From: "b", To: "a"}})
	comps := deterministic.TarjanSCC(context.Background(), g, nil)
	require.Len(t, comps, 1)
	assert.True(t, comps[0].Cyclic)
	assert.ElementsMatch(t, []string{"a", "b"}, comps[0].Entities)
	assert.Equal(t, "a", comps[0].RootID)
}

func TestTarjanSCC_PartitionsEveryNode(t *testing.T) {
	g := graph.NewGraph([]graph.Edge{
		{From: "a", To: "b"}, {From: "b", To: "c"}, {From: "c", To: "a"},
		{From: "c", To: "d"}, {From: "d", To: "e"},
	})
	comps := deterministic.TarjanSCC(context.Background(), g, nil)

	seen := map[string]int{}
	for _, c := range comps {
		for _, e := range c.Entities {
			seen[e]++
		}
	}
	for _, n := range g.Nodes() {
		assert.Equal(t, 1, seen[n], "node %s must belong to exactly one component", n)
	}
}

func TestTarjanSCC_CriticalFiveCycle(t *testing.T) {
	g := graph.NewGraph([]graph.Edge{
		{From: "A", To: "B"}, {From: "B", To: "C"}, {From: "C", To: "D"},
		{From: "D", To: "E"}, {From: "E", To: "A"},
	})
	comps := deterministic.TarjanSCC(context.Background(), g, nil)
	require.Len(t, comps, 1)
	assert.Len(t, comps[0].Entities, 5)
	assert.True(t, comps[0].Cyclic)
}

func TestTarjanSCC_DeterministicAcrossRuns(t *testing.T) {
	g := graph.NewGraph([]graph.Edge{
		{From: "a", To: "b"}, {From: "b", To: "a"}, {From: "x", To: "y"},
	})
	first := deterministic.TarjanSCC(context.Background(), g, nil)
	second := deterministic.TarjanSCC(context.Background(), g, nil)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].RootID, second[i].RootID)
		assert.ElementsMatch(t, first[i].Entities, second[i].Entities)
	}
}
