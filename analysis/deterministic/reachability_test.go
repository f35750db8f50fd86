package deterministic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/librarian-core/analysis/deterministic"
	"github.com/aleutian-labs/librarian-core/graph"
)

func TestReachable_ExcludesSourceWithoutCycle(t *testing.T) {
	g := graph.NewGraph([]graph.Edge{{From: "a", To: "b"}, {From: "b", To: "c"}})
	r := deterministic.Reachable(context.Background(), g, "a")
	assert.ElementsMatch(t, []string{"b", "c"}, r)
}

func TestReachable_IncludesSourceOnCycle(t *testing.T) {
	g := graph.NewGraph([]graph.Edge{{From: "a", To: "b"}, {From: "b", To: "a"}})
	r := deterministic.Reachable(context.Background(), g, "a")
	assert.ElementsMatch(t, []string{"a", "b"}, r)
}

func TestReachable_MissingSourceIsEmpty(t *testing.T) {
	g := graph.NewGraph([]graph.Edge{{From: "a", To: "b"}})
	r := deterministic.Reachable(context.Background(), g, "ghost")
	assert.Empty(t, r)
}

func TestShortestPath_DegenerateSourceEqualsTarget(t *testing.T) {
	g := graph.NewGraph([]graph.Edge{{From: "a", To: "b"}})
	path, ok := deterministic.ShortestPath(context.Background(), g, "a", "a")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, path)
}

func TestShortestPath_FindsInclusiveEndpoints(t *testing.T) {
	g := graph.NewGraph([]graph.Edge{{From: "a", To: "b"}, {From: "b", To: "c"}})
	path, ok := deterministic.ShortestPath(context.Background(), g, "a", "c")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, path)
}

func TestShortestPath_NoPath(t *testing.T) {
	g := graph.NewGraph([]graph.Edge{{From: "a", To: "b"}})
	_, ok := deterministic.ShortestPath(context.Background(), g, "b", "a")
	assert.False(t, ok)
}
