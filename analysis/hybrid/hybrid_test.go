package hybrid_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/librarian-core/analysis/deterministic"
	"github.com/aleutian-labs/librarian-core/analysis/hybrid"
	"github.com/aleutian-labs/librarian-core/analysis/probabilistic"
	"github.com/aleutian-labs/librarian-core/graph"
	"github.com/aleutian-labs/librarian-core/storage"
)

func TestClassifyFeedbackLoops_TwoNodeCycleIsMutualRecursionLowStable(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryGateway()
	engine := probabilistic.NewEngine(store, nil)

	g := graph.NewGraph([]graph.Edge{{From: "A", To: "B"}, {From: "B", To: "A"}})
	components := deterministic.TarjanSCC(ctx, g, nil)

	loops := hybrid.ClassifyFeedbackLoops(ctx, g, graph.KindFunction, engine, components, nil, nil)
	require.Len(t, loops, 1)
	assert.Equal(t, storage.LoopMutualRecursion, loops[0].LoopType)
	assert.Equal(t, storage.SeverityLow, loops[0].Severity)
	assert.True(t, loops[0].IsStable)
}

func TestClassifyFeedbackLoops_FiveCycleIsCritical(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryGateway()
	engine := probabilistic.NewEngine(store, nil)

	g := graph.NewGraph([]graph.Edge{
		{From: "A", To: "B"}, {From: "B", To: "C"}, {From: "C", To: "D"},
		{From: "D", To: "E"}, {From: "E", To: "A"},
	})
	components := deterministic.TarjanSCC(ctx, g, nil)
	loops := hybrid.ClassifyFeedbackLoops(ctx, g, graph.KindFunction, engine, components, nil, nil)
	require.Len(t, loops, 1)
	assert.Equal(t, storage.SeverityCritical, loops[0].Severity)
	assert.False(t, loops[0].IsStable)
}

func TestClassifyFeedbackLoops_DenseComponentIsStateCycle(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryGateway()
	engine := probabilistic.NewEngine(store, nil)

	// fully pairwise connected 3-node component: density = 1 > 0.7
	g := graph.NewGraph([]graph.Edge{
		{From: "A", To: "B"}, {From: "B", To: "A"},
		{From: "B", To: "C"}, {From: "C", To: "B"},
		{From: "A", To: "C"}, {From: "C", To: "A"},
	})
	components := deterministic.TarjanSCC(ctx, g, nil)
	loops := hybrid.ClassifyFeedbackLoops(ctx, g, graph.KindFunction, engine, components, nil, nil)
	require.Len(t, loops, 1)
	assert.Equal(t, storage.LoopStateCycle, loops[0].LoopType)
}

func TestPropagateRisk_MatchesWorkedExample(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryGateway()
	engine := probabilistic.NewEngine(store, nil)

	require.NoError(t, engine.RecordObservations(ctx, "X", graph.KindFunction, 8, 0)) // Beta(9,1): mean 0.9
	require.NoError(t, engine.RecordObservations(ctx, "Y", graph.KindFunction, 2, 6)) // Beta(3,7): mean 0.3

	g := graph.NewGraph([]graph.Edge{{From: "X", To: "Y"}})
	results := hybrid.PropagateRisk(ctx, g, graph.KindFunction, engine, 0.7)

	var x hybrid.RiskResult
	for _, r := range results {
		if r.EntityID == "X" {
			x = r
		}
	}
	assert.InDelta(t, 0.1, x.DirectRisk, 0.05)
	assert.Contains(t, x.RiskSources, "Y")
}

func TestComputeSystemHealth_GradeMapping(t *testing.T) {
	stats := deterministic.AdjacencyStats{Density: 0.1, AvgOutDegree: 1}
	stability := hybrid.ControlStability{Overall: 1.0, LoopRisk: 0, ChangeAmplification: 0.1}
	report := hybrid.ComputeSystemHealth(stats, 0.95, true, stability, nil, nil)
	assert.GreaterOrEqual(t, report.Score, 90)
	assert.Equal(t, "A", report.Grade)
}
