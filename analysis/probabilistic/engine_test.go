package probabilistic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/librarian-core/analysis/probabilistic"
	"github.com/aleutian-labs/librarian-core/graph"
	"github.com/aleutian-labs/librarian-core/storage"
)

func TestRecordObservations_UpdatesPosteriorExactly(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryGateway()
	engine := probabilistic.NewEngine(store, nil)

	require.NoError(t, engine.RecordObservations(ctx, "fn:a", graph.KindFunction, 8, 2))

	rec, err := store.GetBayesianConfidence(ctx, "fn:a", graph.KindFunction)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 9.0, rec.Alpha)
	assert.Equal(t, 3.0, rec.Beta)
	assert.Equal(t, 10, rec.ObservationCount)
}

func TestRecordObservations_RejectsNegative(t *testing.T) {
	ctx := context.Background()
	engine := probabilistic.NewEngine(storage.NewInMemoryGateway(), nil)
	err := engine.RecordObservations(ctx, "fn:a", graph.KindFunction, -1, 0)
	assert.Error(t, err)
}

func TestAggregate_PoolsAlphaBeta(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryGateway()
	engine := probabilistic.NewEngine(store, nil)

	require.NoError(t, engine.RecordObservations(ctx, "a", graph.KindFunction, 4, 1))
	require.NoError(t, engine.RecordObservations(ctx, "b", graph.KindFunction, 3, 2))

	pooled, err := engine.Aggregate(ctx, []storage.EntityRef{
		{ID: "a", Kind: graph.KindFunction}, {ID: "b", Kind: graph.KindFunction},
	})
	require.NoError(t, err)
	// alpha = 1+4 + 1+3 = 9, beta = 1+1 + 1+2 = 5
	assert.InDelta(t, 9.0/14.0, pooled.Mean, 1e-9)
}

func TestPropagate_DependencyFloorDragsDown(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryGateway()
	engine := probabilistic.NewEngine(store, nil)

	require.NoError(t, engine.RecordObservations(ctx, "caller", graph.KindFunction, 9, 1)) // mean 10/12 ≈ 0.83
	require.NoError(t, engine.RecordObservations(ctx, "callee", graph.KindFunction, 1, 9)) // low mean

	g := graph.NewGraph([]graph.Edge{{From: "caller", To: "callee"}})
	result, err := engine.Propagate(ctx, g, "caller", graph.KindFunction, probabilistic.DefaultDecay)
	require.NoError(t, err)
	assert.Less(t, result, 0.9)
}

func TestPropagate_NoDependenciesReturnsOwnMean(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryGateway()
	engine := probabilistic.NewEngine(store, nil)
	require.NoError(t, engine.RecordObservations(ctx, "solo", graph.KindFunction, 5, 5))

	// "solo" only has an incoming edge, so it has no dependencies.
	g := graph.NewGraph([]graph.Edge{{From: "caller", To: "solo"}})
	result, err := engine.Propagate(ctx, g, "solo", graph.KindFunction, probabilistic.DefaultDecay)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, result, 1e-9)
}

func TestUncertaintyReportFor_SortedByVarianceFlagsInsufficient(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryGateway()
	engine := probabilistic.NewEngine(store, nil)

	require.NoError(t, engine.RecordObservations(ctx, "few", graph.KindFunction, 1, 0))
	require.NoError(t, engine.RecordObservations(ctx, "many", graph.KindFunction, 40, 40))

	report, err := engine.UncertaintyReportFor(ctx, []storage.EntityRef{
		{ID: "few", Kind: graph.KindFunction}, {ID: "many", Kind: graph.KindFunction},
	}, 5)
	require.NoError(t, err)
	require.Len(t, report.Entries, 2)

	byID := map[string]probabilistic.UncertaintyEntry{}
	for _, e := range report.Entries {
		byID[e.EntityRef.ID] = e
	}
	assert.True(t, byID["few"].InsufficientData)
	assert.False(t, byID["many"].InsufficientData)
}
