package badger

import (
	"context"
	"testing"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/librarian-core/graph"
	"github.com/aleutian-labs/librarian-core/storage"
)

func openTestGateway(t *testing.T) *Gateway {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewGateway(db)
}

func TestGateway_ConfidenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	gw := openTestGateway(t)

	rec, err := gw.GetBayesianConfidence(ctx, "fn:a", graph.KindFunction)
	require.NoError(t, err)
	assert.Nil(t, rec)

	want := storage.ConfidenceRecord{EntityID: "fn:a", Kind: graph.KindFunction, Alpha: 9, Beta: 3, ObservationCount: 10}
	require.NoError(t, gw.UpsertBayesianConfidence(ctx, want))

	got, err := gw.GetBayesianConfidence(ctx, "fn:a", graph.KindFunction)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Alpha, got.Alpha)
}

func TestGateway_UpsertSCCEntriesReplacesAtomically(t *testing.T) {
	ctx := context.Background()
	gw := openTestGateway(t)

	first := []storage.SCCEntry{{ComponentID: "c1", EntityID: "a", ComponentSize: 2, IsRoot: true}}
	require.NoError(t, gw.UpsertSCCEntries(ctx, graph.KindFunction, first))

	second := []storage.SCCEntry{
		{ComponentID: "c2", EntityID: "x", ComponentSize: 3, IsRoot: true},
		{ComponentID: "c2", EntityID: "y", ComponentSize: 3, IsRoot: false},
	}
	require.NoError(t, gw.UpsertSCCEntries(ctx, graph.KindFunction, second))

	// Re-run to confirm idempotency: the prior set stays replaced, not
	// duplicated.
	require.NoError(t, gw.UpsertSCCEntries(ctx, graph.KindFunction, second))

	var keys []string
	require.NoError(t, gw.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()
		prefix := sccPrefix(graph.KindFunction)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	}))
	assert.ElementsMatch(t, []string{"scc:function:x", "scc:function:y"}, keys)
}

func TestGateway_CFGEdgesAndFilteredRead(t *testing.T) {
	ctx := context.Background()
	gw := openTestGateway(t)

	edges := []storage.CFGEdge{
		{FunctionID: "fn:a", FromBlock: 0, ToBlock: 1, Type: storage.EdgeSequential, Confidence: 1.0},
		{FunctionID: "fn:a", FromBlock: 1, ToBlock: 1, Type: storage.EdgeLoopBack, Confidence: 1.0},
	}
	require.NoError(t, gw.UpsertCFGEdges(ctx, edges))

	got, err := gw.Edges(ctx, "fn:a", "", []storage.EdgeType{storage.EdgeLoopBack})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, storage.EdgeLoopBack, got[0].Type)
}

func TestGateway_FeedbackLoopUpsert(t *testing.T) {
	ctx := context.Background()
	gw := openTestGateway(t)

	loop := storage.FeedbackLoop{LoopID: "loop-1", Entities: []string{"a", "b"}, CycleLength: 2, LoopType: storage.LoopMutualRecursion}
	require.NoError(t, gw.UpsertFeedbackLoop(ctx, loop))
	require.NoError(t, gw.UpsertFeedbackLoop(ctx, loop)) // idempotent
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{InMemory: false, Path: ""})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestGCRunner_RejectsInvalidArgs(t *testing.T) {
	_, err := NewGCRunner(nil, 0, 0, nil)
	assert.Error(t, err)
}
