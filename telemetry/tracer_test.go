package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/librarian-core/telemetry"
)

func TestStartEndSpan_Lifecycle(t *testing.T) {
	tr := telemetry.NewTracer()
	ctx, id := tr.StartSpan(context.Background(), "collect", "", map[string]string{"reason": "test"})
	require.NotEmpty(t, id)
	require.NotEqual(t, context.Background(), ctx)

	tr.EndSpan(id)
	spans := tr.ExportTraces()
	require.Len(t, spans, 1)
	assert.True(t, spans[0].Done())
}

func TestEndSpan_TwiceAndUnknownAreNoOps(t *testing.T) {
	tr := telemetry.NewTracer()
	_, id := tr.StartSpan(context.Background(), "op", "", nil)
	tr.EndSpan(id)
	first := tr.ExportTraces()[0].EndTime

	tr.EndSpan(id) // second end: no-op
	second := tr.ExportTraces()[0].EndTime
	assert.Equal(t, first, second)

	tr.EndSpan("does-not-exist") // unknown span: no-op, must not panic
}

func TestDisabled_ReturnsEmptyIDsAndNoSpans(t *testing.T) {
	tr := telemetry.NewTracer(telemetry.WithDisabled(true))
	ctx, id := tr.StartSpan(context.Background(), "op", "", map[string]string{"k": "v"})
	assert.Empty(t, id)
	assert.Equal(t, context.Background(), ctx)

	tr.AddEvent(id, "evt", nil)
	tr.SetAttributes(id, map[string]string{"a": "b"})
	assert.Empty(t, tr.ExportTraces())
}

func TestRetentionCap_EvictsOldestFirst(t *testing.T) {
	tr := telemetry.NewTracer(telemetry.WithMaxSpans(3))
	var ids []string
	for i := 0; i < 5; i++ {
		_, id := tr.StartSpan(context.Background(), "op", "", nil)
		ids = append(ids, id)
	}

	spans := tr.ExportTraces()
	require.Len(t, spans, 3)
	gotIDs := make(map[string]bool, 3)
	for _, s := range spans {
		gotIDs[s.ID] = true
	}
	assert.True(t, gotIDs[ids[2]])
	assert.True(t, gotIDs[ids[3]])
	assert.True(t, gotIDs[ids[4]])
	assert.False(t, gotIDs[ids[0]])
	assert.False(t, gotIDs[ids[1]])
}

func TestBuildTraceTree_FlattenedSetEqualsExportTraces(t *testing.T) {
	tr := telemetry.NewTracer()
	_, root := tr.StartSpan(context.Background(), "root", "", nil)
	_, child1 := tr.StartSpan(context.Background(), "child1", root, nil)
	_, child2 := tr.StartSpan(context.Background(), "child2", root, nil)
	_, grandchild := tr.StartSpan(context.Background(), "grandchild", child1, nil)
	tr.EndSpan(grandchild)
	tr.EndSpan(child1)
	tr.EndSpan(child2)
	tr.EndSpan(root)

	forest := tr.BuildTraceTree("")
	require.Len(t, forest, 1)

	var flatten func(telemetry.TraceNode, map[string]bool)
	flatten = func(n telemetry.TraceNode, seen map[string]bool) {
		seen[n.Span.ID] = true
		for _, c := range n.Children {
			flatten(c, seen)
		}
	}
	seen := make(map[string]bool)
	for _, n := range forest {
		flatten(n, seen)
	}

	exported := tr.ExportTraces()
	assert.Len(t, seen, len(exported))
	for _, s := range exported {
		assert.True(t, seen[s.ID], "span %s missing from tree", s.ID)
	}
}

func TestExportStructuredTrace_SingleRootDetected(t *testing.T) {
	tr := telemetry.NewTracer()
	_, root := tr.StartSpan(context.Background(), "root", "", nil)
	_, child := tr.StartSpan(context.Background(), "child", root, nil)
	tr.EndSpan(child)
	tr.EndSpan(root)

	trace := tr.ExportStructuredTrace()
	assert.Equal(t, root, trace.RootSpanID)
	assert.GreaterOrEqual(t, trace.DurationMs, int64(0))
}

func TestExportStructuredTrace_MultipleRootsLeavesRootIDEmpty(t *testing.T) {
	tr := telemetry.NewTracer()
	_, r1 := tr.StartSpan(context.Background(), "r1", "", nil)
	_, r2 := tr.StartSpan(context.Background(), "r2", "", nil)
	tr.EndSpan(r1)
	tr.EndSpan(r2)

	trace := tr.ExportStructuredTrace()
	assert.Empty(t, trace.RootSpanID)
}

func TestFormatHuman_RendersStatusIcons(t *testing.T) {
	tr := telemetry.NewTracer()
	_, ok := tr.StartSpan(context.Background(), "good", "", nil)
	tr.SetAttributes(ok, map[string]string{"status": "ok"})
	tr.EndSpan(ok)

	_, bad := tr.StartSpan(context.Background(), "bad", "", nil)
	tr.SetAttributes(bad, map[string]string{"status": "error"})
	tr.EndSpan(bad)

	forest := tr.BuildTraceTree("")
	out := telemetry.FormatHuman(forest)
	assert.Contains(t, out, "[ok]")
	assert.Contains(t, out, "[error]")
}
