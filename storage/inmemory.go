// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/aleutian-labs/librarian-core/graph"
	"github.com/aleutian-labs/librarian-core/logging"
)

// InMemoryGateway is a Gateway backed by plain maps guarded by a mutex. It
// is used by analyzer tests and by callers that don't need durability.
type InMemoryGateway struct {
	mu sync.Mutex

	confidence map[string]ConfidenceRecord // key: kind+"/"+id
	stability  map[string]StabilityMetrics
	scc        map[graph.Kind][]SCCEntry
	cfgEdges   map[string]CFGEdge // key: functionID+"/"+from+"/"+to
	loops      map[string]FeedbackLoop

	logger *slog.Logger
}

// NewInMemoryGateway returns an empty, ready-to-use gateway, logging
// through logging.ForComponent("storage").
func NewInMemoryGateway() *InMemoryGateway {
	return &InMemoryGateway{
		confidence: make(map[string]ConfidenceRecord),
		stability:  make(map[string]StabilityMetrics),
		scc:        make(map[graph.Kind][]SCCEntry),
		cfgEdges:   make(map[string]CFGEdge),
		loops:      make(map[string]FeedbackLoop),
		logger:     logging.ForComponent("storage"),
	}
}

func confKey(kind graph.Kind, id string) string { return string(kind) + "/" + id }

func (g *InMemoryGateway) GetBayesianConfidence(_ context.Context, id string, kind graph.Kind) (*ConfidenceRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.confidence[confKey(kind, id)]
	if !ok {
		return nil, nil
	}
	cp := rec
	return &cp, nil
}

func (g *InMemoryGateway) UpsertBayesianConfidence(_ context.Context, record ConfidenceRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.confidence[confKey(record.Kind, record.EntityID)] = record
	return nil
}

func (g *InMemoryGateway) GetStabilityMetrics(_ context.Context, id string, kind graph.Kind) (*StabilityMetrics, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.stability[confKey(kind, id)]
	if !ok {
		return nil, nil
	}
	cp := rec
	return &cp, nil
}

func (g *InMemoryGateway) UpsertStabilityMetrics(_ context.Context, record StabilityMetrics) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stability[confKey(record.Kind, record.EntityID)] = record
	return nil
}

func (g *InMemoryGateway) UpsertSCCEntries(_ context.Context, entityType graph.Kind, entries []SCCEntry) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := make([]SCCEntry, len(entries))
	copy(cp, entries)
	g.scc[entityType] = cp
	return nil
}

func cfgKey(functionID string, from, to int) string {
	return functionID + "/" + strconv.Itoa(from) + "/" + strconv.Itoa(to)
}

func (g *InMemoryGateway) UpsertCFGEdges(_ context.Context, edges []CFGEdge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range edges {
		g.cfgEdges[cfgKey(e.FunctionID, e.FromBlock, e.ToBlock)] = e
	}
	return nil
}

// UpsertFeedbackLoop stores loop under loop.LoopID, assigning a random ID
// when the caller leaves one unset (analyzers always set a deterministic
// one; this only matters for direct Gateway callers).
func (g *InMemoryGateway) UpsertFeedbackLoop(_ context.Context, loop FeedbackLoop) error {
	if loop.LoopID == "" {
		loop.LoopID = uuid.NewString()
		g.logger.Debug("feedback loop assigned generated ID", "loop_id", loop.LoopID)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loops[loop.LoopID] = loop
	return nil
}

func (g *InMemoryGateway) Edges(_ context.Context, fromID, toID string, edgeTypes []EdgeType) ([]CFGEdge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	typeSet := make(map[EdgeType]bool, len(edgeTypes))
	for _, t := range edgeTypes {
		typeSet[t] = true
	}

	var out []CFGEdge
	for _, e := range g.cfgEdges {
		if fromID != "" {
			// FromBlock is an int keyed to the function's own numbering,
			// so endpoint filtering on edges is by FunctionID here.
			if e.FunctionID != fromID && e.FunctionID != toID {
				continue
			}
		}
		if len(typeSet) > 0 && !typeSet[e.Type] {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// SCCEntriesFor returns the currently persisted SCC entries for a kind, a
// test/inspection helper not part of the Gateway interface.
func (g *InMemoryGateway) SCCEntriesFor(kind graph.Kind) []SCCEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := make([]SCCEntry, len(g.scc[kind]))
	copy(cp, g.scc[kind])
	return cp
}

// LoopByID is a test/inspection helper not part of the Gateway interface.
func (g *InMemoryGateway) LoopByID(id string) (FeedbackLoop, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.loops[id]
	return l, ok
}

