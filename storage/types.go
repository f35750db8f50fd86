// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage defines the narrow persistence contract the analysis
// core needs (confidences, stability metrics, SCC entries, CFG edges,
// feedback loops) plus an in-memory implementation used by tests and by
// callers who don't need durability. storage/badger provides the durable
// implementation.
package storage

import (
	"context"
	"time"

	"github.com/aleutian-labs/librarian-core/graph"
)

// ConfidenceRecord is the persisted Beta-posterior state for one entity.
type ConfidenceRecord struct {
	EntityID         string
	Kind             graph.Kind
	PriorAlpha       float64
	PriorBeta        float64
	Alpha            float64
	Beta             float64
	ObservationCount int
	LastUpdated      time.Time
}

// StabilityMetrics tracks how often an entity's observed behavior changes.
type StabilityMetrics struct {
	EntityID    string
	Kind        graph.Kind
	Volatility  float64
	LastChanged time.Time
	ChangeCount int
}

// SCCEntry is one row of a persisted strongly-connected-component table.
type SCCEntry struct {
	ComponentID   string
	EntityID      string
	Kind          graph.Kind
	IsRoot        bool
	ComponentSize int
	ComputedAt    time.Time
}

// LoopType classifies the shape of a feedback loop.
type LoopType string

const (
	LoopCircularImport LoopType = "circular_import"
	LoopMutualRecursion LoopType = "mutual_recursion"
	LoopStateCycle     LoopType = "state_cycle"
	// LoopDataFlowCycle is reserved for future data-flow-labeled edges;
	// the classifier never emits it today.
	LoopDataFlowCycle LoopType = "data_flow_cycle"
)

// Severity ranks how dangerous a feedback loop or risk signal is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// FeedbackLoop is a persisted cycle classification.
type FeedbackLoop struct {
	LoopID      string
	Entities    []string
	LoopType    LoopType
	Severity    Severity
	IsStable    bool
	CycleLength int
	DetectedAt  time.Time
}

// EdgeType classifies a control-flow edge between two basic blocks.
type EdgeType string

const (
	EdgeSequential  EdgeType = "sequential"
	EdgeBranchTrue  EdgeType = "branch_true"
	EdgeBranchFalse EdgeType = "branch_false"
	EdgeLoopBack    EdgeType = "loop_back"
)

// CFGEdge is a persisted control-flow edge, keyed by (FunctionID,
// FromBlock, ToBlock).
type CFGEdge struct {
	FunctionID string
	FromBlock  int
	ToBlock    int
	Type       EdgeType
	Condition  string
	Confidence float64
}

// EntityRef identifies an entity for batch queries (aggregation,
// uncertainty reports).
type EntityRef struct {
	ID   string
	Kind graph.Kind
}

// Gateway is the complete persistence boundary consumed by analyzers.
// Implementations must be idempotent and total for every operation.
type Gateway interface {
	GetBayesianConfidence(ctx context.Context, id string, kind graph.Kind) (*ConfidenceRecord, error)
	UpsertBayesianConfidence(ctx context.Context, record ConfidenceRecord) error

	GetStabilityMetrics(ctx context.Context, id string, kind graph.Kind) (*StabilityMetrics, error)
	UpsertStabilityMetrics(ctx context.Context, record StabilityMetrics) error

	// UpsertSCCEntries replaces prior entries of the same entityType
	// atomically.
	UpsertSCCEntries(ctx context.Context, entityType graph.Kind, entries []SCCEntry) error

	// UpsertCFGEdges upserts edges keyed by (FunctionID, FromBlock, ToBlock).
	UpsertCFGEdges(ctx context.Context, edges []CFGEdge) error

	// UpsertFeedbackLoop upserts a loop keyed by LoopID.
	UpsertFeedbackLoop(ctx context.Context, loop FeedbackLoop) error

	// Edges returns persisted CFG edges filtered by function and edge-type
	// set. A nil/empty edgeTypes matches every type. An empty fromID
	// matches every function; a non-empty fromID keeps edges whose
	// FunctionID equals fromID or toID. toID alone does not filter.
	Edges(ctx context.Context, fromID, toID string, edgeTypes []EdgeType) ([]CFGEdge, error)
}
