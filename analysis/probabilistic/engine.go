// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package probabilistic

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aleutian-labs/librarian-core/apperrors"
	"github.com/aleutian-labs/librarian-core/graph"
	"github.com/aleutian-labs/librarian-core/logging"
	"github.com/aleutian-labs/librarian-core/storage"
)

// DefaultDecay is the per-hop confidence-propagation decay rate.
const DefaultDecay = 0.7

// DefaultInsufficientObservations is the observation-count threshold below
// which an entity is flagged as having insufficient data.
const DefaultInsufficientObservations = 5

// Engine wraps a storage.Gateway with the Beta-posterior confidence
// operations of §4.D.
type Engine struct {
	store  storage.Gateway
	logger *slog.Logger
}

// NewEngine constructs an Engine. A nil logger defaults to
// logging.ForComponent("probabilistic").
func NewEngine(store storage.Gateway, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.ForComponent("probabilistic")
	}
	return &Engine{store: store, logger: logger}
}

// RecordObservations applies successes/failures to id's posterior,
// creating a uniform-prior record on first use. Negative inputs are
// rejected per §4.D.
func (e *Engine) RecordObservations(ctx context.Context, id string, kind graph.Kind, successes, failures int) error {
	if successes < 0 || failures < 0 {
		return apperrors.Wrap("probabilistic.RecordObservations", apperrors.ErrInvalidArgument)
	}

	rec, err := e.store.GetBayesianConfidence(ctx, id, kind)
	if err != nil {
		return apperrors.Wrap("probabilistic.RecordObservations", err)
	}
	if rec == nil {
		rec = &storage.ConfidenceRecord{
			EntityID: id, Kind: kind,
			PriorAlpha: 1, PriorBeta: 1, Alpha: 1, Beta: 1,
		}
	}

	rec.Alpha += float64(successes)
	rec.Beta += float64(failures)
	rec.ObservationCount += successes + failures
	rec.LastUpdated = time.Now().UTC()

	if err := e.store.UpsertBayesianConfidence(ctx, *rec); err != nil {
		return apperrors.Wrap("probabilistic.RecordObservations", err)
	}
	return nil
}

// PooledConfidence is the result of aggregating several posteriors.
type PooledConfidence struct {
	Mean float64
	Lo   float64
	Hi   float64
}

// Aggregate pools the posteriors of ids by summing their alphas and betas,
// equivalent to pooled observations under a shared prior. Entities
// without a record contribute a uniform Beta(1,1).
func (e *Engine) Aggregate(ctx context.Context, ids []storage.EntityRef) (PooledConfidence, error) {
	alpha, beta := 0.0, 0.0
	for _, ref := range ids {
		rec, err := e.store.GetBayesianConfidence(ctx, ref.ID, ref.Kind)
		if err != nil {
			return PooledConfidence{}, apperrors.Wrap("probabilistic.Aggregate", err)
		}
		if rec == nil {
			alpha += 1
			beta += 1
			continue
		}
		alpha += rec.Alpha
		beta += rec.Beta
	}
	if alpha == 0 && beta == 0 {
		return PooledConfidence{Mean: 0.5}, nil
	}
	lo, hi := CredibleInterval(alpha, beta, defaultCredible)
	return PooledConfidence{Mean: BetaMean(alpha, beta), Lo: lo, Hi: hi}, nil
}

// Propagate computes id's effective confidence: the minimum of its own
// posterior mean and the decayed floor set by its dependencies (outgoing
// neighbors in g), implementing monotone risk inheritance — a
// low-confidence dependency drags its dependents down.
func (e *Engine) Propagate(ctx context.Context, g *graph.Graph, id string, kind graph.Kind, decay float64) (float64, error) {
	if decay <= 0 {
		decay = DefaultDecay
	}
	own, err := e.meanOrDefault(ctx, id, kind)
	if err != nil {
		return 0, err
	}

	deps := g.Neighbors(id)
	if len(deps) == 0 {
		return own, nil
	}

	floor := 0.0
	for _, dep := range deps {
		depMean, err := e.meanOrDefault(ctx, dep, kind)
		if err != nil {
			return 0, err
		}
		candidate := depMean * decay
		if candidate > floor {
			floor = candidate
		}
	}
	if floor < own {
		return floor, nil
	}
	return own, nil
}

// MeanFor returns id's posterior mean and whether a confidence record
// exists at all. It satisfies analysis/hybrid.ConfidenceSource. Storage
// errors are swallowed to false here since ConfidenceSource has no error
// return; callers that need the error should use GetBayesianConfidence
// directly.
func (e *Engine) MeanFor(ctx context.Context, id string, kind graph.Kind) (float64, bool) {
	rec, err := e.store.GetBayesianConfidence(ctx, id, kind)
	if err != nil || rec == nil {
		return 0, false
	}
	return BetaMean(rec.Alpha, rec.Beta), true
}

// VolatilityFor returns id's stored volatility and whether a
// StabilityMetrics record exists. It satisfies
// analysis/hybrid.ConfidenceSource.
func (e *Engine) VolatilityFor(ctx context.Context, id string, kind graph.Kind) (float64, bool) {
	rec, err := e.store.GetStabilityMetrics(ctx, id, kind)
	if err != nil || rec == nil {
		return 0, false
	}
	return rec.Volatility, true
}

func (e *Engine) meanOrDefault(ctx context.Context, id string, kind graph.Kind) (float64, error) {
	rec, err := e.store.GetBayesianConfidence(ctx, id, kind)
	if err != nil {
		return 0, apperrors.Wrap("probabilistic.meanOrDefault", err)
	}
	if rec == nil {
		// Absent confidence record: recover locally with mean 0.5, per §7.
		return 0.5, nil
	}
	return BetaMean(rec.Alpha, rec.Beta), nil
}

// UncertaintyEntry is one row of an UncertaintyReport.
type UncertaintyEntry struct {
	EntityRef         storage.EntityRef
	Mean              float64
	Variance          float64
	ObservationCount  int
	InsufficientData  bool
}

// UncertaintyReport is the full report returned by UncertaintyReportFor.
type UncertaintyReport struct {
	Entries []UncertaintyEntry
}

// UncertaintyReportFor returns entities sorted by variance descending,
// flagging those below minObservations (default DefaultInsufficientObservations
// when <= 0) as having insufficient data.
func (e *Engine) UncertaintyReportFor(ctx context.Context, ids []storage.EntityRef, minObservations int) (UncertaintyReport, error) {
	if minObservations <= 0 {
		minObservations = DefaultInsufficientObservations
	}

	entries := make([]UncertaintyEntry, 0, len(ids))
	for _, ref := range ids {
		rec, err := e.store.GetBayesianConfidence(ctx, ref.ID, ref.Kind)
		if err != nil {
			return UncertaintyReport{}, apperrors.Wrap("probabilistic.UncertaintyReportFor", err)
		}
		alpha, beta, count := 1.0, 1.0, 0
		if rec != nil {
			alpha, beta, count = rec.Alpha, rec.Beta, rec.ObservationCount
		}
		entries = append(entries, UncertaintyEntry{
			EntityRef:        ref,
			Mean:             BetaMean(alpha, beta),
			Variance:         BetaVariance(alpha, beta),
			ObservationCount: count,
			InsufficientData: count < minObservations,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Variance != entries[j].Variance {
			return entries[i].Variance > entries[j].Variance
		}
		return entries[i].EntityRef.ID < entries[j].EntityRef.ID
	})

	if e.logger != nil {
		e.logger.Debug(fmt.Sprintf("uncertainty report computed for %d entities", len(entries)))
	}
	return UncertaintyReport{Entries: entries}, nil
}
