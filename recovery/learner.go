// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recovery

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/aleutian-labs/librarian-core/analysis/probabilistic"
	"github.com/aleutian-labs/librarian-core/apperrors"
	"github.com/aleutian-labs/librarian-core/logging"
)

// ErrNoStrategy is the shared apperrors.ErrNoStrategy sentinel, re-exported
// here so callers of this package don't need to import apperrors just to
// check for it with errors.Is. apperrors.Classify maps it to ENOSTRATEGY.
var ErrNoStrategy = apperrors.ErrNoStrategy

// Hyperparameters fixed by §4.F.
const (
	priorAlpha = 1.0
	priorBeta  = 1.0

	minExplorationRate = 0.1

	antiPatternMinSamples    = 10
	antiPatternAvoidRate     = 0.8
	antiPatternCautionRate   = 0.6
	antiPatternPenaltyFactor = 0.1
)

// StrategyStats is the persisted posterior for one (strategy,
// degradationType) pair.
type StrategyStats struct {
	Strategy        string
	DegradationType string
	Successes       int
	Failures        int
	TotalFitnessDelta float64
	LastUpdated     time.Time
}

// TotalTrials returns Successes+Failures.
func (s StrategyStats) TotalTrials() int { return s.Successes + s.Failures }

// MeanFitnessDelta returns TotalFitnessDelta/TotalTrials, or 0 when no
// trials have been recorded.
func (s StrategyStats) MeanFitnessDelta() float64 {
	if s.TotalTrials() == 0 {
		return 0
	}
	return s.TotalFitnessDelta / float64(s.TotalTrials())
}

func (s StrategyStats) failureRate() float64 {
	if s.TotalTrials() == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.TotalTrials())
}

func statsKey(strategy, degradationType string) string {
	return strategy + "::" + degradationType
}

// Outcome is the observation recorded after a recovery attempt.
type Outcome struct {
	Strategy        string
	DegradationType string
	Success         bool
	FitnessDelta    float64
	Timestamp       time.Time
}

// AntiPattern flags a (strategy, degradationType) pair whose observed
// failure rate crosses a threshold with enough samples to trust it.
type AntiPattern struct {
	Strategy        string
	DegradationType string
	FailureRate     float64
	SampleSize      int
	Recommendation  string // "avoid" or "caution"
}

// Learner is the Thompson-sampling recovery-strategy selector.
//
// Thread Safety: Learner is safe for concurrent use; stats is guarded by
// a mutex, following the teacher's convention for shared in-memory state
// (see services/code_buddy/agent/tools.ErrorRecovery).
type Learner struct {
	mu    sync.RWMutex
	stats map[string]StrategyStats
	rng   *rand.Rand

	createdAt time.Time
	updatedAt time.Time

	metrics *PrometheusMetrics
	logger  *slog.Logger
}

// NewLearner returns an empty Learner seeded from a time-based RNG, logging
// through logging.ForComponent("recovery") until SetLogger overrides it.
func NewLearner() *Learner {
	now := time.Now().UTC()
	return &Learner{
		stats:     make(map[string]StrategyStats),
		rng:       rand.New(rand.NewSource(now.UnixNano())),
		createdAt: now,
		updatedAt: now,
		logger:    logging.ForComponent("recovery"),
	}
}

// SetMetrics attaches an optional Prometheus sink. A nil metrics sink is
// always safe to use.
func (l *Learner) SetMetrics(m *PrometheusMetrics) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.metrics = m
}

// SetLogger overrides the logger a Learner threads through its decision
// points. A nil logger restores logging.ForComponent("recovery").
func (l *Learner) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.ForComponent("recovery")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = logger
}

// RecordOutcome increments successes or failures for (strategy,
// degradationType), accumulates fitness delta, and refreshes lastUpdated.
func (l *Learner) RecordOutcome(o Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := statsKey(o.Strategy, o.DegradationType)
	s := l.stats[key]
	s.Strategy = o.Strategy
	s.DegradationType = o.DegradationType
	if o.Success {
		s.Successes++
	} else {
		s.Failures++
	}
	s.TotalFitnessDelta += o.FitnessDelta
	ts := o.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	s.LastUpdated = ts
	l.stats[key] = s
	l.updatedAt = time.Now().UTC()
}

// SelectStrategy draws a Thompson sample for every candidate strategy
// under degradationType and returns the argmax, per §4.F's selection
// algorithm. The first candidate wins ties.
func (l *Learner) SelectStrategy(degradationType string, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", ErrNoStrategy
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	best := candidates[0]
	bestScore := -1.0

	for _, candidate := range candidates {
		key := statsKey(candidate, degradationType)
		s := l.stats[key]

		theta := sampleBeta(l.rng, priorAlpha+float64(s.Successes), priorBeta+float64(s.Failures))

		if l.isAntiPatternLocked(s) {
			theta *= antiPatternPenaltyFactor
		}
		if s.TotalTrials() == 0 && theta < minExplorationRate {
			theta = minExplorationRate
		}

		if theta > bestScore {
			bestScore = theta
			best = candidate
		}
	}

	if l.metrics != nil {
		l.metrics.RecordSelection(best, degradationType)
	}
	l.logger.Debug("strategy selected", "strategy", best, "degradation_type", degradationType, "score", bestScore)
	return best, nil
}

func (l *Learner) isAntiPatternLocked(s StrategyStats) bool {
	if s.TotalTrials() < antiPatternMinSamples {
		return false
	}
	return s.failureRate() >= antiPatternCautionRate
}

// GetSuccessProbability returns the posterior mean for (strategy,
// degradationType).
func (l *Learner) GetSuccessProbability(strategy, degradationType string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := l.stats[statsKey(strategy, degradationType)]
	alpha := priorAlpha + float64(s.Successes)
	beta := priorBeta + float64(s.Failures)
	return alpha / (alpha + beta)
}

// GetConfidenceInterval returns the 95% credible interval for (strategy,
// degradationType) via the shared Newton-Raphson quantile implementation.
func (l *Learner) GetConfidenceInterval(strategy, degradationType string) (lo, hi float64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := l.stats[statsKey(strategy, degradationType)]
	alpha := priorAlpha + float64(s.Successes)
	beta := priorBeta + float64(s.Failures)
	return probabilistic.CredibleInterval(alpha, beta, 0.95)
}

// AntiPatterns scans every stats entry with totalTrials >= 10 and emits
// one AntiPattern per entry crossing the caution/avoid thresholds.
func (l *Learner) AntiPatterns() []AntiPattern {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.antiPatternsLocked()
}

func (l *Learner) antiPatternsLocked() []AntiPattern {
	var out []AntiPattern
	for _, s := range l.stats {
		if s.TotalTrials() < antiPatternMinSamples {
			continue
		}
		rate := s.failureRate()
		var rec string
		switch {
		case rate >= antiPatternAvoidRate:
			rec = "avoid"
		case rate >= antiPatternCautionRate:
			rec = "caution"
		default:
			continue
		}
		out = append(out, AntiPattern{
			Strategy:        s.Strategy,
			DegradationType: s.DegradationType,
			FailureRate:     rate,
			SampleSize:      s.TotalTrials(),
			Recommendation:  rec,
		})
		if l.metrics != nil {
			l.metrics.RecordAntiPattern()
		}
		l.logger.Warn("anti-pattern detected", "strategy", s.Strategy, "degradation_type", s.DegradationType, "failure_rate", rate, "recommendation", rec)
	}
	return out
}

// Summary is a snapshot of every stats entry, used for round-trip
// equality checks after serialize/restore.
type Summary struct {
	Stats        map[string]StrategyStats
	AntiPatterns []AntiPattern
}

// GetSummary returns a deep copy of the current learner state.
func (l *Learner) GetSummary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cp := make(map[string]StrategyStats, len(l.stats))
	for k, v := range l.stats {
		cp[k] = v
	}
	return Summary{Stats: cp, AntiPatterns: l.antiPatternsLocked()}
}

