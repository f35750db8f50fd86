// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hybrid

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrInvalidMetricsConfig mirrors recovery.ErrInvalidMetricsConfig's
// validation-error shape.
var ErrInvalidMetricsConfig = errors.New("hybrid: invalid metrics configuration")

// MetricsConfig controls the namespace/subsystem metrics are registered
// under, following recovery.MetricsConfig's shape.
type MetricsConfig struct {
	Namespace string
	Subsystem string
	Registry  prometheus.Registerer
}

// DefaultMetricsConfig returns the namespace/subsystem this package's
// metrics register under by default.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Namespace: "librarian", Subsystem: "hybrid"}
}

// PrometheusMetrics exposes feedback-loop classification, critical-loop,
// and health-score-computation counters/histograms. A nil
// *PrometheusMetrics is always safe to call methods on; callers treat
// metrics as optional, matching recovery.PrometheusMetrics.
type PrometheusMetrics struct {
	loopClassifications *prometheus.CounterVec
	criticalLoops       prometheus.Counter
	healthScores        prometheus.Histogram
}

// NewPrometheusMetrics registers the hybrid counters/histogram against
// cfg's registry (prometheus.DefaultRegisterer if unset).
func NewPrometheusMetrics(cfg MetricsConfig) (*PrometheusMetrics, error) {
	if cfg.Namespace == "" || cfg.Subsystem == "" {
		return nil, ErrInvalidMetricsConfig
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	loopClassifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "loop_classifications_total",
		Help:      "Count of feedback loops classified, by loop type and severity.",
	}, []string{"loop_type", "severity"})

	criticalLoops := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "critical_loops_detected_total",
		Help:      "Count of feedback loops classified as critical severity.",
	})

	healthScores := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "health_score",
		Help:      "Distribution of computed system-health scores (0-100).",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})

	for _, c := range []prometheus.Collector{loopClassifications, criticalLoops, healthScores} {
		if err := registry.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
		}
	}

	return &PrometheusMetrics{
		loopClassifications: loopClassifications,
		criticalLoops:       criticalLoops,
		healthScores:        healthScores,
	}, nil
}

// RecordLoopClassification increments the classification counter for
// (loopType, severity), and the critical-loops counter when severity is
// critical.
func (m *PrometheusMetrics) RecordLoopClassification(loopType, severity string) {
	if m == nil || m.loopClassifications == nil {
		return
	}
	m.loopClassifications.WithLabelValues(loopType, severity).Inc()
	if severity == "critical" && m.criticalLoops != nil {
		m.criticalLoops.Inc()
	}
}

// RecordHealthScore observes a computed system-health score.
func (m *PrometheusMetrics) RecordHealthScore(score int) {
	if m == nil || m.healthScores == nil {
		return
	}
	m.healthScores.Observe(float64(score))
}
