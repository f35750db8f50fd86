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
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrInvalidMetricsConfig mirrors the teacher's eval/telemetry config
// validation error shape.
var ErrInvalidMetricsConfig = errors.New("recovery: invalid metrics configuration")

// MetricsConfig controls the namespace/subsystem metrics are registered
// under, following eval/telemetry.PrometheusConfig's shape.
type MetricsConfig struct {
	Namespace string
	Subsystem string
	Registry  prometheus.Registerer
}

// DefaultMetricsConfig returns the namespace/subsystem this module's
// metrics register under by default.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Namespace: "librarian", Subsystem: "recovery"}
}

// PrometheusMetrics exposes strategy-selection and anti-pattern counters.
// A nil *PrometheusMetrics is always safe to call methods on; Learner
// treats metrics as optional.
type PrometheusMetrics struct {
	selections   *prometheus.CounterVec
	antiPatterns prometheus.Counter
}

// NewPrometheusMetrics registers the recovery counters against cfg's
// registry (prometheus.DefaultRegisterer if unset).
func NewPrometheusMetrics(cfg MetricsConfig) (*PrometheusMetrics, error) {
	if cfg.Namespace == "" || cfg.Subsystem == "" {
		return nil, ErrInvalidMetricsConfig
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	selections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "strategy_selections_total",
		Help:      "Count of Thompson-sampling strategy selections by strategy and degradation type.",
	}, []string{"strategy", "degradation_type"})

	antiPatterns := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "anti_patterns_detected_total",
		Help:      "Count of (strategy, degradation type) pairs flagged as anti-patterns.",
	})

	for _, c := range []prometheus.Collector{selections, antiPatterns} {
		if err := registry.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
		}
	}

	return &PrometheusMetrics{selections: selections, antiPatterns: antiPatterns}, nil
}

// RecordSelection increments the selections counter for (strategy,
// degradationType).
func (m *PrometheusMetrics) RecordSelection(strategy, degradationType string) {
	if m == nil || m.selections == nil {
		return
	}
	m.selections.WithLabelValues(strategy, degradationType).Inc()
}

// RecordAntiPattern increments the anti-pattern counter.
func (m *PrometheusMetrics) RecordAntiPattern() {
	if m == nil || m.antiPatterns == nil {
		return
	}
	m.antiPatterns.Inc()
}
