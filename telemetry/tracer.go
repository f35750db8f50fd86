// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry implements the in-memory hierarchical tracer: span
// lifecycle, tree export, a human-readable renderer, and a bridge from
// domain events to spans. An injected go.opentelemetry.io/otel/trace.Tracer
// may additionally receive every span for export to a collector, but the
// in-memory model here is always authoritative.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	oteltracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/aleutian-labs/librarian-core/logging"
)

// Span is one node in a trace. EndTime is nil while the span is open.
type Span struct {
	ID         string
	Name       string
	ParentID   string
	StartTime  time.Time
	EndTime    *time.Time
	Attributes map[string]string
	Events     []SpanEvent
}

// SpanEvent is a timestamped, named point within a span's lifetime.
type SpanEvent struct {
	Name       string
	Time       time.Time
	Attributes map[string]string
}

// Done reports whether the span has been ended.
func (s Span) Done() bool { return s.EndTime != nil }

// DurationMs returns the span's duration in milliseconds, or the elapsed
// time so far if the span has not ended.
func (s Span) DurationMs() int64 {
	end := time.Now()
	if s.EndTime != nil {
		end = *s.EndTime
	}
	return end.Sub(s.StartTime).Milliseconds()
}

func cloneAttrs(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// Tracer holds the hierarchical span store. The zero value is not usable;
// construct with NewTracer.
type Tracer struct {
	mu       sync.Mutex
	spans    map[string]*Span
	order    []string // insertion order, oldest first, for eviction
	disabled bool
	maxSpans int

	otel     oteltrace.Tracer
	otelOpen map[string]oteltrace.Span

	logger *slog.Logger
}

const defaultMaxSpans = 10000

// Option configures a Tracer at construction.
type Option func(*Tracer)

// WithMaxSpans overrides the default retention cap of 10,000 spans. A
// non-positive value disables the cap.
func WithMaxSpans(n int) Option {
	return func(t *Tracer) { t.maxSpans = n }
}

// WithDisabled starts the tracer in its zero-overhead disabled mode.
func WithDisabled(disabled bool) Option {
	return func(t *Tracer) { t.disabled = disabled }
}

// WithOTelForwarding additionally forwards every span to tr, an
// OpenTelemetry tracer. Pass a noop tracer (the default when omitted) to
// keep OTel export off without changing the in-memory model.
func WithOTelForwarding(tr oteltrace.Tracer) Option {
	return func(t *Tracer) { t.otel = tr }
}

// WithLogger overrides the logger a Tracer threads through span-lifecycle
// events. Defaults to logging.ForComponent("telemetry") when omitted.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracer) { t.logger = logger }
}

// NewTracer constructs a Tracer with the default 10,000-span retention
// cap, enabled, and no OTel forwarding unless WithOTelForwarding is given.
func NewTracer(opts ...Option) *Tracer {
	t := &Tracer{
		spans:    make(map[string]*Span),
		maxSpans: defaultMaxSpans,
		otel:     oteltracenoop.NewTracerProvider().Tracer("librarian-core"),
		otelOpen: make(map[string]oteltrace.Span),
		logger:   logging.ForComponent("telemetry"),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logging.ForComponent("telemetry")
	}
	return t
}

// SetDisabled toggles the zero-overhead mode at runtime.
func (t *Tracer) SetDisabled(disabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = disabled
}

// StartSpan opens a new span named name under parentID (empty for a root
// span) with the given attributes. When disabled it returns ctx unchanged
// and an empty span ID, allocating nothing. Returns the (possibly
// OTel-updated) context and the new span's ID.
func (t *Tracer) StartSpan(ctx context.Context, name string, parentID string, attrs map[string]string) (context.Context, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.disabled {
		return ctx, ""
	}

	id := uuid.NewString()
	span := &Span{
		ID:         id,
		Name:       name,
		ParentID:   parentID,
		StartTime:  time.Now().UTC(),
		Attributes: cloneAttrs(attrs),
	}
	t.spans[id] = span
	t.order = append(t.order, id)
	t.evictLocked()

	if t.otel != nil {
		newCtx, oSpan := t.otel.Start(ctx, name)
		for k, v := range attrs {
			oSpan.SetAttributes(attribute.String(k, v))
		}
		t.otelOpen[id] = oSpan
		ctx = newCtx
	}

	return ContextWithSpanID(ctx, id), id
}

// evictLocked drops the oldest spans until len(spans) <= maxSpans. Caller
// must hold t.mu.
func (t *Tracer) evictLocked() {
	if t.maxSpans <= 0 {
		return
	}
	for len(t.order) > t.maxSpans {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.spans, oldest)
		t.logger.Debug("span evicted", "span_id", oldest, "retention_cap", t.maxSpans)
	}
}

// EndSpan closes spanID. Ending an already-closed or unknown span is a
// no-op, per the span lifecycle contract.
func (t *Tracer) EndSpan(spanID string) {
	if spanID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	span, ok := t.spans[spanID]
	if !ok || span.Done() {
		return
	}
	now := time.Now().UTC()
	span.EndTime = &now
	t.logger.Debug("span ended", "span_id", spanID, "name", span.Name, "duration_ms", span.DurationMs())

	if oSpan, ok := t.otelOpen[spanID]; ok {
		if span.Attributes["status"] == "error" {
			oSpan.SetStatus(otelcodes.Error, "")
		} else {
			oSpan.SetStatus(otelcodes.Ok, "")
		}
		oSpan.End()
		delete(t.otelOpen, spanID)
	}
}

// AddEvent appends a named, attributed event to spanID. A no-op for an
// unknown span or when disabled.
func (t *Tracer) AddEvent(spanID, name string, attrs map[string]string) {
	if spanID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	span, ok := t.spans[spanID]
	if !ok || t.disabled {
		return
	}
	span.Events = append(span.Events, SpanEvent{
		Name:       name,
		Time:       time.Now().UTC(),
		Attributes: cloneAttrs(attrs),
	})

	if oSpan, ok := t.otelOpen[spanID]; ok {
		opts := make([]attribute.KeyValue, 0, len(attrs))
		for k, v := range attrs {
			opts = append(opts, attribute.String(k, v))
		}
		oSpan.AddEvent(name, oteltrace.WithAttributes(opts...))
	}
}

// SetAttributes merges attrs into spanID's attribute map. A no-op for an
// unknown span or when disabled.
func (t *Tracer) SetAttributes(spanID string, attrs map[string]string) {
	if spanID == "" || len(attrs) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	span, ok := t.spans[spanID]
	if !ok || t.disabled {
		return
	}
	if span.Attributes == nil {
		span.Attributes = make(map[string]string, len(attrs))
	}
	for k, v := range attrs {
		span.Attributes[k] = v
	}

	if oSpan, ok := t.otelOpen[spanID]; ok {
		for k, v := range attrs {
			oSpan.SetAttributes(attribute.String(k, v))
		}
	}
}

// ExportTraces returns a snapshot of every retained span, oldest first.
func (t *Tracer) ExportTraces() []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Span, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.spans[id])
	}
	return out
}

// ExportedTrace is the millisecond-timestamped summary of a full trace.
type ExportedTrace struct {
	Spans       []Span
	RootSpanID  string // empty when no single root exists
	StartTimeMs int64
	EndTimeMs   int64
	DurationMs  int64
}

// ExportStructuredTrace computes the trace's span bounds and identifies a
// single root span when exactly one parentless span is retained.
func (t *Tracer) ExportStructuredTrace() ExportedTrace {
	spans := t.ExportTraces()
	if len(spans) == 0 {
		return ExportedTrace{}
	}

	var (
		start    = spans[0].StartTime
		end      = spans[0].StartTime
		roots    []string
		hasEndAt bool
	)
	for _, s := range spans {
		if s.StartTime.Before(start) {
			start = s.StartTime
		}
		if s.EndTime != nil {
			if !hasEndAt || s.EndTime.After(end) {
				end = *s.EndTime
				hasEndAt = true
			}
		}
		if s.ParentID == "" {
			roots = append(roots, s.ID)
		}
	}
	if !hasEndAt {
		end = start
	}

	result := ExportedTrace{
		Spans:       spans,
		StartTimeMs: start.UnixMilli(),
		EndTimeMs:   end.UnixMilli(),
		DurationMs:  end.Sub(start).Milliseconds(),
	}
	if len(roots) == 1 {
		result.RootSpanID = roots[0]
	}
	return result
}
