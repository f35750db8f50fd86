// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// DomainEvent is the shape every event on the bridged event bus carries:
// a dotted type ("task.start", "query.end", ...) and an open payload.
type DomainEvent struct {
	Type string
	Data map[string]any
}

// recognizedFamilies are the event families the bridge maps to span
// lifecycles rather than treating as opaque instantaneous events.
var recognizedFamilies = map[string]bool{
	"query":        true,
	"bootstrap":    true,
	"indexing":     true,
	"engine":       true,
	"task":         true,
	"file":         true,
	"context-pack": true,
	"upgrade":      true,
}

// EventBridge subscribes a domain event bus to a Tracer, turning
// {type, data} events into span starts, ends, and attached events.
type EventBridge struct {
	tracer *Tracer

	mu     sync.Mutex
	active map[string]string // "{kind}:{id}" -> open span ID
}

// NewEventBridge wires a bridge that forwards recognized events to tracer.
func NewEventBridge(tracer *Tracer) *EventBridge {
	return &EventBridge{
		tracer: tracer,
		active: make(map[string]string),
	}
}

// Handle routes one domain event. Recognized-family events with a "start"
// phase open a span under "{family}:{id}"; "end"/"error" phases close it;
// any other phase is attached as an event on the open span if one exists.
// Unrecognized families, or events missing an "id", become an
// instantaneous span named "event:{type}" carrying the payload as
// attributes.
func (b *EventBridge) Handle(ctx context.Context, ev DomainEvent) {
	family, phase := splitEventType(ev.Type)
	id, hasID := stringField(ev.Data, "id")

	if !recognizedFamilies[family] || !hasID {
		b.instantaneous(ctx, ev)
		return
	}

	key := family + ":" + id
	attrs := attrsFromData(ev.Data)

	b.mu.Lock()
	defer b.mu.Unlock()

	switch phase {
	case "start":
		_, spanID := b.tracer.StartSpan(ctx, ev.Type, "", attrs)
		b.active[key] = spanID
	case "end", "complete", "success":
		if spanID, ok := b.active[key]; ok {
			b.tracer.SetAttributes(spanID, map[string]string{"status": "ok"})
			b.tracer.SetAttributes(spanID, attrs)
			b.tracer.EndSpan(spanID)
			delete(b.active, key)
		}
	case "error", "fail", "failed":
		if spanID, ok := b.active[key]; ok {
			b.tracer.SetAttributes(spanID, map[string]string{"status": "error"})
			b.tracer.SetAttributes(spanID, attrs)
			b.tracer.EndSpan(spanID)
			delete(b.active, key)
		}
	default:
		if spanID, ok := b.active[key]; ok {
			b.tracer.AddEvent(spanID, ev.Type, attrs)
		} else {
			b.instantaneousLocked(ctx, ev, attrs)
		}
	}
}

func (b *EventBridge) instantaneous(ctx context.Context, ev DomainEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.instantaneousLocked(ctx, ev, attrsFromData(ev.Data))
}

func (b *EventBridge) instantaneousLocked(ctx context.Context, ev DomainEvent, attrs map[string]string) {
	_, spanID := b.tracer.StartSpan(ctx, "event:"+ev.Type, "", attrs)
	b.tracer.EndSpan(spanID)
}

// splitEventType splits "family.phase" into its two parts. A type with no
// dot is treated as (type, "") so it matches none of the start/end/error
// phases: it becomes an event on the open span for its key if there is
// one, and an instantaneous span otherwise.
func splitEventType(t string) (family, phase string) {
	idx := strings.IndexByte(t, '.')
	if idx < 0 {
		return t, ""
	}
	return t[:idx], t[idx+1:]
}

func stringField(data map[string]any, key string) (string, bool) {
	v, ok := data[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func attrsFromData(data map[string]any) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
