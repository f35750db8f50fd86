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
	"fmt"
	"sort"
	"strings"
)

// TraceNode is one node of the forest BuildTraceTree produces: a span plus
// its children, already ordered by start time.
type TraceNode struct {
	Span       Span
	Children   []TraceNode
	DurationMs int64
}

// BuildTraceTree returns the forest of spans reachable under rootID. When
// rootID is empty, every span without a retained parent (parentless, or
// whose parent was evicted) becomes a tree root, so the flattened set of
// spans across the returned forest equals ExportTraces's output.
func (t *Tracer) BuildTraceTree(rootID string) []TraceNode {
	spans := t.ExportTraces()

	byParent := make(map[string][]Span, len(spans))
	byID := make(map[string]Span, len(spans))
	for _, s := range spans {
		byParent[s.ParentID] = append(byParent[s.ParentID], s)
		byID[s.ID] = s
	}
	for _, group := range byParent {
		sort.Slice(group, func(i, j int) bool {
			return group[i].StartTime.Before(group[j].StartTime)
		})
	}

	var build func(span Span) TraceNode
	build = func(span Span) TraceNode {
		children := byParent[span.ID]
		node := TraceNode{Span: span, DurationMs: span.DurationMs()}
		for _, c := range children {
			node.Children = append(node.Children, build(c))
		}
		return node
	}

	if rootID != "" {
		root, ok := byID[rootID]
		if !ok {
			return nil
		}
		return []TraceNode{build(root)}
	}

	// spans is in insertion order, which is also start-time order.
	var roots []TraceNode
	for _, s := range spans {
		if _, parentRetained := byID[s.ParentID]; s.ParentID == "" || !parentRetained {
			roots = append(roots, build(s))
		}
	}
	return roots
}

// FormatHuman renders a forest of trace nodes as indented ASCII with a
// status icon per span, derived from its "status" attribute ("ok"/"error";
// anything else, including absent, renders as pending/unknown).
func FormatHuman(forest []TraceNode) string {
	var b strings.Builder
	for i, root := range forest {
		writeNode(&b, root, "", i == len(forest)-1)
	}
	return b.String()
}

func writeNode(b *strings.Builder, node TraceNode, prefix string, last bool) {
	connector := "├── "
	childPrefix := prefix + "│   "
	if last {
		connector = "└── "
		childPrefix = prefix + "    "
	}

	fmt.Fprintf(b, "%s%s%s %s (%dms)\n", prefix, connector, statusIcon(node.Span), node.Span.Name, node.DurationMs)

	for i, child := range node.Children {
		writeNode(b, child, childPrefix, i == len(node.Children)-1)
	}
}

func statusIcon(s Span) string {
	switch s.Attributes["status"] {
	case "ok":
		return "[ok]"
	case "error":
		return "[error]"
	default:
		if !s.Done() {
			return "[running]"
		}
		return "[--]"
	}
}
