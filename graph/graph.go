// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the directed-graph abstraction every analyzer in
// this module builds on: adjacency and reverse adjacency over opaque entity
// IDs, rebuilt wholesale from an edge list rather than mutated in place.
package graph

import (
	"sort"

	"github.com/aleutian-labs/librarian-core/logging"
)

// Kind classifies the entity an ID refers to.
type Kind string

const (
	KindFunction Kind = "function"
	KindModule   Kind = "module"
	KindFile     Kind = "file"
)

// Edge is one directed dependency edge used to build a Graph.
type Edge struct {
	From string
	To   string
}

// Graph is an immutable directed multigraph over opaque string IDs. Self
// loops are permitted and count toward degrees. Graph is safe for
// concurrent reads by multiple goroutines since it is never mutated after
// NewGraph returns.
type Graph struct {
	forward  map[string][]string
	reverse  map[string][]string
	nodes    []string // sorted, stable iteration order
	edges    int
	selfLoop map[string]bool
}

// NewGraph builds a Graph from a batch edge list. Any ID mentioned only as
// an endpoint (never introduced elsewhere) still becomes a node. The
// reverse mapping is always the transpose of forward by construction, so
// the invariant y ∈ G[x] ⇔ x ∈ G⁻¹[y] holds for every returned Graph.
func NewGraph(edges []Edge) *Graph {
	forward := make(map[string][]string)
	reverse := make(map[string][]string)
	selfLoop := make(map[string]bool)
	seen := make(map[string]struct{})

	addNode := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			forward[id] = nil
			reverse[id] = nil
		}
	}

	for _, e := range edges {
		addNode(e.From)
		addNode(e.To)
		forward[e.From] = append(forward[e.From], e.To)
		reverse[e.To] = append(reverse[e.To], e.From)
		if e.From == e.To {
			selfLoop[e.From] = true
		}
	}

	nodes := make([]string, 0, len(seen))
	for id := range seen {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	for _, n := range nodes {
		sort.Strings(forward[n])
		sort.Strings(reverse[n])
	}

	logging.ForComponent("graph").Debug("graph built", "nodes", len(nodes), "edges", len(edges), "self_loops", len(selfLoop))

	return &Graph{
		forward:  forward,
		reverse:  reverse,
		nodes:    nodes,
		edges:    len(edges),
		selfLoop: selfLoop,
	}
}

// Neighbors returns the outgoing neighbor IDs of id in sorted order, or nil
// if id is unknown. Missing IDs never produce an error per §4.A.
func (g *Graph) Neighbors(id string) []string {
	return cloneStrings(g.forward[id])
}

// ReverseNeighbors returns the incoming neighbor IDs of id in sorted order.
func (g *Graph) ReverseNeighbors(id string) []string {
	return cloneStrings(g.reverse[id])
}

// Nodes returns every node ID in the graph in stable lexicographic order.
func (g *Graph) Nodes() []string {
	return cloneStrings(g.nodes)
}

// EdgeCount returns the total number of directed edges, counting parallel
// edges and self loops.
func (g *Graph) EdgeCount() int {
	return g.edges
}

// HasNode reports whether id is an endpoint of at least one edge passed to
// NewGraph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.forward[id]
	return ok
}

// SelfLoops returns the set of node IDs that have an edge to themselves.
// Both the SCC classifier and the feedback-loop detector need this, so it
// is computed once here instead of being recomputed by every caller.
func (g *Graph) SelfLoops() map[string]bool {
	out := make(map[string]bool, len(g.selfLoop))
	for id := range g.selfLoop {
		out[id] = true
	}
	return out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
