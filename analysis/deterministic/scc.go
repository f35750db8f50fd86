// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package deterministic implements the non-probabilistic graph analyses:
// strongly connected components, reachability, shortest path, adjacency
// statistics, and lexical control-flow-graph construction. Every
// operation here is total — missing nodes yield empty results, never an
// error, per the failure semantics of §4.C.
package deterministic

import (
	"context"
	"log/slog"
	"sort"

	"github.com/aleutian-labs/librarian-core/logging"
)

// Component is one strongly connected component of the graph.
type Component struct {
	// Entities lists the member node IDs in the order they were popped
	// off the Tarjan stack (not sorted).
	Entities []string
	// RootID is the lexicographic-min member ID, fixed so persistence is
	// reproducible across runs.
	RootID string
	// Cyclic is true for components of size >= 2, or size 1 with a
	// self-loop.
	Cyclic bool
}

// graphReader is satisfied by graph.Graph; declared narrowly so this
// package doesn't need to import graph at all.
type graphReader interface {
	Nodes() []string
	Neighbors(id string) []string
	SelfLoops() map[string]bool
}

// TarjanSCC computes the strongly connected components of g using an
// iterative depth-first traversal (explicit stack, phase-driven state
// machine) so arbitrarily deep graphs never overflow the Go call stack.
// Components are returned in reverse topological order of the
// condensation, which is exactly the order Tarjan's algorithm pops them
// in. Nodes are iterated in lexicographic order so repeated runs over the
// same graph are reproducible. A nil logger defaults to
// logging.ForComponent("deterministic").
func TarjanSCC(ctx context.Context, g graphReader, logger *slog.Logger) []Component {
	if logger == nil {
		logger = logging.ForComponent("deterministic")
	}
	index := 0
	nodeIndex := make(map[string]int)
	lowLink := make(map[string]int)
	onStack := make(map[string]bool)
	stack := make([]string, 0)
	selfLoops := g.SelfLoops()

	var components []Component

	type frame struct {
		nodeID    string
		edgeIndex int
		phase     int // 0=init, 1=process edges, 2=post-child, 3=finalize
		childID   string
	}

	strongConnect := func(start string) {
		callStack := []frame{{nodeID: start, phase: 0}}
		for len(callStack) > 0 {
			select {
			case <-ctx.Done():
				return
			default:
			}

			f := &callStack[len(callStack)-1]
			switch f.phase {
			case 0:
				nodeIndex[f.nodeID] = index
				lowLink[f.nodeID] = index
				index++
				stack = append(stack, f.nodeID)
				onStack[f.nodeID] = true
				f.phase = 1

			case 1:
				neighbors := g.Neighbors(f.nodeID)
				advanced := false
				for f.edgeIndex < len(neighbors) {
					to := neighbors[f.edgeIndex]
					f.edgeIndex++
					if _, visited := nodeIndex[to]; !visited {
						f.phase = 2
						f.childID = to
						callStack = append(callStack, frame{nodeID: to, phase: 0})
						advanced = true
						break
					} else if onStack[to] {
						if nodeIndex[to] < lowLink[f.nodeID] {
							lowLink[f.nodeID] = nodeIndex[to]
						}
					}
				}
				if advanced {
					continue
				}
				f.phase = 3

			case 2:
				if lowLink[f.childID] < lowLink[f.nodeID] {
					lowLink[f.nodeID] = lowLink[f.childID]
				}
				f.phase = 1

			case 3:
				if lowLink[f.nodeID] == nodeIndex[f.nodeID] {
					var members []string
					for {
						n := len(stack) - 1
						w := stack[n]
						stack = stack[:n]
						onStack[w] = false
						members = append(members, w)
						if w == f.nodeID {
							break
						}
					}
					components = append(components, buildComponent(members, selfLoops))
				}
				callStack = callStack[:len(callStack)-1]
			}
		}
	}

	nodes := append([]string(nil), g.Nodes()...)
	sort.Strings(nodes)
	for _, n := range nodes {
		select {
		case <-ctx.Done():
			return components
		default:
		}
		if _, visited := nodeIndex[n]; !visited {
			strongConnect(n)
		}
	}

	cyclic := 0
	for _, c := range components {
		if c.Cyclic {
			cyclic++
		}
	}
	logger.Debug("tarjan scc computed", "components", len(components), "cyclic", cyclic)

	return components
}

func buildComponent(members []string, selfLoops map[string]bool) Component {
	root := members[0]
	for _, m := range members[1:] {
		if m < root {
			root = m
		}
	}
	cyclic := len(members) >= 2 || (len(members) == 1 && selfLoops[members[0]])
	return Component{Entities: members, RootID: root, Cyclic: cyclic}
}
