// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package deterministic

import "sort"

// DegreeInfo is the in/out degree of one node.
type DegreeInfo struct {
	NodeID   string
	OutDegree int
	InDegree  int
}

// AdjacencyStats summarizes the shape of a graph: degree distribution,
// density, and classification of isolated/leaf/root nodes.
type AdjacencyStats struct {
	Degrees       []DegreeInfo
	Isolated      []string // in=0, out=0
	Leaves        []string // out=0, in>0
	Roots         []string // in=0, out>0
	Density       float64
	AvgOutDegree  float64
	AvgInDegree   float64
	MaxOutDegree  string // node ID; ties broken by first-encountered
	MaxInDegree   string
}

// ComputeAdjacencyStats walks every node of g once to produce AdjacencyStats.
// Nodes are visited in lexicographic order so tie-breaking on max degree is
// reproducible.
func ComputeAdjacencyStats(g interface {
	Nodes() []string
	Neighbors(id string) []string
	ReverseNeighbors(id string) []string
}) AdjacencyStats {
	nodes := append([]string(nil), g.Nodes()...)
	sort.Strings(nodes)

	n := len(nodes)
	stats := AdjacencyStats{}
	if n == 0 {
		return stats
	}

	var totalOut, totalIn, edgeCount int
	maxOut, maxIn := -1, -1

	for _, id := range nodes {
		out := len(g.Neighbors(id))
		in := len(g.ReverseNeighbors(id))
		stats.Degrees = append(stats.Degrees, DegreeInfo{NodeID: id, OutDegree: out, InDegree: in})

		totalOut += out
		totalIn += in
		edgeCount += out

		switch {
		case out == 0 && in == 0:
			stats.Isolated = append(stats.Isolated, id)
		case out == 0 && in > 0:
			stats.Leaves = append(stats.Leaves, id)
		case in == 0 && out > 0:
			stats.Roots = append(stats.Roots, id)
		}

		if out > maxOut {
			maxOut = out
			stats.MaxOutDegree = id
		}
		if in > maxIn {
			maxIn = in
			stats.MaxInDegree = id
		}
	}

	stats.AvgOutDegree = float64(totalOut) / float64(n)
	stats.AvgInDegree = float64(totalIn) / float64(n)
	if n >= 2 {
		stats.Density = float64(edgeCount) / float64(n*(n-1))
	}
	return stats
}
