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

import (
	"context"
	"sort"
)

// Reachable returns every node transitively reachable from source via
// breadth-first traversal. The source itself is included only if it is
// reachable via a non-trivial path (a cycle back to itself), never simply
// because it is the starting point. Missing sources return an empty
// slice, never an error.
func Reachable(ctx context.Context, g graphReader, source string) []string {
	visited := map[string]bool{source: true}
	queue := []string{source}
	var reached []string

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return sortedCopy(reached)
		default:
		}
		n := queue[0]
		queue = queue[1:]
		for _, next := range g.Neighbors(n) {
			if next == source {
				// Non-trivial path back to source: include it.
				if !containsStr(reached, source) {
					reached = append(reached, source)
				}
				continue
			}
			if !visited[next] {
				visited[next] = true
				reached = append(reached, next)
				queue = append(queue, next)
			}
		}
	}
	return sortedCopy(reached)
}

// ShortestPath returns the node sequence from source to target inclusive
// of both endpoints, found via breadth-first search, and whether a path
// exists at all. The degenerate case source == target returns a
// single-element path without traversing the graph.
func ShortestPath(ctx context.Context, g graphReader, source, target string) ([]string, bool) {
	if source == target {
		return []string{source}, true
	}

	visited := map[string]bool{source: true}
	parent := map[string]string{}
	queue := []string{source}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return nil, false
		default:
		}
		n := queue[0]
		queue = queue[1:]
		for _, next := range g.Neighbors(n) {
			if visited[next] {
				continue
			}
			visited[next] = true
			parent[next] = n
			if next == target {
				return reconstructPath(parent, source, target), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func reconstructPath(parent map[string]string, source, target string) []string {
	path := []string{target}
	cur := target
	for cur != source {
		cur = parent[cur]
		path = append(path, cur)
	}
	// reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
