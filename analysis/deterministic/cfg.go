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
	"strings"

	"github.com/aleutian-labs/librarian-core/storage"
)

// controlFlowKeywords is the lexical set that starts a new basic block.
// This analysis is intentionally language-agnostic and approximate; it
// must never fail on malformed input, only degrade to a coarser CFG.
var controlFlowKeywords = []string{
	"if", "else if", "else", "for", "while", "do", "switch", "case",
	"default", "try", "catch", "finally", "return", "throw", "break",
	"continue",
}

// BasicBlock is one block of a function's control-flow graph.
type BasicBlock struct {
	Index     int
	StartLine int
	EndLine   int
	IsEntry   bool
	IsExit    bool
	Statements []string
}

// CFGInput describes the function to build a control-flow graph for.
type CFGInput struct {
	FunctionID string
	StartLine  int
	Source     string // full source text; only zero-based lines [StartLine, EndLine) are considered
	EndLine    int
}

// CFG is the constructed control-flow graph for one function.
type CFG struct {
	FunctionID string
	Blocks     []BasicBlock
	Edges      []storage.CFGEdge
}

// BuildCFG splits input.Source into basic blocks at lines whose first
// non-whitespace token matches the control-flow lexical set, then emits
// sequential/branch/loop-back edges per §4.C. It never errors: malformed
// or empty input simply produces a single coarse block.
func BuildCFG(input CFGInput) CFG {
	lines := strings.Split(input.Source, "\n")
	start := input.StartLine
	if start < 0 {
		start = 0
	}
	end := input.EndLine
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return coarseCFG(input.FunctionID, start, end)
	}

	type blockAccum struct {
		startLine int
		keyword   string // control-flow keyword that opened this block, if any
		lines     []string
	}

	var accum []blockAccum
	cur := blockAccum{startLine: start}
	for i := start; i < end; i++ {
		raw := lines[i]
		trimmed := strings.TrimSpace(raw)
		kw := matchKeyword(trimmed)
		if kw != "" && len(cur.lines) > 0 {
			accum = append(accum, cur)
			cur = blockAccum{startLine: i}
		}
		cur.lines = append(cur.lines, raw)
		if kw != "" && cur.keyword == "" {
			cur.keyword = kw
		}
	}
	accum = append(accum, cur)

	blocks := make([]BasicBlock, len(accum))
	for i, a := range accum {
		endLine := a.startLine + len(a.lines) - 1
		if endLine < a.startLine {
			endLine = a.startLine
		}
		blocks[i] = BasicBlock{
			Index:      i,
			StartLine:  a.startLine,
			EndLine:    endLine,
			IsEntry:    i == 0,
			IsExit:     i == len(accum)-1,
			Statements: append([]string(nil), a.lines...),
		}
	}

	var edges []storage.CFGEdge
	for i, a := range accum {
		if i+1 < len(accum) {
			edges = append(edges, storage.CFGEdge{
				FunctionID: input.FunctionID,
				FromBlock:  i,
				ToBlock:    i + 1,
				Type:       storage.EdgeSequential,
				Confidence: 1.0,
			})
		}
		switch a.keyword {
		case "if":
			if i+1 < len(accum) {
				edges = append(edges, storage.CFGEdge{
					FunctionID: input.FunctionID,
					FromBlock:  i,
					ToBlock:    i + 1,
					Type:       storage.EdgeBranchTrue,
					Confidence: 0.8,
				})
			}
		case "for", "while", "do":
			edges = append(edges, storage.CFGEdge{
				FunctionID: input.FunctionID,
				FromBlock:  i,
				ToBlock:    i,
				Type:       storage.EdgeLoopBack,
				Confidence: 1.0,
			})
		}
	}

	return CFG{FunctionID: input.FunctionID, Blocks: blocks, Edges: edges}
}

func coarseCFG(functionID string, start, end int) CFG {
	return CFG{
		FunctionID: functionID,
		Blocks: []BasicBlock{{
			Index: 0, StartLine: start, EndLine: end, IsEntry: true, IsExit: true,
		}},
	}
}

func matchKeyword(trimmed string) string {
	for _, kw := range controlFlowKeywords {
		if trimmed == kw || strings.HasPrefix(trimmed, kw+" ") || strings.HasPrefix(trimmed, kw+"(") || strings.HasPrefix(trimmed, kw+":") {
			return kw
		}
	}
	return ""
}
