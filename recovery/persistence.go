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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateVersion is the only version serialize/restore currently supports.
const StateVersion = 1

// persistedStats mirrors StrategyStats with string timestamps so the
// wire format is exactly ISO-8601, per §6.
type persistedStats struct {
	Strategy          string  `json:"strategy"`
	DegradationType   string  `json:"degradationType"`
	Successes         int     `json:"successes"`
	Failures          int     `json:"failures"`
	TotalFitnessDelta float64 `json:"totalFitnessDelta"`
	LastUpdated       string  `json:"lastUpdated"`
}

type persistedAntiPattern struct {
	Strategy        string  `json:"strategy"`
	DegradationType string  `json:"degradationType"`
	FailureRate     float64 `json:"failureRate"`
	SampleSize      int     `json:"sampleSize"`
	Recommendation  string  `json:"recommendation"`
}

type persistedState struct {
	Version      int                             `json:"version"`
	Stats        map[string]persistedStats        `json:"stats"`
	AntiPatterns []persistedAntiPattern            `json:"antiPatterns"`
	CreatedAt    string                          `json:"createdAt"`
	UpdatedAt    string                          `json:"updatedAt"`
}

// Serialize emits the learner's state as the JSON blob described in §6.
func (l *Learner) Serialize() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state := persistedState{
		Version:   StateVersion,
		Stats:     make(map[string]persistedStats, len(l.stats)),
		CreatedAt: l.createdAt.Format(time.RFC3339Nano),
		UpdatedAt: l.updatedAt.Format(time.RFC3339Nano),
	}
	for key, s := range l.stats {
		state.Stats[key] = persistedStats{
			Strategy:          s.Strategy,
			DegradationType:   s.DegradationType,
			Successes:         s.Successes,
			Failures:          s.Failures,
			TotalFitnessDelta: s.TotalFitnessDelta,
			LastUpdated:       s.LastUpdated.Format(time.RFC3339Nano),
		}
	}
	for _, ap := range l.antiPatternsLocked() {
		state.AntiPatterns = append(state.AntiPatterns, persistedAntiPattern{
			Strategy:        ap.Strategy,
			DegradationType: ap.DegradationType,
			FailureRate:     ap.FailureRate,
			SampleSize:      ap.SampleSize,
			Recommendation:  ap.Recommendation,
		})
	}
	return json.MarshalIndent(state, "", "  ")
}

// Restore builds a new Learner from a blob previously produced by
// Serialize. Unknown versions are rejected; clock skew in the input
// timestamps is tolerated (they are parsed best-effort and zero-valued on
// failure rather than rejecting the whole blob).
func Restore(data []byte) (*Learner, error) {
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("recovery: restore: %w", err)
	}
	if state.Version != StateVersion {
		return nil, fmt.Errorf("recovery: restore: unsupported version %d", state.Version)
	}

	l := NewLearner()
	for key, ps := range state.Stats {
		l.stats[key] = StrategyStats{
			Strategy:          ps.Strategy,
			DegradationType:   ps.DegradationType,
			Successes:         ps.Successes,
			Failures:          ps.Failures,
			TotalFitnessDelta: ps.TotalFitnessDelta,
			LastUpdated:       parseTimeTolerant(ps.LastUpdated),
		}
	}
	l.createdAt = parseTimeTolerant(state.CreatedAt)
	l.updatedAt = parseTimeTolerant(state.UpdatedAt)
	return l, nil
}

func parseTimeTolerant(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// StatePath returns the learner-state file path for a workspace root, per
// §6: {workspaceRoot}/.librarian/recovery_learner_state.json.
func StatePath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".librarian", "recovery_learner_state.json")
}

// SaveToWorkspace serializes the learner and atomically replaces the
// state file at StatePath(workspaceRoot): write to a temp file, fsync,
// rename, matching §6's atomic-replace requirement.
func (l *Learner) SaveToWorkspace(workspaceRoot string) error {
	path := StatePath(workspaceRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("recovery: save: %w", err)
	}

	payload, err := l.Serialize()
	if err != nil {
		return fmt.Errorf("recovery: save: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".recovery_learner_state-*.tmp")
	if err != nil {
		return fmt.Errorf("recovery: save: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("recovery: save: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("recovery: save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("recovery: save: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("recovery: save: %w", err)
	}
	return nil
}

// LoadFromWorkspace reads and restores the learner state at
// StatePath(workspaceRoot). A missing file is not an error; it returns a
// fresh Learner.
func LoadFromWorkspace(workspaceRoot string) (*Learner, error) {
	data, err := os.ReadFile(StatePath(workspaceRoot))
	if os.IsNotExist(err) {
		return NewLearner(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("recovery: load: %w", err)
	}
	return Restore(data)
}
