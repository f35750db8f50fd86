// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/aleutian-labs/librarian-core/apperrors"
	"github.com/aleutian-labs/librarian-core/graph"
	"github.com/aleutian-labs/librarian-core/logging"
	"github.com/aleutian-labs/librarian-core/storage"
)

// Gateway is the durable storage.Gateway implementation. Records are JSON
// encoded under keys namespaced by record kind, matching the teacher's
// convention of human-readable badger keys (see services/trace's
// session/trace key prefixes).
type Gateway struct {
	db     *DB
	logger *slog.Logger
}

// NewGateway wraps an already-open DB as a storage.Gateway, logging
// through logging.ForComponent("storage.badger").
func NewGateway(db *DB) *Gateway {
	return &Gateway{db: db, logger: logging.ForComponent("storage.badger")}
}

var _ storage.Gateway = (*Gateway)(nil)

func confidenceKey(id string, kind graph.Kind) []byte {
	return []byte(fmt.Sprintf("confidence:%s:%s", kind, id))
}

func stabilityKey(id string, kind graph.Kind) []byte {
	return []byte(fmt.Sprintf("stability:%s:%s", kind, id))
}

func sccPrefix(entityType graph.Kind) []byte {
	return []byte(fmt.Sprintf("scc:%s:", entityType))
}

func sccKey(entityType graph.Kind, entityID string) []byte {
	return append(sccPrefix(entityType), []byte(entityID)...)
}

func cfgEdgeKey(functionID string, from, to int) []byte {
	return []byte(fmt.Sprintf("cfg:%s:%d:%d", functionID, from, to))
}

func loopKey(loopID string) []byte {
	return []byte("loop:" + loopID)
}

func (g *Gateway) GetBayesianConfidence(ctx context.Context, id string, kind graph.Kind) (*storage.ConfidenceRecord, error) {
	var rec storage.ConfidenceRecord
	found := false
	err := g.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		item, err := txn.Get(confidenceKey(id, kind))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, apperrors.Wrap("badger.GetBayesianConfidence", err)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

func (g *Gateway) UpsertBayesianConfidence(ctx context.Context, record storage.ConfidenceRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return apperrors.Wrap("badger.UpsertBayesianConfidence", err)
	}
	err = g.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Set(confidenceKey(record.EntityID, record.Kind), payload)
	})
	if err != nil {
		return apperrors.Wrap("badger.UpsertBayesianConfidence", err)
	}
	return nil
}

func (g *Gateway) GetStabilityMetrics(ctx context.Context, id string, kind graph.Kind) (*storage.StabilityMetrics, error) {
	var rec storage.StabilityMetrics
	found := false
	err := g.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		item, err := txn.Get(stabilityKey(id, kind))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, apperrors.Wrap("badger.GetStabilityMetrics", err)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

func (g *Gateway) UpsertStabilityMetrics(ctx context.Context, record storage.StabilityMetrics) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return apperrors.Wrap("badger.UpsertStabilityMetrics", err)
	}
	err = g.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Set(stabilityKey(record.EntityID, record.Kind), payload)
	})
	if err != nil {
		return apperrors.Wrap("badger.UpsertStabilityMetrics", err)
	}
	return nil
}

// UpsertSCCEntries deletes every existing entry for entityType then writes
// the new set inside a single transaction, giving the atomic-replace
// semantics §4.B requires.
func (g *Gateway) UpsertSCCEntries(ctx context.Context, entityType graph.Kind, entries []storage.SCCEntry) error {
	err := g.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		prefix := sccPrefix(entityType)
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		var staleKeys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			staleKeys = append(staleKeys, k)
		}
		it.Close()
		for _, k := range staleKeys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for _, e := range entries {
			payload, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := txn.Set(sccKey(entityType, e.EntityID), payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap("badger.UpsertSCCEntries", err)
	}
	return nil
}

func (g *Gateway) UpsertCFGEdges(ctx context.Context, edges []storage.CFGEdge) error {
	err := g.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		for _, e := range edges {
			payload, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := txn.Set(cfgEdgeKey(e.FunctionID, e.FromBlock, e.ToBlock), payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap("badger.UpsertCFGEdges", err)
	}
	return nil
}

// UpsertFeedbackLoop persists loop under loop.LoopID, assigning a random
// ID when the caller leaves one unset (analyzers always set a
// deterministic one; this only matters for direct Gateway callers).
func (g *Gateway) UpsertFeedbackLoop(ctx context.Context, loop storage.FeedbackLoop) error {
	if loop.LoopID == "" {
		loop.LoopID = uuid.NewString()
		g.logger.Debug("feedback loop assigned generated ID", "loop_id", loop.LoopID)
	}
	payload, err := json.Marshal(loop)
	if err != nil {
		return apperrors.Wrap("badger.UpsertFeedbackLoop", err)
	}
	err = g.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Set(loopKey(loop.LoopID), payload)
	})
	if err != nil {
		return apperrors.Wrap("badger.UpsertFeedbackLoop", err)
	}
	return nil
}

func (g *Gateway) Edges(ctx context.Context, fromID, toID string, edgeTypes []storage.EdgeType) ([]storage.CFGEdge, error) {
	typeSet := make(map[storage.EdgeType]bool, len(edgeTypes))
	for _, t := range edgeTypes {
		typeSet[t] = true
	}

	var out []storage.CFGEdge
	err := g.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("cfg:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e storage.CFGEdge
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return err
			}
			if fromID != "" && e.FunctionID != fromID && e.FunctionID != toID {
				continue
			}
			if len(typeSet) > 0 && !typeSet[e.Type] {
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap("badger.Edges", err)
	}
	return out, nil
}

