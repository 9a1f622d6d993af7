// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package edgestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	badger "github.com/AleutianAI/AleutianTasks/services/planner/storage/badger"
)

// -----------------------------------------------------------------------------
// Key Scheme
// -----------------------------------------------------------------------------
//
// Four keys per edge, written in one transaction:
//
//	edge:{edge_id}                        -> JSON(Edge)        primary record
//	edge_seq:{seq:016d}                   -> edge_id           insertion order
//	edge_blk:{blocking_task_id}:{edge_id} -> edge_id           outgoing index
//	edge_dep:{dependent_task_id}:{edge_id}-> edge_id           incoming index
//
// Task ids are colon-free (enforced by pkg/validation before edges reach
// the store), so index keys parse unambiguously. The %016d seq format
// keeps lexicographic order equal to numeric order.

const (
	edgeKeyPrefix = "edge:"
	seqKeyPrefix  = "edge_seq:"
	blkKeyPrefix  = "edge_blk:"
	depKeyPrefix  = "edge_dep:"
)

func edgeKey(edgeID string) []byte {
	return []byte(edgeKeyPrefix + edgeID)
}

func seqKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%016d", seqKeyPrefix, seq))
}

func blkKey(blockingTaskID, edgeID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", blkKeyPrefix, blockingTaskID, edgeID))
}

func depKey(dependentTaskID, edgeID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", depKeyPrefix, dependentTaskID, edgeID))
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Path is the directory for the edge database.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing and ephemeral runs.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Recommended for production; edges are the system of record.
	SyncWrites bool

	// GCInterval is how often the value log garbage collector runs.
	// Zero disables GC (tests). Ignored for in-memory stores.
	GCInterval time.Duration

	// Logger receives store lifecycle and error events.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Validate checks the configuration for usability.
func (c *BadgerConfig) Validate() error {
	if !c.InMemory && c.Path == "" {
		return errors.New("path is required unless in-memory")
	}
	return nil
}

// DefaultBadgerConfig returns production defaults for the given path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:       path,
		SyncWrites: true,
		GCInterval: 5 * time.Minute,
	}
}

// InMemoryBadgerConfig returns a configuration for tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{
		InMemory:   true,
		SyncWrites: false,
	}
}

// -----------------------------------------------------------------------------
// BadgerStore Implementation
// -----------------------------------------------------------------------------

// BadgerStore implements Store using BadgerDB.
//
// Description:
//
//	Persistent edge storage. Each Create writes the primary record plus
//	three index keys inside a single transaction, so a crash never
//	leaves a partial edge. The sequence counter is held in memory
//	(atomic) and re-derived from the highest edge_seq key at open, the
//	same way a write-ahead journal recovers its position.
//
// Thread Safety: Safe for concurrent use.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger

	// State
	seqNum atomic.Uint64
	closed atomic.Bool
}

// NewBadgerStore opens an edge store with the given configuration.
//
// Inputs:
//
//	config - Store configuration. Must pass Validate().
//
// Outputs:
//
//	*BadgerStore - Ready-to-use store. Caller must Close() it.
//	error - Non-nil if the database cannot be opened.
//
// Thread Safety: Safe for concurrent use.
func NewBadgerStore(config BadgerConfig) (*BadgerStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	s := &BadgerStore{
		logger: config.Logger.With(slog.String("component", "edgestore")),
	}

	dbConfig := badger.Config{
		Path:              config.Path,
		InMemory:          config.InMemory,
		SyncWrites:        config.SyncWrites,
		NumVersionsToKeep: 1,
		GCInterval:        config.GCInterval,
		GCDiscardRatio:    0.5,
		Logger:            config.Logger,
	}

	db, err := badger.OpenDB(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	s.db = db

	// Recover the sequence counter from existing edges
	if err := s.initSeqNum(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sequence number: %w", err)
	}

	s.logger.Info("edge store opened",
		slog.String("path", config.Path),
		slog.Bool("in_memory", config.InMemory),
		slog.Bool("sync_writes", config.SyncWrites),
		slog.Uint64("last_seq_num", s.seqNum.Load()))

	return s, nil
}

// initSeqNum scans for the highest existing sequence number.
func (s *BadgerStore) initSeqNum() error {
	prefix := []byte(seqKeyPrefix)
	var maxSeq uint64

	err := s.db.WithReadTxn(context.Background(), func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true // Start from highest key

		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek to the last key with our prefix
		seekKey := append(append([]byte{}, prefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		it.Seek(seekKey)

		if it.ValidForPrefix(prefix) {
			key := it.Item().Key()
			seqStr := string(key[len(prefix):])
			var seq uint64
			if _, err := fmt.Sscanf(seqStr, "%016d", &seq); err == nil {
				maxSeq = seq
			}
		}
		return nil
	})

	if err != nil {
		return err
	}

	s.seqNum.Store(maxSeq)
	return nil
}

// Create persists a new edge and assigns its Seq.
//
// Description:
//
//	Writes the primary record and all three index keys in a single
//	transaction. The edge's Seq field is populated on success.
//
// Thread Safety: Safe for concurrent use.
func (s *BadgerStore) Create(ctx context.Context, edge *Edge) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if edge == nil {
		return &StorageError{Op: "create", Err: errNilEdge}
	}

	seq := s.seqNum.Add(1)
	edge.Seq = seq

	payload, err := json.Marshal(edge)
	if err != nil {
		return &StorageError{Op: "create", Key: string(edgeKey(edge.ID)), Err: err}
	}

	err = s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		if err := txn.Set(edgeKey(edge.ID), payload); err != nil {
			return err
		}
		if err := txn.Set(seqKey(seq), []byte(edge.ID)); err != nil {
			return err
		}
		if err := txn.Set(blkKey(edge.BlockingTaskID, edge.ID), []byte(edge.ID)); err != nil {
			return err
		}
		return txn.Set(depKey(edge.DependentTaskID, edge.ID), []byte(edge.ID))
	})
	if err != nil {
		edge.Seq = 0
		return &StorageError{Op: "create", Key: string(edgeKey(edge.ID)), Err: err}
	}

	s.logger.Debug("edge created",
		slog.String("edge_id", edge.ID),
		slog.String("blocking_task", edge.BlockingTaskID),
		slog.String("dependent_task", edge.DependentTaskID),
		slog.Uint64("seq", seq))

	return nil
}

// Remove deletes the edge with the given id and returns it.
//
// Description:
//
//	Reads the primary record, then deletes it along with all three
//	index keys in the same transaction. Returns ErrNotFound if the id
//	is unknown.
//
// Thread Safety: Safe for concurrent use.
func (s *BadgerStore) Remove(ctx context.Context, edgeID string) (Edge, error) {
	if s.closed.Load() {
		return Edge{}, ErrClosed
	}

	var removed Edge
	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		edge, err := s.readEdge(txn, edgeID)
		if err != nil {
			return err
		}

		if err := txn.Delete(edgeKey(edgeID)); err != nil {
			return err
		}
		if err := txn.Delete(seqKey(edge.Seq)); err != nil {
			return err
		}
		if err := txn.Delete(blkKey(edge.BlockingTaskID, edgeID)); err != nil {
			return err
		}
		if err := txn.Delete(depKey(edge.DependentTaskID, edgeID)); err != nil {
			return err
		}

		removed = edge
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Edge{}, ErrNotFound
		}
		return Edge{}, &StorageError{Op: "remove", Key: string(edgeKey(edgeID)), Err: err}
	}

	s.logger.Debug("edge removed",
		slog.String("edge_id", edgeID),
		slog.String("blocking_task", removed.BlockingTaskID),
		slog.String("dependent_task", removed.DependentTaskID))

	return removed, nil
}

// Get returns the edge with the given id, or ErrNotFound.
func (s *BadgerStore) Get(ctx context.Context, edgeID string) (Edge, error) {
	if s.closed.Load() {
		return Edge{}, ErrClosed
	}

	var edge Edge
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		var err error
		edge, err = s.readEdge(txn, edgeID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Edge{}, ErrNotFound
		}
		return Edge{}, &StorageError{Op: "get", Key: string(edgeKey(edgeID)), Err: err}
	}
	return edge, nil
}

// ListAll returns every edge in ascending Seq order.
//
// Description:
//
//	Iterates the edge_seq index, which is keyed by zero-padded sequence
//	number, so key order is already insertion order.
//
// Thread Safety: Safe for concurrent use.
func (s *BadgerStore) ListAll(ctx context.Context) ([]Edge, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var edges []Edge
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		prefix := []byte(seqKeyPrefix)
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			edgeID, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			edge, err := s.readEdge(txn, string(edgeID))
			if err != nil {
				return err
			}
			edges = append(edges, edge)
		}
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: "list_all", Err: err}
	}
	return edges, nil
}

// ListByBlocking returns edges whose BlockingTaskID equals taskID.
func (s *BadgerStore) ListByBlocking(ctx context.Context, taskID string) ([]Edge, error) {
	return s.listByIndex(ctx, "list_by_blocking", blkKeyPrefix+taskID+":")
}

// ListByDependent returns edges whose DependentTaskID equals taskID.
func (s *BadgerStore) ListByDependent(ctx context.Context, taskID string) ([]Edge, error) {
	return s.listByIndex(ctx, "list_by_dependent", depKeyPrefix+taskID+":")
}

// listByIndex resolves an index prefix scan to full edges in Seq order.
func (s *BadgerStore) listByIndex(ctx context.Context, op, keyPrefix string) ([]Edge, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var edges []Edge
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		prefix := []byte(keyPrefix)
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			edgeID, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			edge, err := s.readEdge(txn, string(edgeID))
			if err != nil {
				return err
			}
			edges = append(edges, edge)
		}
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: op, Key: keyPrefix, Err: err}
	}

	// Index keys are ordered by edge id, not seq
	sort.Slice(edges, func(i, j int) bool { return edges[i].Seq < edges[j].Seq })
	return edges, nil
}

// Count returns the number of stored edges.
//
// Key-only scan over the primary prefix; values are not fetched.
func (s *BadgerStore) Count(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	count := 0
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		prefix := []byte(edgeKeyPrefix)
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, &StorageError{Op: "count", Err: err}
	}
	return count, nil
}

// Purge deletes every edge and resets the sequence counter.
//
// Description:
//
//	Irreversible. Used by the purge administration command to reset
//	the store. Concurrent writers are stalled while the drop runs.
//
// Thread Safety: Safe for concurrent use.
func (s *BadgerStore) Purge(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.db.DropAll(); err != nil {
		return &StorageError{Op: "purge", Err: err}
	}
	s.seqNum.Store(0)

	s.logger.Warn("edge store purged")
	return nil
}

// SizeBytes returns the on-disk size of the LSM tree and value log.
//
// Both values are approximate for in-memory stores.
func (s *BadgerStore) SizeBytes() (lsm, vlog int64) {
	return s.db.Size()
}

// Close releases the underlying database.
//
// Safe to call multiple times; only the first call closes the database.
func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.logger.Info("edge store closed",
		slog.Uint64("last_seq_num", s.seqNum.Load()))

	return s.db.Close()
}

// readEdge loads and decodes a primary record inside an open transaction.
func (s *BadgerStore) readEdge(txn *dgbadger.Txn, edgeID string) (Edge, error) {
	item, err := txn.Get(edgeKey(edgeID))
	if err != nil {
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return Edge{}, ErrNotFound
		}
		return Edge{}, err
	}

	var edge Edge
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &edge)
	})
	if err != nil {
		return Edge{}, fmt.Errorf("decode edge %s: %w", edgeID, err)
	}
	return edge, nil
}

// Ensure BadgerStore implements Store.
var _ Store = (*BadgerStore)(nil)
