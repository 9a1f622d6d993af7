// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package edgestore persists dependency edges for the planner.
//
// An edge is a directed arc "blocking → dependent": the dependent task
// cannot start until the blocking task completes. The store is plain
// CRUD plus index lookups; it performs no graph validation and trusts
// the caller (the depgraph service) to have validated the arc before
// Create is called.
//
// Two implementations are provided:
//
//   - BadgerStore: embedded persistent storage, the system of record
//   - MemoryStore: in-process map, for tests and ephemeral runs
//
// Both honor the same ordering contract: ListAll returns edges in
// insertion order (ascending Seq), so traversal tie-breaking is stable
// across restarts and across backends.
package edgestore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Model
// -----------------------------------------------------------------------------

// Edge is one persisted dependency arc.
//
// Description:
//
//	BlockingTaskID must complete before DependentTaskID may start.
//	ID is an engine-assigned UUIDv4; Seq is a store-assigned monotonic
//	sequence number that fixes insertion order. Neither field is ever
//	reused, even after removal.
type Edge struct {
	// ID uniquely identifies the edge (UUIDv4).
	ID string `json:"id"`

	// BlockingTaskID is the task that must complete first.
	BlockingTaskID string `json:"blocking_task_id"`

	// DependentTaskID is the task that waits.
	DependentTaskID string `json:"dependent_task_id"`

	// CreatedAt is the creation time in UTC.
	CreatedAt time.Time `json:"created_at"`

	// Seq is the store-assigned insertion sequence number.
	// Assigned by Create; callers must leave it zero.
	Seq uint64 `json:"seq"`
}

// Pair returns the (blocking, dependent) arc as a printable string.
func (e Edge) Pair() string {
	return fmt.Sprintf("%s -> %s", e.BlockingTaskID, e.DependentTaskID)
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotFound is returned when no edge exists for the requested id.
	ErrNotFound = errors.New("edge not found")

	// ErrClosed is returned when an operation is attempted on a closed store.
	ErrClosed = errors.New("edge store is closed")
)

// errNilEdge guards Create against a nil record.
var errNilEdge = errors.New("nil edge")

// StorageError wraps a backend failure with operation context.
//
// Use errors.As to detect storage failures and errors.Is to reach the
// underlying cause:
//
//	var serr *edgestore.StorageError
//	if errors.As(err, &serr) {
//	    log.Error("storage failed", "op", serr.Op, "key", serr.Key)
//	}
type StorageError struct {
	// Op is the store operation that failed ("create", "remove", ...).
	Op string

	// Key is the storage key involved, if any.
	Key string

	// Err is the underlying backend error.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("edge store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("edge store %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// -----------------------------------------------------------------------------
// Store Interface
// -----------------------------------------------------------------------------

// Store persists dependency edges.
//
// Description:
//
//	Pure CRUD plus index lookups. No validation: callers are expected
//	to have checked self-reference, duplicates, limits, and cycles
//	before calling Create.
//
// Ordering contract: ListAll, ListByBlocking, and ListByDependent return
// edges in ascending Seq order (insertion order).
//
// Thread Safety: implementations must be safe for concurrent use.
type Store interface {
	// Create persists a new edge and assigns its Seq.
	// The edge's ID, task ids, and CreatedAt must be set by the caller.
	Create(ctx context.Context, edge *Edge) error

	// Remove deletes the edge with the given id.
	// Returns ErrNotFound if no such edge exists.
	Remove(ctx context.Context, edgeID string) (Edge, error)

	// Get returns the edge with the given id, or ErrNotFound.
	Get(ctx context.Context, edgeID string) (Edge, error)

	// ListAll returns every edge in ascending Seq order.
	ListAll(ctx context.Context) ([]Edge, error)

	// ListByBlocking returns edges whose BlockingTaskID equals taskID.
	ListByBlocking(ctx context.Context, taskID string) ([]Edge, error)

	// ListByDependent returns edges whose DependentTaskID equals taskID.
	ListByDependent(ctx context.Context, taskID string) ([]Edge, error)

	// Count returns the number of stored edges.
	Count(ctx context.Context) (int, error)

	// Close releases store resources. Subsequent calls fail with ErrClosed.
	Close() error
}
