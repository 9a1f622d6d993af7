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
	"sort"
	"sync"
)

// MemoryStore implements Store with an in-process map.
//
// Description:
//
//	Same contract as BadgerStore, no persistence. Intended for unit
//	tests and ephemeral runs where durability does not matter.
//
// Thread Safety: Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	edges  map[string]Edge
	seqNum uint64
	closed bool
}

// NewMemoryStore creates an empty in-memory edge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		edges: make(map[string]Edge),
	}
}

// Create persists a new edge and assigns its Seq.
func (s *MemoryStore) Create(ctx context.Context, edge *Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if edge == nil {
		return &StorageError{Op: "create", Err: errNilEdge}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.seqNum++
	edge.Seq = s.seqNum
	s.edges[edge.ID] = *edge
	return nil
}

// Remove deletes the edge with the given id and returns it.
func (s *MemoryStore) Remove(ctx context.Context, edgeID string) (Edge, error) {
	if err := ctx.Err(); err != nil {
		return Edge{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Edge{}, ErrClosed
	}

	edge, ok := s.edges[edgeID]
	if !ok {
		return Edge{}, ErrNotFound
	}
	delete(s.edges, edgeID)
	return edge, nil
}

// Get returns the edge with the given id, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, edgeID string) (Edge, error) {
	if err := ctx.Err(); err != nil {
		return Edge{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Edge{}, ErrClosed
	}

	edge, ok := s.edges[edgeID]
	if !ok {
		return Edge{}, ErrNotFound
	}
	return edge, nil
}

// ListAll returns every edge in ascending Seq order.
func (s *MemoryStore) ListAll(ctx context.Context) ([]Edge, error) {
	return s.list(ctx, func(Edge) bool { return true })
}

// ListByBlocking returns edges whose BlockingTaskID equals taskID.
func (s *MemoryStore) ListByBlocking(ctx context.Context, taskID string) ([]Edge, error) {
	return s.list(ctx, func(e Edge) bool { return e.BlockingTaskID == taskID })
}

// ListByDependent returns edges whose DependentTaskID equals taskID.
func (s *MemoryStore) ListByDependent(ctx context.Context, taskID string) ([]Edge, error) {
	return s.list(ctx, func(e Edge) bool { return e.DependentTaskID == taskID })
}

// Count returns the number of stored edges.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}
	return len(s.edges), nil
}

// Purge deletes every edge and resets the sequence counter.
func (s *MemoryStore) Purge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.edges = make(map[string]Edge)
	s.seqNum = 0
	return nil
}

// Close marks the store closed. Subsequent operations fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) list(ctx context.Context, keep func(Edge) bool) ([]Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var out []Edge
	for _, e := range s.edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
