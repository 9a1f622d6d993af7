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
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryStore_Purge verifies purge empties the store and resets Seq.
func TestMemoryStore_Purge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Create(ctx, newTestEdge("a", "b")))
	require.NoError(t, store.Purge(ctx))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	e := newTestEdge("x", "y")
	require.NoError(t, store.Create(ctx, e))
	assert.Equal(t, uint64(1), e.Seq)
}

// TestMemoryStore_ContextCancelled verifies cancelled contexts short-circuit.
func TestMemoryStore_ContextCancelled(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Create(ctx, newTestEdge("a", "b"))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.ListAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestMemoryStore_ConcurrentCreates verifies sequence uniqueness under
// parallel writers.
func TestMemoryStore_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	const writers = 32

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Create(ctx, newTestEdge("hub", fmt.Sprintf("t-%d", i)))
		}(i)
	}
	wg.Wait()

	edges, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, edges, writers)

	seen := make(map[uint64]bool, writers)
	for _, e := range edges {
		assert.False(t, seen[e.Seq], "duplicate seq %d", e.Seq)
		seen[e.Seq] = true
	}
}
