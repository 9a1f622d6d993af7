// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depgraph

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTasks/services/planner/edgestore"
	"github.com/AleutianAI/AleutianTasks/services/planner/task"
)

// Helper: service over a memory store and a fixed five-task source.
// charlie is completed, delta is in progress, the rest are pending.
func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *edgestore.MemoryStore) {
	t.Helper()

	store := edgestore.NewMemoryStore()
	source := task.NewStaticSource(
		task.Task{ID: "alpha", Status: task.StatusPending, Title: "Design schema"},
		task.Task{ID: "bravo", Status: task.StatusPending, Title: "Build API"},
		task.Task{ID: "charlie", Status: task.StatusCompleted, Title: "Provision cluster"},
		task.Task{ID: "delta", Status: task.StatusInProgress, Title: "Write migrations"},
		task.Task{ID: "echo", Status: task.StatusPending, Title: "Ship dashboard"},
	)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := NewService(store, source, logger, opts...)
	require.NoError(t, err)
	return svc, store
}

// TestNewService_NilChecks verifies constructor argument validation.
func TestNewService_NilChecks(t *testing.T) {
	store := edgestore.NewMemoryStore()
	source := task.NewStaticSource()

	_, err := NewService(nil, source, nil)
	assert.Error(t, err)

	_, err = NewService(store, nil, nil)
	assert.Error(t, err)

	svc, err := NewService(store, source, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

// TestService_AddDependency verifies the happy path populates the edge
// and persists it.
func TestService_AddDependency(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	edge, err := svc.AddDependency(ctx, "bravo", "alpha")
	require.NoError(t, err)

	_, err = uuid.Parse(edge.ID)
	assert.NoError(t, err)
	assert.Equal(t, "alpha", edge.BlockingTaskID)
	assert.Equal(t, "bravo", edge.DependentTaskID)
	assert.False(t, edge.CreatedAt.IsZero())
	assert.Equal(t, uint64(1), edge.Seq)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestService_AddDependency_InvalidIDs verifies malformed identifiers
// are rejected before any graph work.
func TestService_AddDependency_InvalidIDs(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddDependency(ctx, "with:colon", "alpha")
	assert.ErrorIs(t, err, ErrInvalidTaskID)

	_, err = svc.AddDependency(ctx, "bravo", "")
	assert.ErrorIs(t, err, ErrInvalidTaskID)

	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "add_dependency", depErr.Op)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// TestService_AddDependency_TaskNotFound verifies both sides must exist
// in the task source.
func TestService_AddDependency_TaskNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddDependency(ctx, "nomad", "alpha")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = svc.AddDependency(ctx, "bravo", "nomad")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// TestService_AddDependency_Rejections verifies self, duplicate, and
// cycle rejections leave storage untouched.
func TestService_AddDependency_Rejections(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddDependency(ctx, "alpha", "alpha")
	assert.ErrorIs(t, err, ErrSelfDependency)

	_, err = svc.AddDependency(ctx, "bravo", "alpha")
	require.NoError(t, err)

	_, err = svc.AddDependency(ctx, "bravo", "alpha")
	assert.ErrorIs(t, err, ErrDuplicateDependency)

	_, err = svc.AddDependency(ctx, "alpha", "bravo")
	assert.ErrorIs(t, err, ErrCycleDetected)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestService_AddDependency_LimitExceeded verifies the injected
// validator's limit is enforced.
func TestService_AddDependency_LimitExceeded(t *testing.T) {
	svc, _ := newTestService(t, WithServiceValidator(NewValidator(WithMaxDependencies(2))))
	ctx := context.Background()

	_, err := svc.AddDependency(ctx, "echo", "alpha")
	require.NoError(t, err)
	_, err = svc.AddDependency(ctx, "echo", "bravo")
	require.NoError(t, err)

	_, err = svc.AddDependency(ctx, "echo", "delta")
	assert.ErrorIs(t, err, ErrLimitExceeded)

	// The limit is per dependent, not global.
	_, err = svc.AddDependency(ctx, "bravo", "delta")
	assert.NoError(t, err)
}

// TestService_AddDependency_CancelledContext verifies a dead context
// surfaces as a context error, not a validation verdict.
func TestService_AddDependency_CancelledContext(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.AddDependency(ctx, "bravo", "alpha")
	assert.ErrorIs(t, err, context.Canceled)
}

// TestService_RemoveDependency verifies removal by edge id and the
// not-found mapping for unknown or malformed ids.
func TestService_RemoveDependency(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	edge, err := svc.AddDependency(ctx, "bravo", "alpha")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveDependency(ctx, edge.ID))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	err = svc.RemoveDependency(ctx, edge.ID)
	assert.ErrorIs(t, err, ErrEdgeNotFound)

	err = svc.RemoveDependency(ctx, "never-a-uuid")
	assert.ErrorIs(t, err, ErrEdgeNotFound)
}

// TestService_RemoveAllForTask verifies cascade removal counts edges on
// both sides and leaves unrelated edges alone.
func TestService_RemoveAllForTask(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddDependency(ctx, "bravo", "alpha") // alpha -> bravo
	require.NoError(t, err)
	_, err = svc.AddDependency(ctx, "delta", "bravo") // bravo -> delta
	require.NoError(t, err)
	_, err = svc.AddDependency(ctx, "echo", "alpha") // alpha -> echo
	require.NoError(t, err)

	removed, err := svc.RemoveAllForTask(ctx, "bravo")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	removed, err = svc.RemoveAllForTask(ctx, "bravo")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	_, err = svc.RemoveAllForTask(ctx, "with:colon")
	assert.ErrorIs(t, err, ErrInvalidTaskID)
}

// TestService_Queries verifies the blocked-status surface over a live
// store: a pending blocker blocks, a completed one does not.
func TestService_Queries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddDependency(ctx, "bravo", "alpha") // pending blocker
	require.NoError(t, err)
	_, err = svc.AddDependency(ctx, "delta", "charlie") // completed blocker
	require.NoError(t, err)

	blocked, err := svc.IsBlocked(ctx, "bravo")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = svc.IsBlocked(ctx, "delta")
	require.NoError(t, err)
	assert.False(t, blocked)

	blockers, err := svc.BlockedBy(ctx, "bravo")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, blockers)

	dependents, err := svc.Blocks(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo"}, dependents)

	n, err := svc.DependencyCount(ctx, "bravo")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	set, err := svc.BlockedSet(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"bravo": true, "delta": false}, set)
}

// TestService_Chains verifies traversals resolve task records through
// the source.
func TestService_Chains(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddDependency(ctx, "bravo", "alpha") // alpha -> bravo
	require.NoError(t, err)
	_, err = svc.AddDependency(ctx, "echo", "bravo") // bravo -> echo
	require.NoError(t, err)

	up, err := svc.Upstream(ctx, "echo")
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo", "alpha"}, chainIDs(up))
	assert.Equal(t, "Build API", up.Nodes[0].Task.Title)
	assert.Equal(t, task.StatusPending, up.Nodes[1].Task.Status)
	assert.Equal(t, 2, up.Depth)

	down, err := svc.Downstream(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo", "echo"}, chainIDs(down))

	shallow, err := svc.Upstream(ctx, "echo", WithMaxDepth(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo"}, chainIDs(shallow))
	assert.False(t, shallow.Truncated)
}

// TestService_AvailableBlockers verifies candidate filtering excludes
// self, duplicate, cycle, and malformed entries while preserving input
// order.
func TestService_AvailableBlockers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddDependency(ctx, "bravo", "alpha") // alpha -> bravo
	require.NoError(t, err)
	_, err = svc.AddDependency(ctx, "charlie", "bravo") // bravo -> charlie
	require.NoError(t, err)

	candidates := []task.Task{
		{ID: "alpha"},
		{ID: "bravo"},
		{ID: "charlie"},
		{ID: "delta"},
		{ID: "echo"},
		{ID: "with:colon"},
	}

	// alpha transitively blocks charlie, so alpha/bravo/charlie would
	// each close a cycle back onto alpha.
	available, err := svc.AvailableBlockers(ctx, "alpha", candidates)
	require.NoError(t, err)
	assert.Equal(t, []string{"delta", "echo"}, taskIDs(available))

	// echo has no edges: everything valid except echo itself works.
	available, err = svc.AvailableBlockers(ctx, "echo", candidates)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta"}, taskIDs(available))

	_, err = svc.AvailableBlockers(ctx, "with:colon", candidates)
	assert.ErrorIs(t, err, ErrInvalidTaskID)
}

// Helper: extract task IDs for order assertions.
func taskIDs(tasks []task.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

// TestService_NilContext verifies every operation rejects a nil context.
func TestService_NilContext(t *testing.T) {
	svc, _ := newTestService(t)
	var ctx context.Context

	_, err := svc.AddDependency(ctx, "bravo", "alpha")
	assert.ErrorIs(t, err, ErrNilContext)

	assert.ErrorIs(t, svc.RemoveDependency(ctx, "x"), ErrNilContext)

	_, err = svc.RemoveAllForTask(ctx, "alpha")
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = svc.AvailableBlockers(ctx, "alpha", nil)
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = svc.IsBlocked(ctx, "alpha")
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = svc.BlockedBy(ctx, "alpha")
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = svc.Blocks(ctx, "alpha")
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = svc.DependencyCount(ctx, "alpha")
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = svc.BlockedSet(ctx)
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = svc.Upstream(ctx, "alpha")
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = svc.Downstream(ctx, "alpha")
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = svc.CheckIntegrity(ctx)
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = svc.Stats(ctx)
	assert.ErrorIs(t, err, ErrNilContext)
}

// TestService_ConcurrentDuplicateAdds verifies racing writers of the
// same arc produce exactly one edge.
func TestService_ConcurrentDuplicateAdds(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	const writers = 8
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AddDependency(ctx, "bravo", "alpha")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrDuplicateDependency)
		}
	}
	assert.Equal(t, 1, succeeded)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
