// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianTasks/services/planner/edgestore"
)

// newTestStore opens an in-memory edge store that logs nowhere.
func newTestStore(t *testing.T) *edgestore.BadgerStore {
	t.Helper()

	store, err := edgestore.NewBadgerStore(edgestore.BadgerConfig{
		InMemory: true,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// seedTestEdge writes an edge directly to the store.
func seedTestEdge(t *testing.T, store *edgestore.BadgerStore, blockingID, dependentID string) edgestore.Edge {
	t.Helper()

	edge := &edgestore.Edge{
		ID:              uuid.NewString(),
		BlockingTaskID:  blockingID,
		DependentTaskID: dependentID,
		CreatedAt:       time.Now().UTC(),
	}
	if err := store.Create(context.Background(), edge); err != nil {
		t.Fatalf("create edge: %v", err)
	}
	return *edge
}

func TestEdgesTouching(t *testing.T) {
	store := newTestStore(t)

	first := seedTestEdge(t, store, "alpha", "bravo")
	second := seedTestEdge(t, store, "bravo", "charlie")
	seedTestEdge(t, store, "delta", "echo")

	edges, err := edgesTouching(context.Background(), store, "bravo")
	if err != nil {
		t.Fatalf("edgesTouching() error = %v", err)
	}

	if len(edges) != 2 {
		t.Fatalf("edgesTouching() returned %d edges, want 2", len(edges))
	}

	// Insertion order: the edge bravo depends on came first.
	if edges[0].ID != first.ID {
		t.Errorf("edges[0].ID = %s, want %s", edges[0].ID, first.ID)
	}
	if edges[1].ID != second.ID {
		t.Errorf("edges[1].ID = %s, want %s", edges[1].ID, second.ID)
	}
}

func TestEdgesTouching_NoMatches(t *testing.T) {
	store := newTestStore(t)

	seedTestEdge(t, store, "alpha", "bravo")

	edges, err := edgesTouching(context.Background(), store, "zulu")
	if err != nil {
		t.Fatalf("edgesTouching() error = %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("edgesTouching() returned %d edges, want 0", len(edges))
	}
}
