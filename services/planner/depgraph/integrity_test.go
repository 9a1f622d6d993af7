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
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTasks/services/planner/edgestore"
)

// Helper: write an edge straight into the store, bypassing validation.
// This is how out-of-band corruption enters a real deployment.
func seedEdge(t *testing.T, store *edgestore.MemoryStore, blockingID, dependentID string) edgestore.Edge {
	t.Helper()

	edge := &edgestore.Edge{
		ID:              uuid.NewString(),
		BlockingTaskID:  blockingID,
		DependentTaskID: dependentID,
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, store.Create(context.Background(), edge))
	return *edge
}

// Helper: filter a report's findings by kind.
func findingsOfKind(report *IntegrityReport, kind FindingKind) []Finding {
	out := make([]Finding, 0)
	for _, f := range report.Findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// TestCheckIntegrity_Clean verifies a graph built through the service
// scans clean.
func TestCheckIntegrity_Clean(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddDependency(ctx, "bravo", "alpha")
	require.NoError(t, err)
	_, err = svc.AddDependency(ctx, "delta", "charlie")
	require.NoError(t, err)

	report, err := svc.CheckIntegrity(ctx)
	require.NoError(t, err)

	assert.True(t, report.Clean())
	assert.Equal(t, 2, report.EdgesScanned)
	assert.Empty(t, report.Findings)
}

// TestCheckIntegrity_SelfLoop verifies a seeded self-loop is reported.
// A self-loop is also a one-node cycle, so both kinds appear.
func TestCheckIntegrity_SelfLoop(t *testing.T) {
	svc, store := newTestService(t)
	edge := seedEdge(t, store, "alpha", "alpha")

	report, err := svc.CheckIntegrity(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Clean())

	loops := findingsOfKind(report, FindingSelfLoop)
	require.Len(t, loops, 1)
	assert.Equal(t, "alpha", loops[0].TaskID)
	assert.Equal(t, []string{edge.ID}, loops[0].EdgeIDs)

	assert.Len(t, findingsOfKind(report, FindingCycle), 1)
}

// TestCheckIntegrity_DuplicateArc verifies two edges over the same pair
// are reported together.
func TestCheckIntegrity_DuplicateArc(t *testing.T) {
	svc, store := newTestService(t)
	first := seedEdge(t, store, "alpha", "bravo")
	second := seedEdge(t, store, "alpha", "bravo")

	report, err := svc.CheckIntegrity(context.Background())
	require.NoError(t, err)

	dupes := findingsOfKind(report, FindingDuplicateArc)
	require.Len(t, dupes, 1)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, dupes[0].EdgeIDs)
	assert.Contains(t, dupes[0].Detail, "alpha -> bravo")
}

// TestCheckIntegrity_Cycle verifies a seeded two-cycle is reported once
// with both edges.
func TestCheckIntegrity_Cycle(t *testing.T) {
	svc, store := newTestService(t)
	first := seedEdge(t, store, "alpha", "bravo")
	second := seedEdge(t, store, "bravo", "alpha")

	report, err := svc.CheckIntegrity(context.Background())
	require.NoError(t, err)

	cycles := findingsOfKind(report, FindingCycle)
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, cycles[0].EdgeIDs)
	assert.Contains(t, cycles[0].Detail, "cycle through")
}

// TestCheckIntegrity_DegreeExceeded verifies a dependent over the limit
// is reported with every contributing edge.
func TestCheckIntegrity_DegreeExceeded(t *testing.T) {
	svc, store := newTestService(t, WithServiceValidator(NewValidator(WithMaxDependencies(2))))
	seedEdge(t, store, "alpha", "echo")
	seedEdge(t, store, "bravo", "echo")
	seedEdge(t, store, "charlie", "echo")

	report, err := svc.CheckIntegrity(context.Background())
	require.NoError(t, err)

	degrees := findingsOfKind(report, FindingDegreeExceeded)
	require.Len(t, degrees, 1)
	assert.Equal(t, "echo", degrees[0].TaskID)
	assert.Len(t, degrees[0].EdgeIDs, 3)
}

// TestCheckIntegrity_DanglingTask verifies edge endpoints the source
// cannot resolve are reported per task.
func TestCheckIntegrity_DanglingTask(t *testing.T) {
	svc, store := newTestService(t)
	edge := seedEdge(t, store, "ghost", "bravo")

	report, err := svc.CheckIntegrity(context.Background())
	require.NoError(t, err)

	dangling := findingsOfKind(report, FindingDanglingTask)
	require.Len(t, dangling, 1)
	assert.Equal(t, "ghost", dangling[0].TaskID)
	assert.Equal(t, []string{edge.ID}, dangling[0].EdgeIDs)
}

// TestScanCycles_DiamondClean verifies converging paths are not
// mistaken for a cycle.
func TestScanCycles_DiamondClean(t *testing.T) {
	edges := []edgestore.Edge{
		testEdge("alpha", "bravo", 1),
		testEdge("alpha", "charlie", 2),
		testEdge("bravo", "delta", 3),
		testEdge("charlie", "delta", 4),
	}
	assert.Empty(t, scanCycles(edges))
}

// TestScanCycles_DisjointCycles verifies each independent cycle yields
// its own finding.
func TestScanCycles_DisjointCycles(t *testing.T) {
	edges := []edgestore.Edge{
		testEdge("alpha", "bravo", 1),
		testEdge("bravo", "alpha", 2),
		testEdge("charlie", "delta", 3),
		testEdge("delta", "charlie", 4),
	}
	assert.Len(t, scanCycles(edges), 2)
}

// TestStats verifies the summary over a known graph.
func TestStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddDependency(ctx, "bravo", "alpha") // blocked: alpha pending
	require.NoError(t, err)
	_, err = svc.AddDependency(ctx, "bravo", "charlie") // charlie completed
	require.NoError(t, err)
	_, err = svc.AddDependency(ctx, "echo", "alpha") // blocked: alpha pending
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.EdgeCount)
	assert.Equal(t, 4, stats.TaskCount)
	assert.Equal(t, 2, stats.MaxInDegree)
	assert.Equal(t, 2, stats.BlockedTasks)
}

// TestStats_Empty verifies zero values on an empty store.
func TestStats_Empty(t *testing.T) {
	svc, _ := newTestService(t)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}
