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
	"github.com/AleutianAI/AleutianTasks/services/planner/edgestore"
	"github.com/AleutianAI/AleutianTasks/services/planner/task"
)

// IsBlocked reports whether taskID has at least one incomplete direct
// blocker.
//
// Description:
//
//	Only direct arcs count: a task is blocked when some edge names it as
//	dependent and the blocking task has not completed. Transitive
//	blocking is a presentation concern served by Upstream. A blocker
//	that lookup cannot resolve counts as blocking; missing task data
//	must never silently unblock work.
func IsBlocked(taskID string, edges []edgestore.Edge, lookup task.Lookup) bool {
	for _, edge := range edges {
		if edge.DependentTaskID != taskID {
			continue
		}
		if blockerIncomplete(edge.BlockingTaskID, lookup) {
			return true
		}
	}
	return false
}

// BlockedBy returns the IDs of the tasks directly blocking taskID, in
// edge insertion order. Completed blockers are included; callers that
// need only active blockers filter with their own task data.
func BlockedBy(taskID string, edges []edgestore.Edge) []string {
	ids := make([]string, 0)
	for _, edge := range edges {
		if edge.DependentTaskID == taskID {
			ids = append(ids, edge.BlockingTaskID)
		}
	}
	return ids
}

// Blocks returns the IDs of the tasks taskID directly blocks, in edge
// insertion order.
func Blocks(taskID string, edges []edgestore.Edge) []string {
	ids := make([]string, 0)
	for _, edge := range edges {
		if edge.BlockingTaskID == taskID {
			ids = append(ids, edge.DependentTaskID)
		}
	}
	return ids
}

// DependencyCount returns the number of direct blockers of taskID.
func DependencyCount(taskID string, edges []edgestore.Edge) int {
	n := 0
	for _, edge := range edges {
		if edge.DependentTaskID == taskID {
			n++
		}
	}
	return n
}

// BlockedSet resolves the blocked flag for every task that appears as a
// dependent in edges.
//
// Description:
//
//	One pass over the edge set for renderers that need every task's
//	flag at once (board and list views). Tasks absent from the map have
//	no blockers at all. Each distinct blocking task's status is
//	resolved once.
//
// Outputs:
//   - map[string]bool: Dependent task ID → true when at least one
//     direct blocker is incomplete or unresolvable.
func BlockedSet(edges []edgestore.Edge, lookup task.Lookup) map[string]bool {
	incomplete := make(map[string]bool) // blocking task ID → still blocks
	set := make(map[string]bool)
	for _, edge := range edges {
		blocks, ok := incomplete[edge.BlockingTaskID]
		if !ok {
			blocks = blockerIncomplete(edge.BlockingTaskID, lookup)
			incomplete[edge.BlockingTaskID] = blocks
		}
		if blocks {
			set[edge.DependentTaskID] = true
		} else if _, seen := set[edge.DependentTaskID]; !seen {
			set[edge.DependentTaskID] = false
		}
	}
	return set
}

// blockerIncomplete reports whether the blocking task should block its
// dependents: true unless lookup resolves it to a completed task.
func blockerIncomplete(id string, lookup task.Lookup) bool {
	t, ok := lookup(id)
	if !ok {
		return true
	}
	return !t.Status.Completed()
}
