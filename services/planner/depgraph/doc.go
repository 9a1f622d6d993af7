// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package depgraph implements the task dependency graph engine.
//
// The engine maintains directed "blocking → dependent" arcs between tasks:
// a dependent task cannot start until every task blocking it completes.
// Service is the entry point; it composes an edgestore.Store (persistence),
// a task.Source (task records owned outside the engine), and a Validator
// (admission rules) into the operations the planner exposes:
//
//   - AddDependency, RemoveDependency, RemoveAllForTask mutate the graph
//   - IsBlocked, BlockedBy, Blocks, DependencyCount, BlockedSet derive
//     blocked status from direct arcs
//   - Upstream and Downstream walk transitive chains breadth-first
//   - CheckIntegrity and Stats inspect the stored graph as a whole
//
// Every mutation is validated before any write: self-references, duplicate
// arcs, dependency limits, and cycles are rejected with sentinel errors
// and leave storage untouched. The stored graph therefore stays acyclic
// unless data is corrupted out of band; reads tolerate such corruption
// (every traversal carries a visited set) and CheckIntegrity reports it.
//
// # Thread Safety
//
// Service is safe for concurrent use. Mutations serialize per dependent
// task; queries run lock-free against immutable snapshots.
//
// # Example
//
//	store := edgestore.NewMemoryStore()
//	svc, err := depgraph.NewService(store, source, logger)
//	edge, err := svc.AddDependency(ctx, "task-b", "task-a") // a blocks b
//	blocked, err := svc.IsBlocked(ctx, "task-b")            // true until a completes
package depgraph
