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

	"github.com/AleutianAI/AleutianTasks/services/planner/edgestore"
)

// DefaultMaxDependencies is the maximum number of blocking tasks one
// dependent task may have unless overridden via WithMaxDependencies.
const DefaultMaxDependencies = 10

// Validator decides whether a proposed dependency arc may be added.
//
// Description:
//
//	Validator is pure: it inspects only the arguments it is given and
//	never touches storage. The facade loads the current edge snapshot
//	and passes it in; tests pass arbitrary slices.
//
// Thread Safety: Safe for concurrent use.
type Validator struct {
	maxDependencies int
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithMaxDependencies overrides the per-task dependency limit.
// Values <= 0 fall back to DefaultMaxDependencies.
func WithMaxDependencies(n int) ValidatorOption {
	return func(v *Validator) {
		if n <= 0 {
			n = DefaultMaxDependencies
		}
		v.maxDependencies = n
	}
}

// NewValidator creates a Validator with the default limits.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{maxDependencies: DefaultMaxDependencies}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// MaxDependencies returns the configured per-task dependency limit.
func (v *Validator) MaxDependencies() int {
	return v.maxDependencies
}

// CanAdd reports whether the arc blockingID → dependentID may be added
// to the graph described by edges.
//
// Description:
//
//	Checks run in a fixed order and the first violation wins:
//	self-reference, duplicate arc, dependency limit, cycle. The cycle
//	check walks breadth-first from blockingID through its own blockers;
//	if dependentID already blocks blockingID, directly or transitively,
//	the new arc would close a loop. The visited set guarantees
//	termination even when edges already contains a cycle from corrupted
//	storage.
//
// Inputs:
//   - ctx: Context for cancellation, polled periodically during the walk.
//   - blockingID: Task that must complete first.
//   - dependentID: Task that would wait.
//   - edges: Current edge snapshot, typically Store.ListAll output.
//
// Outputs:
//   - error: Nil when the arc is admissible. *DependencyError wrapping
//     ErrSelfDependency, ErrDuplicateDependency, ErrLimitExceeded or
//     ErrCycleDetected on violation; the context error if ctx expires.
func (v *Validator) CanAdd(ctx context.Context, blockingID, dependentID string, edges []edgestore.Edge) error {
	if ctx == nil {
		return ErrNilContext
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	const op = "can_add"

	if blockingID == dependentID {
		return NewDependencyError(op, dependentID, blockingID, ErrSelfDependency)
	}

	degree := 0
	for _, edge := range edges {
		if edge.DependentTaskID != dependentID {
			continue
		}
		if edge.BlockingTaskID == blockingID {
			return NewDependencyError(op, dependentID, blockingID, ErrDuplicateDependency)
		}
		degree++
	}
	if degree >= v.maxDependencies {
		return NewDependencyError(op, dependentID, blockingID, ErrLimitExceeded)
	}

	return v.wouldCycle(ctx, blockingID, dependentID, edges)
}

// wouldCycle walks from blockingID up through its blockers looking for
// dependentID.
func (v *Validator) wouldCycle(ctx context.Context, blockingID, dependentID string, edges []edgestore.Edge) error {
	blockers := blockersByDependent(edges)

	visited := map[string]bool{blockingID: true}
	queue := []string{blockingID}
	checkCounter := 0

	for len(queue) > 0 {
		checkCounter++
		if checkCounter%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		current := queue[0]
		queue = queue[1:]

		for _, id := range blockers[current] {
			if id == dependentID {
				return NewDependencyError("can_add", dependentID, blockingID, ErrCycleDetected)
			}
			if visited[id] {
				continue // Cycle detection
			}
			visited[id] = true
			queue = append(queue, id)
		}
	}
	return nil
}
