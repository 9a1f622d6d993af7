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
	"time"

	"github.com/AleutianAI/AleutianTasks/services/planner/edgestore"
	"github.com/AleutianAI/AleutianTasks/services/planner/task"
)

// Traversal limits. Defaults keep interactive chain views fast; the hard
// caps bound worst-case work on degenerate graphs.
const (
	// DefaultChainLimit is the default maximum number of chain nodes.
	DefaultChainLimit = 1000

	// MaxChainLimit is the hard cap on chain nodes per traversal.
	MaxChainLimit = 10000

	// DefaultMaxDepth is the default traversal depth.
	DefaultMaxDepth = 10

	// MaxChainDepth is the hard cap on traversal depth.
	MaxChainDepth = 100

	// contextCheckInterval is how often (in dequeued nodes) walks poll
	// ctx for cancellation.
	contextCheckInterval = 100
)

// Direction identifies which way a chain traversal walks the graph.
type Direction string

const (
	// DirectionUpstream walks toward blockers: the tasks that must
	// complete before the start task can run.
	DirectionUpstream Direction = "upstream"

	// DirectionDownstream walks toward dependents: the tasks waiting on
	// the start task.
	DirectionDownstream Direction = "downstream"
)

// ChainNode is one task discovered during a chain traversal.
type ChainNode struct {
	// TaskID is the discovered task's identifier.
	TaskID string `json:"task_id"`

	// Task is the resolved task record. Zero value when Missing is true.
	Task task.Task `json:"task"`

	// Missing is true when the task ID appears in an edge but the task
	// source cannot resolve it (deleted task or external data drift).
	Missing bool `json:"missing,omitempty"`

	// Depth is the shortest edge distance from the start task; direct
	// neighbors are depth 1.
	Depth int `json:"depth"`
}

// Chain is the result of an Upstream or Downstream traversal.
type Chain struct {
	// StartTaskID is the task the traversal started from. It is not
	// included in Nodes.
	StartTaskID string `json:"start_task_id"`

	// Direction records which way the traversal walked.
	Direction Direction `json:"direction"`

	// Nodes lists discovered tasks in breadth-first order: ascending
	// depth, ties broken by edge insertion order.
	Nodes []ChainNode `json:"nodes"`

	// Depth is the deepest level reached.
	Depth int `json:"depth"`

	// Truncated is true when the node limit or context cancellation
	// stopped the walk early. Reaching the requested depth is not
	// truncation.
	Truncated bool `json:"truncated,omitempty"`

	// Duration is how long the traversal took.
	Duration time.Duration `json:"duration"`
}

// ChainOption configures a chain traversal.
type ChainOption func(*chainOptions)

type chainOptions struct {
	maxDepth int
	limit    int
}

// WithMaxDepth sets the maximum traversal depth. Negative values fall
// back to DefaultMaxDepth; values above MaxChainDepth are clamped.
func WithMaxDepth(depth int) ChainOption {
	return func(o *chainOptions) {
		if depth < 0 {
			depth = DefaultMaxDepth
		}
		if depth > MaxChainDepth {
			depth = MaxChainDepth
		}
		o.maxDepth = depth
	}
}

// WithLimit sets the maximum number of chain nodes. Values <= 0 fall
// back to DefaultChainLimit; values above MaxChainLimit are clamped.
func WithLimit(limit int) ChainOption {
	return func(o *chainOptions) {
		if limit <= 0 {
			limit = DefaultChainLimit
		}
		if limit > MaxChainLimit {
			limit = MaxChainLimit
		}
		o.limit = limit
	}
}

func applyChainOptions(opts []ChainOption) chainOptions {
	options := chainOptions{
		maxDepth: DefaultMaxDepth,
		limit:    DefaultChainLimit,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Upstream returns the chain of tasks blocking taskID, directly or
// transitively.
//
// Description:
//
//	Iterative breadth-first walk from taskID through blocking arcs.
//	Each task appears once at its shortest distance: diamond shapes
//	collapse, and cycles in corrupted data terminate via the visited
//	set. A task with no edges yields an empty chain, not an error;
//	tasks live outside the engine and having no edges is the normal
//	state.
//
// Inputs:
//   - ctx: Context for cancellation, polled every contextCheckInterval
//     dequeues. Cancellation truncates the chain rather than failing it.
//   - taskID: Start task. Excluded from the result nodes.
//   - edges: Edge snapshot, typically Store.ListAll output (Seq order).
//   - lookup: Task resolver; unresolvable IDs yield Missing nodes.
//   - opts: WithMaxDepth, WithLimit.
//
// Outputs:
//   - *Chain: Discovered tasks in breadth-first order.
//   - error: ErrNilContext only; limits and cancellation set Truncated.
func Upstream(ctx context.Context, taskID string, edges []edgestore.Edge, lookup task.Lookup, opts ...ChainOption) (*Chain, error) {
	return traverse(ctx, taskID, DirectionUpstream, edges, lookup, opts)
}

// Downstream returns the chain of tasks waiting on taskID, directly or
// transitively. Semantics mirror Upstream with arcs followed forward.
func Downstream(ctx context.Context, taskID string, edges []edgestore.Edge, lookup task.Lookup, opts ...ChainOption) (*Chain, error) {
	return traverse(ctx, taskID, DirectionDownstream, edges, lookup, opts)
}

func traverse(ctx context.Context, taskID string, direction Direction, edges []edgestore.Edge, lookup task.Lookup, opts []ChainOption) (*Chain, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	options := applyChainOptions(opts)
	start := time.Now()

	var next map[string][]string
	if direction == DirectionUpstream {
		next = blockersByDependent(edges)
	} else {
		next = dependentsByBlocking(edges)
	}

	chain := &Chain{
		StartTaskID: taskID,
		Direction:   direction,
		Nodes:       make([]ChainNode, 0),
	}

	type queueItem struct {
		taskID string
		depth  int
	}
	queue := []queueItem{{taskID, 0}}
	visited := map[string]bool{taskID: true}
	checkCounter := 0

	for len(queue) > 0 {
		checkCounter++
		if checkCounter%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				chain.Truncated = true
				break
			}
		}

		item := queue[0]
		queue = queue[1:]

		if item.depth > 0 {
			node := ChainNode{TaskID: item.taskID, Depth: item.depth}
			if t, ok := lookup(item.taskID); ok {
				node.Task = t
			} else {
				node.Missing = true
			}
			chain.Nodes = append(chain.Nodes, node)
			if item.depth > chain.Depth {
				chain.Depth = item.depth
			}
			if len(chain.Nodes) >= options.limit {
				chain.Truncated = true
				break
			}
		}

		if item.depth >= options.maxDepth {
			continue
		}

		for _, id := range next[item.taskID] {
			if visited[id] {
				continue // Shortest depth already assigned
			}
			visited[id] = true
			queue = append(queue, queueItem{id, item.depth + 1})
		}
	}

	chain.Duration = time.Since(start)
	return chain, nil
}

// blockersByDependent returns each dependent task's blocking task IDs in
// edge insertion order.
func blockersByDependent(edges []edgestore.Edge) map[string][]string {
	m := make(map[string][]string)
	for _, edge := range edges {
		m[edge.DependentTaskID] = append(m[edge.DependentTaskID], edge.BlockingTaskID)
	}
	return m
}

// dependentsByBlocking returns each blocking task's dependent task IDs
// in edge insertion order.
func dependentsByBlocking(edges []edgestore.Edge) map[string][]string {
	m := make(map[string][]string)
	for _, edge := range edges {
		m[edge.BlockingTaskID] = append(m[edge.BlockingTaskID], edge.DependentTaskID)
	}
	return m
}
