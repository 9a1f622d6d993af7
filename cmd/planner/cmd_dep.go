// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianTasks/pkg/validation"
	"github.com/AleutianAI/AleutianTasks/services/planner/edgestore"
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

// depCmd is the parent dependency command.
var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage dependency edges between tasks",
	Long: `Commands for adding, removing, and listing dependency edges.

An edge records that one task blocks another. Every mutation is
validated: self-references, duplicates, per-task limits, and cycles
are rejected before anything is written.

Subcommands:
  add     - Record that a task blocks another
  remove  - Delete an edge by id
  list    - List edges, optionally scoped to one task

Examples:
  planner dep add build-api design-schema
  planner dep remove 4f8a7c2e-6c1d-4c07-9a1b-1d2f3e4a5b6c
  planner dep list build-api`,
}

// depAddCmd records a new dependency.
var depAddCmd = &cobra.Command{
	Use:   "add DEPENDENT_TASK BLOCKING_TASK",
	Short: "Record that BLOCKING_TASK blocks DEPENDENT_TASK",
	Long: `Record that BLOCKING_TASK must complete before DEPENDENT_TASK
can start.

The edge is rejected when it would reference a task unknown to the
task snapshot, duplicate an existing edge, exceed the per-task
dependency limit, or close a cycle.

Examples:
  planner dep add build-api design-schema
  planner dep add deploy build-api --json`,
	Args: cobra.ExactArgs(2),
	Run:  runDepAdd,
}

// depRemoveCmd deletes an edge by id.
var depRemoveCmd = &cobra.Command{
	Use:   "remove EDGE_ID",
	Short: "Delete a dependency edge by id",
	Long: `Delete the dependency edge with the given id.

Edge ids are printed by 'dep add' and 'dep list'.

Examples:
  planner dep remove 4f8a7c2e-6c1d-4c07-9a1b-1d2f3e4a5b6c`,
	Args: cobra.ExactArgs(1),
	Run:  runDepRemove,
}

// depListCmd lists edges.
var depListCmd = &cobra.Command{
	Use:   "list [TASK_ID]",
	Short: "List dependency edges",
	Long: `List dependency edges in insertion order.

With a task id, only edges touching that task are listed (both the
edges it depends on and the edges it blocks).

Examples:
  planner dep list
  planner dep list build-api
  planner dep list --json`,
	Args: cobra.MaximumNArgs(1),
	Run:  runDepList,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRemoveCmd)
	depCmd.AddCommand(depListCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

// runDepAdd records a dependency edge.
func runDepAdd(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dependentID, err := validation.SanitizeTaskID(args[0])
	if err != nil {
		outputError("Invalid dependent task id", err)
		os.Exit(exitError)
	}
	blockingID, err := validation.SanitizeTaskID(args[1])
	if err != nil {
		outputError("Invalid blocking task id", err)
		os.Exit(exitError)
	}

	app, err := newApp(ctx)
	if err != nil {
		outputError("Failed to start planner", err)
		os.Exit(exitError)
	}

	ctx, span, log := app.startCommand(ctx, "dep.add")

	edge, err := app.service.AddDependency(ctx, dependentID, blockingID)
	if err != nil {
		span.RecordError(err)
		span.End()
		outputError("Failed to add dependency", err)
		exitApp(ctx, app, exitError)
	}

	log.Info("dependency added",
		slog.String("edge_id", edge.ID),
		slog.String("pair", edge.Pair()))

	if jsonOutput {
		outputJSON(edge)
	} else {
		fmt.Printf("Added %s (edge %s)\n", edge.Pair(), edge.ID)
	}

	span.End()
	exitApp(ctx, app, exitSuccess)
}

// runDepRemove deletes an edge.
func runDepRemove(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	edgeID := strings.TrimSpace(args[0])

	app, err := newApp(ctx)
	if err != nil {
		outputError("Failed to start planner", err)
		os.Exit(exitError)
	}

	ctx, span, log := app.startCommand(ctx, "dep.remove")

	if err := app.service.RemoveDependency(ctx, edgeID); err != nil {
		span.RecordError(err)
		span.End()
		outputError("Failed to remove dependency", err)
		exitApp(ctx, app, exitError)
	}

	log.Info("dependency removed", slog.String("edge_id", edgeID))

	if jsonOutput {
		outputJSON(map[string]interface{}{
			"success": true,
			"edge_id": edgeID,
		})
	} else {
		fmt.Printf("Removed edge %s\n", edgeID)
	}

	span.End()
	exitApp(ctx, app, exitSuccess)
}

// edgeList is the JSON shape of a dep list result.
type edgeList struct {
	Count int              `json:"count"`
	Edges []edgestore.Edge `json:"edges"`
}

// runDepList lists edges, optionally scoped to one task.
func runDepList(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := newApp(ctx)
	if err != nil {
		outputError("Failed to start planner", err)
		os.Exit(exitError)
	}

	ctx, span, log := app.startCommand(ctx, "dep.list")

	var edges []edgestore.Edge
	if len(args) == 1 {
		taskID, err := validation.SanitizeTaskID(args[0])
		if err != nil {
			span.End()
			outputError("Invalid task id", err)
			exitApp(ctx, app, exitError)
		}
		edges, err = edgesTouching(ctx, app.store, taskID)
		if err != nil {
			span.RecordError(err)
			span.End()
			outputError("Failed to list dependencies", err)
			exitApp(ctx, app, exitError)
		}
	} else {
		edges, err = app.store.ListAll(ctx)
		if err != nil {
			span.RecordError(err)
			span.End()
			outputError("Failed to list dependencies", err)
			exitApp(ctx, app, exitError)
		}
	}

	log.Debug("edges listed", slog.Int("count", len(edges)))

	if jsonOutput {
		outputJSON(edgeList{Count: len(edges), Edges: edges})
	} else {
		outputEdgesText(edges)
	}

	span.End()
	exitApp(ctx, app, exitSuccess)
}

// edgesTouching returns edges where taskID is dependent or blocking,
// merged back into insertion order. A task cannot block itself, so the
// two index scans never return the same edge twice.
func edgesTouching(ctx context.Context, store *edgestore.BadgerStore, taskID string) ([]edgestore.Edge, error) {
	incoming, err := store.ListByDependent(ctx, taskID)
	if err != nil {
		return nil, err
	}
	outgoing, err := store.ListByBlocking(ctx, taskID)
	if err != nil {
		return nil, err
	}

	edges := append(incoming, outgoing...)
	sort.Slice(edges, func(i, j int) bool { return edges[i].Seq < edges[j].Seq })
	return edges, nil
}

// outputEdgesText prints edges in a fixed-width listing.
func outputEdgesText(edges []edgestore.Edge) {
	if len(edges) == 0 {
		fmt.Println("No dependencies.")
		return
	}

	for _, e := range edges {
		fmt.Printf("  %-36s  %s\n", e.ID, e.Pair())
	}
	fmt.Printf("\n%d edge(s)\n", len(edges))
}
