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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianTasks/pkg/validation"
	"github.com/AleutianAI/AleutianTasks/services/planner/depgraph"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	purgeAll   bool
	purgeForce bool
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

// purgeCmd removes edges in bulk.
var purgeCmd = &cobra.Command{
	Use:   "purge [TASK_ID]",
	Short: "Remove every edge touching a task",
	Long: `Remove every dependency edge touching the given task, both the
edges it depends on and the edges it blocks. Run this when a task is
deleted in the owning application, so no edges dangle.

With --all the entire edge store is wiped instead. That is a
destructive operation and requires --force.

Examples:
  planner purge build-api
  planner purge --all --force`,
	Args: cobra.MaximumNArgs(1),
	Run:  runPurge,
}

// statsCmd summarizes the stored graph.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the dependency graph",
	Long: `Summarize the stored graph: edge and task counts, the largest
dependency fan-in, how many tasks are currently blocked, and the
on-disk size of the edge store.

Examples:
  planner stats
  planner stats --json`,
	Args: cobra.NoArgs,
	Run:  runStats,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	purgeCmd.Flags().BoolVar(&purgeAll, "all", false,
		"Wipe the entire edge store")
	purgeCmd.Flags().BoolVar(&purgeForce, "force", false,
		"Confirm a destructive --all purge")
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

// runPurge removes edges for one task, or everything with --all.
func runPurge(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch {
	case purgeAll && len(args) > 0:
		outputError("Invalid arguments", errors.New("--all does not take a task id"))
		os.Exit(exitError)
	case !purgeAll && len(args) == 0:
		outputError("Invalid arguments", errors.New("a task id is required unless --all is set"))
		os.Exit(exitError)
	case purgeAll && !purgeForce:
		outputError("Refusing to purge", errors.New("--all deletes every edge; pass --force to confirm"))
		os.Exit(exitError)
	}

	app, err := newApp(ctx)
	if err != nil {
		outputError("Failed to start planner", err)
		os.Exit(exitError)
	}

	ctx, span, log := app.startCommand(ctx, "purge")

	if purgeAll {
		if err := app.store.Purge(ctx); err != nil {
			span.RecordError(err)
			span.End()
			outputError("Failed to purge edge store", err)
			exitApp(ctx, app, exitError)
		}

		log.Info("edge store purged")

		if jsonOutput {
			outputJSON(map[string]interface{}{"success": true, "purged": "all"})
		} else {
			fmt.Println("Purged every edge.")
		}

		span.End()
		exitApp(ctx, app, exitSuccess)
	}

	taskID, err := validation.SanitizeTaskID(args[0])
	if err != nil {
		span.End()
		outputError("Invalid task id", err)
		exitApp(ctx, app, exitError)
	}

	removed, err := app.service.RemoveAllForTask(ctx, taskID)
	if err != nil {
		span.RecordError(err)
		span.End()
		outputError("Failed to purge task", err)
		exitApp(ctx, app, exitError)
	}

	log.Info("task edges purged",
		slog.String("task_id", taskID),
		slog.Int("removed", removed))

	if jsonOutput {
		outputJSON(map[string]interface{}{
			"success": true,
			"task_id": taskID,
			"removed": removed,
		})
	} else {
		fmt.Printf("Removed %d edge(s) touching %s\n", removed, taskID)
	}

	span.End()
	exitApp(ctx, app, exitSuccess)
}

// statsResult is the JSON shape of the stats command.
type statsResult struct {
	depgraph.Stats
	SnapshotTasks int   `json:"snapshot_tasks"`
	LSMBytes      int64 `json:"lsm_bytes"`
	VlogBytes     int64 `json:"vlog_bytes"`
}

// runStats summarizes the stored graph.
func runStats(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := newApp(ctx)
	if err != nil {
		outputError("Failed to start planner", err)
		os.Exit(exitError)
	}

	ctx, span, log := app.startCommand(ctx, "stats")

	stats, err := app.service.Stats(ctx)
	if err != nil {
		span.RecordError(err)
		span.End()
		outputError("Failed to collect stats", err)
		exitApp(ctx, app, exitError)
	}

	snapshot, err := app.source.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.End()
		outputError("Failed to read task snapshot", err)
		exitApp(ctx, app, exitError)
	}

	lsm, vlog := app.store.SizeBytes()
	result := statsResult{
		Stats:         stats,
		SnapshotTasks: len(snapshot),
		LSMBytes:      lsm,
		VlogBytes:     vlog,
	}

	log.Debug("stats collected",
		slog.Int("edges", stats.EdgeCount),
		slog.Int("tasks", stats.TaskCount))

	if jsonOutput {
		outputJSON(result)
	} else {
		fmt.Printf("Edges:          %d\n", result.EdgeCount)
		fmt.Printf("Tasks in graph: %d\n", result.TaskCount)
		fmt.Printf("Snapshot tasks: %d\n", result.SnapshotTasks)
		fmt.Printf("Max in-degree:  %d\n", result.MaxInDegree)
		fmt.Printf("Blocked tasks:  %d\n", result.BlockedTasks)
		fmt.Printf("Store size:     %d bytes (LSM) + %d bytes (value log)\n",
			result.LSMBytes, result.VlogBytes)
	}

	span.End()
	exitApp(ctx, app, exitSuccess)
}
