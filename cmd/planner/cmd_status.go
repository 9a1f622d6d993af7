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
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

// statusCmd reports blocked status.
var statusCmd = &cobra.Command{
	Use:   "status [TASK_ID]",
	Short: "Show whether tasks are blocked or ready",
	Long: `Show blocked status derived from direct dependency edges.

A task is blocked while any of its direct blockers is not completed.
Blockers missing from the task snapshot count as not completed, so an
edge to an unknown task keeps its dependent blocked rather than
silently releasing it.

With a task id, the command reports that task's blockers and
dependents. Without one, it lists every task that has dependency
edges and whether each is currently blocked.

Examples:
  planner status build-api
  planner status
  planner status --json`,
	Args: cobra.MaximumNArgs(1),
	Run:  runStatus,
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

// taskStatus is the JSON shape of a single-task status result.
type taskStatus struct {
	TaskID          string   `json:"task_id"`
	Blocked         bool     `json:"blocked"`
	BlockedBy       []string `json:"blocked_by"`
	Blocks          []string `json:"blocks"`
	DependencyCount int      `json:"dependency_count"`
}

// statusEntry is one row of the overview listing.
type statusEntry struct {
	TaskID  string `json:"task_id"`
	Blocked bool   `json:"blocked"`
}

// statusOverview is the JSON shape of the no-argument status result.
type statusOverview struct {
	Count        int           `json:"count"`
	BlockedCount int           `json:"blocked_count"`
	Tasks        []statusEntry `json:"tasks"`
}

// runStatus reports status for one task or for every tracked task.
func runStatus(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := newApp(ctx)
	if err != nil {
		outputError("Failed to start planner", err)
		os.Exit(exitError)
	}

	ctx, span, log := app.startCommand(ctx, "status")

	// Single task: blockers, dependents, and the blocked verdict.
	if len(args) == 1 {
		taskID, err := validation.SanitizeTaskID(args[0])
		if err != nil {
			span.End()
			outputError("Invalid task id", err)
			exitApp(ctx, app, exitError)
		}

		st := taskStatus{TaskID: taskID}
		st.Blocked, err = app.service.IsBlocked(ctx, taskID)
		if err == nil {
			st.BlockedBy, err = app.service.BlockedBy(ctx, taskID)
		}
		if err == nil {
			st.Blocks, err = app.service.Blocks(ctx, taskID)
		}
		if err == nil {
			st.DependencyCount, err = app.service.DependencyCount(ctx, taskID)
		}
		if err != nil {
			span.RecordError(err)
			span.End()
			outputError("Failed to resolve status", err)
			exitApp(ctx, app, exitError)
		}

		log.Debug("status resolved",
			slog.String("task_id", taskID),
			slog.Bool("blocked", st.Blocked))

		if jsonOutput {
			outputJSON(st)
		} else {
			outputTaskStatusText(st)
		}

		span.End()
		exitApp(ctx, app, exitSuccess)
	}

	// Overview: every task with dependency edges.
	set, err := app.service.BlockedSet(ctx)
	if err != nil {
		span.RecordError(err)
		span.End()
		outputError("Failed to resolve status", err)
		exitApp(ctx, app, exitError)
	}

	overview := statusOverview{
		Count: len(set),
		Tasks: make([]statusEntry, 0, len(set)),
	}
	for id, blocked := range set {
		if blocked {
			overview.BlockedCount++
		}
		overview.Tasks = append(overview.Tasks, statusEntry{TaskID: id, Blocked: blocked})
	}
	sort.Slice(overview.Tasks, func(i, j int) bool {
		return overview.Tasks[i].TaskID < overview.Tasks[j].TaskID
	})

	log.Debug("status overview resolved",
		slog.Int("tasks", overview.Count),
		slog.Int("blocked", overview.BlockedCount))

	if jsonOutput {
		outputJSON(overview)
	} else {
		outputOverviewText(overview)
	}

	span.End()
	exitApp(ctx, app, exitSuccess)
}

// outputTaskStatusText prints a single-task status report.
func outputTaskStatusText(st taskStatus) {
	verdict := "ready"
	if st.Blocked {
		verdict = "BLOCKED"
	}
	fmt.Printf("Task %s: %s\n", st.TaskID, verdict)

	if len(st.BlockedBy) > 0 {
		fmt.Printf("  Depends on: %s\n", strings.Join(st.BlockedBy, ", "))
	}
	if len(st.Blocks) > 0 {
		fmt.Printf("  Blocks:     %s\n", strings.Join(st.Blocks, ", "))
	}
	if len(st.BlockedBy) == 0 && len(st.Blocks) == 0 {
		fmt.Println("  No dependency edges.")
	}
}

// outputOverviewText prints the all-tasks status listing.
func outputOverviewText(overview statusOverview) {
	if overview.Count == 0 {
		fmt.Println("No tasks have dependency edges.")
		return
	}

	fmt.Printf("Tasks with dependencies (%d):\n\n", overview.Count)
	for _, entry := range overview.Tasks {
		verdict := "ready  "
		if entry.Blocked {
			verdict = "BLOCKED"
		}
		fmt.Printf("  %s  %s\n", verdict, entry.TaskID)
	}
	fmt.Printf("\n%d blocked, %d ready\n",
		overview.BlockedCount, overview.Count-overview.BlockedCount)
}
