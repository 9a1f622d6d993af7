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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianTasks/pkg/validation"
	"github.com/AleutianAI/AleutianTasks/services/planner/depgraph"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	chainUp    bool
	chainDown  bool
	chainDepth int
	chainLimit int
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

// chainCmd walks the transitive dependency chain of a task.
var chainCmd = &cobra.Command{
	Use:   "chain TASK_ID",
	Short: "Walk the transitive dependency chain of a task",
	Long: `Walk the dependency graph outward from a task, breadth-first.

Upstream (the default) answers "what must finish before this task can
start": its blockers, their blockers, and so on. Downstream answers
"what is waiting on this task": every task that directly or
transitively depends on it.

Each result line carries the distance from the start task. Tasks
referenced by an edge but absent from the task snapshot are marked
missing.

Examples:
  planner chain build-api
  planner chain design-schema --down
  planner chain build-api --depth 2 --limit 50
  planner chain deploy --json`,
	Args: cobra.ExactArgs(1),
	Run:  runChain,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	chainCmd.Flags().BoolVar(&chainUp, "up", false,
		"Traverse upstream toward blockers (default)")
	chainCmd.Flags().BoolVar(&chainDown, "down", false,
		"Traverse downstream toward dependents")
	chainCmd.Flags().IntVar(&chainDepth, "depth", depgraph.DefaultMaxDepth,
		"Maximum traversal depth (0 = no expansion)")
	chainCmd.Flags().IntVar(&chainLimit, "limit", depgraph.DefaultChainLimit,
		"Maximum tasks in the chain before truncation")
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

// runChain executes the chain traversal.
func runChain(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if chainUp && chainDown {
		outputError("Invalid flags", errors.New("--up and --down are mutually exclusive"))
		os.Exit(exitError)
	}

	taskID, err := validation.SanitizeTaskID(args[0])
	if err != nil {
		outputError("Invalid task id", err)
		os.Exit(exitError)
	}

	app, err := newApp(ctx)
	if err != nil {
		outputError("Failed to start planner", err)
		os.Exit(exitError)
	}

	ctx, span, log := app.startCommand(ctx, "chain")

	opts := []depgraph.ChainOption{
		depgraph.WithMaxDepth(chainDepth),
		depgraph.WithLimit(chainLimit),
	}

	var chain *depgraph.Chain
	if chainDown {
		chain, err = app.service.Downstream(ctx, taskID, opts...)
	} else {
		chain, err = app.service.Upstream(ctx, taskID, opts...)
	}
	if err != nil {
		span.RecordError(err)
		span.End()
		outputError("Failed to walk chain", err)
		exitApp(ctx, app, exitError)
	}

	log.Debug("chain walked",
		slog.String("task_id", chain.StartTaskID),
		slog.String("direction", string(chain.Direction)),
		slog.Int("nodes", len(chain.Nodes)),
		slog.Bool("truncated", chain.Truncated))

	if jsonOutput {
		outputJSON(chain)
	} else {
		outputChainText(chain)
	}

	span.End()
	exitApp(ctx, app, exitSuccess)
}

// outputChainText prints the chain indented by depth.
func outputChainText(chain *depgraph.Chain) {
	if chain.Direction == depgraph.DirectionUpstream {
		fmt.Printf("Blockers upstream of %s:\n\n", chain.StartTaskID)
	} else {
		fmt.Printf("Dependents downstream of %s:\n\n", chain.StartTaskID)
	}

	if len(chain.Nodes) == 0 {
		fmt.Println("  None.")
		return
	}

	for _, n := range chain.Nodes {
		indent := strings.Repeat("  ", n.Depth)
		switch {
		case n.Missing:
			fmt.Printf("%s%s  [missing]\n", indent, n.TaskID)
		case n.Task.Title != "":
			fmt.Printf("%s%s  [%s]  %s\n", indent, n.TaskID, n.Task.Status, n.Task.Title)
		default:
			fmt.Printf("%s%s  [%s]\n", indent, n.TaskID, n.Task.Status)
		}
	}

	fmt.Printf("\n%d task(s), max depth %d, took %s\n",
		len(chain.Nodes), chain.Depth, chain.Duration)
	if chain.Truncated {
		fmt.Println("  (results truncated)")
	}
}
