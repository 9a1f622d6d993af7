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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianTasks/services/planner/depgraph"
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

// checkCmd scans the stored graph for invariant violations.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Scan the dependency graph for integrity violations",
	Long: `Scan every stored edge for violations the write path should have
prevented: self-loops, duplicate edges, cycles, tasks over the
dependency limit, and edges referencing tasks missing from the task
snapshot.

A clean graph exits 0. Findings are reported and the command exits
non-zero, so the check can gate automation.

Examples:
  planner check
  planner check --json`,
	Args: cobra.NoArgs,
	Run:  runCheck,
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

// runCheck executes the integrity scan.
func runCheck(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := newApp(ctx)
	if err != nil {
		outputError("Failed to start planner", err)
		os.Exit(exitError)
	}

	ctx, span, log := app.startCommand(ctx, "check")

	report, err := app.service.CheckIntegrity(ctx)
	if err != nil {
		span.RecordError(err)
		span.End()
		outputError("Failed to check integrity", err)
		exitApp(ctx, app, exitError)
	}

	log.Info("integrity scan finished",
		slog.Int("edges_scanned", report.EdgesScanned),
		slog.Int("findings", len(report.Findings)))

	if jsonOutput {
		outputJSON(report)
	} else {
		outputReportText(report)
	}

	code := exitSuccess
	if !report.Clean() {
		code = exitError
	}

	span.End()
	exitApp(ctx, app, code)
}

// outputReportText prints the integrity report.
func outputReportText(report *depgraph.IntegrityReport) {
	fmt.Printf("Scanned %d edge(s) in %s\n", report.EdgesScanned, report.Duration)

	if report.Clean() {
		fmt.Println("No integrity findings.")
		return
	}

	fmt.Printf("\n%d finding(s):\n", len(report.Findings))
	for _, f := range report.Findings {
		fmt.Printf("  [%s] %s\n", f.Kind, f.Detail)
		if len(f.EdgeIDs) > 0 {
			fmt.Printf("      edges: %s\n", strings.Join(f.EdgeIDs, ", "))
		}
	}
}
