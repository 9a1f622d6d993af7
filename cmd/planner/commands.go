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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes returned to the shell.
const (
	exitSuccess = 0
	exitError   = 1
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

var (
	// Persistent flags
	configPath string
	jsonOutput bool

	rootCmd = &cobra.Command{
		Use:   "planner",
		Short: "Manage and inspect task dependencies",
		Long: `Planner maintains the dependency graph between tasks: which task
blocks which, whether a task is ready to start, and what opens up
when a task completes.

Tasks themselves are owned by the calling application and read from
a YAML snapshot (tasks_file in planner.yaml); planner owns only the
edges between them.

Examples:
  planner dep add build-api design-schema
  planner chain build-api --down
  planner status build-api
  planner check`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "planner.yaml",
		"Path to the planner configuration file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output as JSON for scripting")

	rootCmd.AddCommand(depCmd)
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(statsCmd)
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

// outputError reports a command failure in the configured format.
func outputError(msg string, err error) {
	if jsonOutput {
		result := map[string]interface{}{
			"success": false,
			"error":   fmt.Sprintf("%s: %v", msg, err),
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		encoder.Encode(result)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	}
}

// outputJSON outputs any result as indented JSON.
func outputJSON(result interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		os.Exit(exitError)
	}
}
