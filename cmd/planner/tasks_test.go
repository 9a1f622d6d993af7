// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/AleutianTasks/services/planner/task"
)

// writeTaskFile writes content to a temp tasks.yaml and returns its path.
func writeTaskFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tasks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write task file: %v", err)
	}
	return path
}

func TestLoadTaskSource_EmptyPath(t *testing.T) {
	source, err := loadTaskSource("")
	if err != nil {
		t.Fatalf("loadTaskSource(\"\") error = %v", err)
	}

	tasks, err := source.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("List() returned %d tasks, want 0", len(tasks))
	}
}

func TestLoadTaskSource_Snapshot(t *testing.T) {
	path := writeTaskFile(t, `
tasks:
  - id: design-schema
    status: completed
    title: Design the v2 schema
  - id: build-api
    status: in-progress
  - id: deploy
`)

	source, err := loadTaskSource(path)
	if err != nil {
		t.Fatalf("loadTaskSource() error = %v", err)
	}

	got, err := source.Get(context.Background(), "design-schema")
	if err != nil {
		t.Fatalf("Get(design-schema) error = %v", err)
	}
	if got.Status != task.StatusCompleted || got.Title != "Design the v2 schema" {
		t.Errorf("Get(design-schema) = %+v", got)
	}

	// Status defaults to pending when the snapshot omits it.
	got, err = source.Get(context.Background(), "deploy")
	if err != nil {
		t.Fatalf("Get(deploy) error = %v", err)
	}
	if got.Status != task.StatusPending {
		t.Errorf("Get(deploy).Status = %q, want %q", got.Status, task.StatusPending)
	}

	tasks, err := source.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Errorf("List() returned %d tasks, want 3", len(tasks))
	}
}

func TestLoadTaskSource_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "malformed yaml",
			content: "tasks: [unclosed",
		},
		{
			name:    "duplicate id",
			content: "tasks:\n  - id: alpha\n  - id: alpha\n",
		},
		{
			name:    "unknown status",
			content: "tasks:\n  - id: alpha\n    status: paused\n",
		},
		{
			name:    "id with colon",
			content: "tasks:\n  - id: \"alpha:1\"\n",
		},
		{
			name:    "blank id",
			content: "tasks:\n  - id: \"  \"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTaskFile(t, tt.content)

			if _, err := loadTaskSource(path); err == nil {
				t.Error("loadTaskSource() succeeded, want error")
			}
		})
	}
}

func TestLoadTaskSource_MissingFile(t *testing.T) {
	_, err := loadTaskSource(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("loadTaskSource() succeeded for a missing file")
	}
}
