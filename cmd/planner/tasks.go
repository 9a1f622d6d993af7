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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianTasks/pkg/validation"
	"github.com/AleutianAI/AleutianTasks/services/planner/task"
)

// taskSnapshot is the on-disk shape of the task file:
//
//	tasks:
//	  - id: design-schema
//	    status: in-progress
//	    title: Design the v2 schema
//	  - id: build-api
//	    title: Build the public API
//
// Status defaults to pending when omitted.
type taskSnapshot struct {
	Tasks []task.Task `yaml:"tasks"`
}

// loadTaskSource reads the task snapshot at path into a static source.
//
// The planner never writes this file; tasks are owned by the calling
// application and the snapshot is its read-only export. An empty path
// yields an empty source, which makes every task unknown: status
// queries then fail closed and chain nodes report missing.
func loadTaskSource(path string) (*task.StaticSource, error) {
	if path == "" {
		return task.NewStaticSource(), nil
	}

	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("read task snapshot %s: %w", path, err)
	}

	var snap taskSnapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse task snapshot %s: %w", path, err)
	}

	seen := make(map[string]bool, len(snap.Tasks))
	for i := range snap.Tasks {
		t := &snap.Tasks[i]

		if err := validation.ValidateTaskID(t.ID); err != nil {
			return nil, fmt.Errorf("task snapshot %s: entry %d: %w", path, i, err)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("task snapshot %s: duplicate task id %q", path, t.ID)
		}
		seen[t.ID] = true

		if t.Status == "" {
			t.Status = task.StatusPending
		}
		if !t.Status.IsValid() {
			return nil, fmt.Errorf("task snapshot %s: task %q: unknown status %q", path, t.ID, t.Status)
		}
	}

	return task.NewStaticSource(snap.Tasks...), nil
}
