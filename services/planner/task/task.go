// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package task defines the read-only task model consumed by the dependency
// graph engine.
//
// Tasks are owned by the surrounding application (CRUD, field validation,
// rendering all live there). The engine only needs two facts about a task:
// that it exists, and whether it has completed. This package provides the
// minimal model plus the collaborator interfaces the engine uses to obtain
// those facts. Nothing in this module ever mutates a task.
package task

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Status is the lifecycle state of a task.
//
// The engine only distinguishes "completed" from "not completed": a task
// blocks its dependents until it reaches StatusCompleted.
type Status string

const (
	// StatusPending is a task that has not been started.
	StatusPending Status = "pending"

	// StatusInProgress is a task that is actively being worked.
	StatusInProgress Status = "in-progress"

	// StatusCompleted is a finished task. Completed tasks no longer block
	// their dependents.
	StatusCompleted Status = "completed"
)

// IsValid reports whether s is one of the known status values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Completed reports whether the task has finished.
func (s Status) Completed() bool {
	return s == StatusCompleted
}

// Task is the engine's read-only view of a task.
type Task struct {
	// ID is the opaque unique identifier assigned by the task owner.
	ID string `json:"id" yaml:"id"`

	// Status is the task's current lifecycle state.
	Status Status `json:"status" yaml:"status"`

	// Title is carried for display in chain output and CLI listings.
	// The engine itself never inspects it.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// ErrNotFound is returned by Source implementations when no task exists
// for the requested id.
var ErrNotFound = errors.New("task not found")

// Source is the read-only collaborator that owns task records.
//
// Description:
//
//	The dependency engine consults a Source for existence checks when an
//	edge is created and for status snapshots when deriving blocked state.
//	Implementations may be backed by the application's task database; the
//	engine never writes through this interface.
//
// Thread Safety: implementations must be safe for concurrent use.
type Source interface {
	// Get returns the task for id, or ErrNotFound.
	Get(ctx context.Context, id string) (Task, error)

	// List returns a point-in-time snapshot of all tasks.
	List(ctx context.Context) ([]Task, error)
}

// Lookup resolves a task id during pure graph computations.
//
// A Lookup is a snapshot view: it performs no I/O and is safe to call any
// number of times over an unchanged task set. ok is false when the id is
// unknown.
type Lookup func(id string) (t Task, ok bool)

// LookupFrom builds a Lookup over a fixed slice of tasks.
//
// Later entries win when the slice contains duplicate ids.
func LookupFrom(tasks []Task) Lookup {
	byID := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	return func(id string) (Task, bool) {
		t, ok := byID[id]
		return t, ok
	}
}

// StaticSource is a map-backed Source for tests and snapshot-driven tools.
//
// Thread Safety: safe for concurrent use.
type StaticSource struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewStaticSource creates a StaticSource seeded with tasks.
func NewStaticSource(tasks ...Task) *StaticSource {
	s := &StaticSource{tasks: make(map[string]Task, len(tasks))}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

// Get returns the task for id, or ErrNotFound.
func (s *StaticSource) Get(_ context.Context, id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

// List returns all tasks sorted by id for deterministic iteration.
func (s *StaticSource) List(_ context.Context) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Put inserts or replaces a task. Intended for test setup and for tools
// that refresh their snapshot from the owning application.
func (s *StaticSource) Put(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
}

// Delete removes a task if present.
func (s *StaticSource) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// Ensure StaticSource implements Source.
var _ Source = (*StaticSource)(nil)
