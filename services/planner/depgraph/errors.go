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
	"errors"
	"fmt"
)

// Sentinel errors for dependency graph operations.
var (
	// ErrSelfDependency is returned when a task would block itself.
	ErrSelfDependency = errors.New("task cannot depend on itself")

	// ErrDuplicateDependency is returned when the identical arc already
	// exists between the two tasks.
	ErrDuplicateDependency = errors.New("dependency already exists")

	// ErrLimitExceeded is returned when the dependent task already has
	// the maximum number of blocking tasks.
	ErrLimitExceeded = errors.New("dependency limit exceeded")

	// ErrCycleDetected is returned when adding the arc would create a
	// dependency cycle.
	ErrCycleDetected = errors.New("dependency would create a cycle")

	// ErrTaskNotFound is returned when a referenced task does not exist
	// in the task source.
	ErrTaskNotFound = errors.New("task not found")

	// ErrEdgeNotFound is returned when a referenced dependency edge does
	// not exist.
	ErrEdgeNotFound = errors.New("dependency edge not found")

	// ErrInvalidTaskID is returned when a task identifier fails
	// validation before any graph work is attempted.
	ErrInvalidTaskID = errors.New("invalid task id")

	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")
)

// DependencyError carries the offending arc alongside the underlying
// sentinel so callers can render which pair of tasks was rejected.
type DependencyError struct {
	// Op is the operation that failed (e.g. "can_add", "add_dependency").
	Op string

	// DependentTaskID is the task that would wait on the blocker.
	DependentTaskID string

	// BlockingTaskID is the task that would block the dependent.
	BlockingTaskID string

	// Err is the underlying sentinel error.
	Err error
}

// Error returns the error message.
func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %q blocking %q: %v", e.Op, e.BlockingTaskID, e.DependentTaskID, e.Err)
}

// Unwrap returns the underlying error.
func (e *DependencyError) Unwrap() error {
	return e.Err
}

// NewDependencyError creates a DependencyError.
func NewDependencyError(op, dependentID, blockingID string, err error) *DependencyError {
	return &DependencyError{
		Op:              op,
		DependentTaskID: dependentID,
		BlockingTaskID:  blockingID,
		Err:             err,
	}
}
