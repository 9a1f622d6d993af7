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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianTasks/pkg/validation"
	"github.com/AleutianAI/AleutianTasks/services/planner/edgestore"
	"github.com/AleutianAI/AleutianTasks/services/planner/task"
)

var tracer = otel.Tracer("aleutian.depgraph")

// maxCandidateWorkers bounds concurrent admission checks in
// AvailableBlockers.
const maxCandidateWorkers = 8

// Service is the dependency graph facade.
//
// Description:
//
//	Service composes an edge store, a task source, and a validator into
//	the operations the planner exposes. It holds no graph state of its
//	own: every call loads a fresh snapshot from the store, so the store
//	stays the single source of truth and the engine survives restarts
//	for free.
//
// Thread Safety:
//
//	Safe for concurrent use. Mutations serialize per dependent task via
//	a keyed mutex; queries take no locks.
type Service struct {
	store     edgestore.Store
	source    task.Source
	validator *Validator
	logger    *slog.Logger
	locks     *keyMutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceValidator replaces the default validator, e.g. to change
// the per-task dependency limit.
func WithServiceValidator(v *Validator) ServiceOption {
	return func(s *Service) {
		if v != nil {
			s.validator = v
		}
	}
}

// NewService creates the dependency graph facade.
//
// Inputs:
//   - store: Edge persistence. Must not be nil.
//   - source: Task records, owned outside the engine. Must not be nil.
//   - logger: Logger for service logs. If nil, uses slog.Default().
//   - opts: Optional overrides (WithServiceValidator).
//
// Outputs:
//   - *Service: The configured facade.
//   - error: Non-nil when store or source is nil.
func NewService(store edgestore.Store, source task.Source, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("store must not be nil")
	}
	if source == nil {
		return nil, errors.New("task source must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		store:     store,
		source:    source,
		validator: NewValidator(),
		logger:    logger.With(slog.String("component", "depgraph")),
		locks:     newKeyMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AddDependency records that blockingID must complete before dependentID
// can start.
//
// Description:
//
//	Validates both identifiers, confirms both tasks exist, then runs
//	the admission checks (self-reference, duplicate, limit, cycle)
//	against a fresh edge snapshot while holding the dependent task's
//	mutation lock. Nothing is written unless every check passes; a
//	rejected call leaves storage untouched.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - dependentID: Task that will wait.
//   - blockingID: Task that must complete first.
//
// Outputs:
//   - *edgestore.Edge: The created edge (ID, CreatedAt, Seq populated).
//   - error: *DependencyError wrapping ErrInvalidTaskID,
//     ErrTaskNotFound, ErrSelfDependency, ErrDuplicateDependency,
//     ErrLimitExceeded or ErrCycleDetected; storage errors otherwise.
func (s *Service) AddDependency(ctx context.Context, dependentID, blockingID string) (*edgestore.Edge, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	ctx, span := tracer.Start(ctx, "depgraph.AddDependency",
		trace.WithAttributes(
			attribute.String("dependent_task_id", dependentID),
			attribute.String("blocking_task_id", blockingID),
		),
	)
	defer span.End()

	const op = "add_dependency"

	if err := validation.ValidateTaskID(dependentID); err != nil {
		return nil, s.reject(span, NewDependencyError(op, dependentID, blockingID,
			fmt.Errorf("%w: dependent: %v", ErrInvalidTaskID, err)))
	}
	if err := validation.ValidateTaskID(blockingID); err != nil {
		return nil, s.reject(span, NewDependencyError(op, dependentID, blockingID,
			fmt.Errorf("%w: blocking: %v", ErrInvalidTaskID, err)))
	}

	for _, id := range []string{dependentID, blockingID} {
		if _, err := s.source.Get(ctx, id); err != nil {
			if errors.Is(err, task.ErrNotFound) {
				return nil, s.reject(span, NewDependencyError(op, dependentID, blockingID,
					fmt.Errorf("%w: %s", ErrTaskNotFound, id)))
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("get task %s: %w", id, err)
		}
	}

	unlock := s.locks.Lock(dependentID)
	defer unlock()

	edges, err := s.store.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list edges: %w", err)
	}

	if err := s.validator.CanAdd(ctx, blockingID, dependentID, edges); err != nil {
		validationsTotal.WithLabelValues(validationOutcome(err)).Inc()
		var depErr *DependencyError
		if errors.As(err, &depErr) {
			return nil, s.reject(span, depErr)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	validationsTotal.WithLabelValues(outcomeAllowed).Inc()

	edge := &edgestore.Edge{
		ID:              uuid.NewString(),
		BlockingTaskID:  blockingID,
		DependentTaskID: dependentID,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.Create(ctx, edge); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create edge: %w", err)
	}
	edgesCreatedTotal.Inc()

	span.SetAttributes(attribute.String("edge_id", edge.ID))
	span.SetStatus(codes.Ok, "")
	s.logger.Info("dependency added",
		slog.String("edge_id", edge.ID),
		slog.String("dependent_task_id", dependentID),
		slog.String("blocking_task_id", blockingID),
	)
	return edge, nil
}

// reject records a validation failure on the span, logs it, and returns
// the error unchanged.
func (s *Service) reject(span trace.Span, err *DependencyError) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Debug("dependency rejected",
		slog.String("dependent_task_id", err.DependentTaskID),
		slog.String("blocking_task_id", err.BlockingTaskID),
		slog.String("reason", err.Err.Error()),
	)
	return err
}

// RemoveDependency deletes the dependency edge with the given ID.
//
// Description:
//
//	Looks the edge up first to learn its dependent task, then
//	serializes on that task while removing. An unknown edge ID,
//	including one that was never a valid UUID, reports ErrEdgeNotFound,
//	distinguishable from a successful removal.
//
// Outputs:
//   - error: ErrEdgeNotFound when no such edge exists; storage errors
//     otherwise.
func (s *Service) RemoveDependency(ctx context.Context, edgeID string) error {
	if ctx == nil {
		return ErrNilContext
	}
	ctx, span := tracer.Start(ctx, "depgraph.RemoveDependency",
		trace.WithAttributes(attribute.String("edge_id", edgeID)),
	)
	defer span.End()

	edge, err := s.store.Get(ctx, edgeID)
	if err != nil {
		if errors.Is(err, edgestore.ErrNotFound) {
			err = fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID)
		} else {
			err = fmt.Errorf("get edge: %w", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	unlock := s.locks.Lock(edge.DependentTaskID)
	defer unlock()

	removed, err := s.store.Remove(ctx, edgeID)
	if err != nil {
		if errors.Is(err, edgestore.ErrNotFound) {
			// Lost a race with another remover between Get and lock.
			err = fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID)
		} else {
			err = fmt.Errorf("remove edge: %w", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	edgesRemovedTotal.Inc()

	span.SetStatus(codes.Ok, "")
	s.logger.Info("dependency removed",
		slog.String("edge_id", removed.ID),
		slog.String("dependent_task_id", removed.DependentTaskID),
		slog.String("blocking_task_id", removed.BlockingTaskID),
	)
	return nil
}

// RemoveAllForTask removes every edge touching taskID, on either side.
//
// Description:
//
//	Cascade cleanup for task deletion. Each edge delete is individually
//	atomic but the cascade as a whole is not transactional: an
//	interrupted cascade leaves a smaller graph that still satisfies
//	every invariant, because removing edges can never create a
//	violation. For the same reason edges whose dependent is another
//	task are removed without that task's lock.
//
// Outputs:
//   - int: Number of edges removed.
//   - error: First storage failure; the count reflects edges already
//     removed when it occurred.
func (s *Service) RemoveAllForTask(ctx context.Context, taskID string) (int, error) {
	if ctx == nil {
		return 0, ErrNilContext
	}
	ctx, span := tracer.Start(ctx, "depgraph.RemoveAllForTask",
		trace.WithAttributes(attribute.String("task_id", taskID)),
	)
	defer span.End()

	if err := validation.ValidateTaskID(taskID); err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidTaskID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	unlock := s.locks.Lock(taskID)
	defer unlock()

	asDependent, err := s.store.ListByDependent(ctx, taskID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("list edges by dependent: %w", err)
	}
	asBlocking, err := s.store.ListByBlocking(ctx, taskID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("list edges by blocking: %w", err)
	}

	removed := 0
	seen := make(map[string]bool)
	for _, edge := range append(asDependent, asBlocking...) {
		if seen[edge.ID] {
			continue // A corrupted self-loop shows up on both sides
		}
		seen[edge.ID] = true
		if _, err := s.store.Remove(ctx, edge.ID); err != nil {
			if errors.Is(err, edgestore.ErrNotFound) {
				continue // Already gone
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return removed, fmt.Errorf("remove edge %s: %w", edge.ID, err)
		}
		removed++
		edgesRemovedTotal.Inc()
	}

	span.SetAttributes(attribute.Int("edges_removed", removed))
	span.SetStatus(codes.Ok, "")
	if removed > 0 {
		s.logger.Info("dependencies removed for task",
			slog.String("task_id", taskID),
			slog.Int("edges_removed", removed),
		)
	}
	return removed, nil
}

// AvailableBlockers filters candidates down to the tasks that could be
// added as blockers of taskID right now.
//
// Description:
//
//	Runs the same admission checks AddDependency would, against one
//	shared edge snapshot, so the result is consistent at a point in
//	time. Candidates are evaluated concurrently with a bounded worker
//	pool; input order is preserved in the result. Candidates whose IDs
//	fail validation are excluded rather than failing the call.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - taskID: The dependent task the candidates would block.
//   - candidates: Tasks to test, typically the full task list.
//
// Outputs:
//   - []task.Task: Admissible candidates, in input order.
//   - error: Invalid taskID or storage failure.
func (s *Service) AvailableBlockers(ctx context.Context, taskID string, candidates []task.Task) ([]task.Task, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	ctx, span := tracer.Start(ctx, "depgraph.AvailableBlockers",
		trace.WithAttributes(
			attribute.String("task_id", taskID),
			attribute.Int("candidates", len(candidates)),
		),
	)
	defer span.End()

	if err := validation.ValidateTaskID(taskID); err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidTaskID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	edges, err := s.store.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list edges: %w", err)
	}

	admissible := make([]bool, len(candidates))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxCandidateWorkers)

	for i, candidate := range candidates {
		i, candidate := i, candidate // Capture loop variables

		g.Go(func() error {
			if validation.ValidateTaskID(candidate.ID) != nil {
				return nil
			}
			err := s.validator.CanAdd(gCtx, candidate.ID, taskID, edges)
			switch {
			case err == nil:
				admissible[i] = true
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	available := make([]task.Task, 0, len(candidates))
	for i, ok := range admissible {
		if ok {
			available = append(available, candidates[i])
		}
	}

	span.SetAttributes(attribute.Int("available", len(available)))
	span.SetStatus(codes.Ok, "")
	return available, nil
}

// snapshot loads the current edges and a task lookup together so every
// query sees a consistent pair.
func (s *Service) snapshot(ctx context.Context) ([]edgestore.Edge, task.Lookup, error) {
	edges, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list edges: %w", err)
	}
	tasks, err := s.source.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list tasks: %w", err)
	}
	return edges, task.LookupFrom(tasks), nil
}

// IsBlocked reports whether taskID is currently blocked by an incomplete
// direct blocker. See the package-level IsBlocked for semantics.
func (s *Service) IsBlocked(ctx context.Context, taskID string) (bool, error) {
	if ctx == nil {
		return false, ErrNilContext
	}
	ctx, span := tracer.Start(ctx, "depgraph.IsBlocked",
		trace.WithAttributes(attribute.String("task_id", taskID)),
	)
	defer span.End()

	edges, lookup, err := s.snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	blocked := IsBlocked(taskID, edges, lookup)
	span.SetAttributes(attribute.Bool("blocked", blocked))
	span.SetStatus(codes.Ok, "")
	return blocked, nil
}

// BlockedBy returns the IDs of the tasks directly blocking taskID.
func (s *Service) BlockedBy(ctx context.Context, taskID string) ([]string, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	ctx, span := tracer.Start(ctx, "depgraph.BlockedBy",
		trace.WithAttributes(attribute.String("task_id", taskID)),
	)
	defer span.End()

	edges, err := s.store.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list edges: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return BlockedBy(taskID, edges), nil
}

// Blocks returns the IDs of the tasks taskID directly blocks.
func (s *Service) Blocks(ctx context.Context, taskID string) ([]string, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	ctx, span := tracer.Start(ctx, "depgraph.Blocks",
		trace.WithAttributes(attribute.String("task_id", taskID)),
	)
	defer span.End()

	edges, err := s.store.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list edges: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return Blocks(taskID, edges), nil
}

// DependencyCount returns the number of direct blockers of taskID.
func (s *Service) DependencyCount(ctx context.Context, taskID string) (int, error) {
	if ctx == nil {
		return 0, ErrNilContext
	}
	ctx, span := tracer.Start(ctx, "depgraph.DependencyCount",
		trace.WithAttributes(attribute.String("task_id", taskID)),
	)
	defer span.End()

	edges, err := s.store.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("list edges: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return DependencyCount(taskID, edges), nil
}

// BlockedSet resolves the blocked flag for every task that has at least
// one blocker. See the package-level BlockedSet for semantics.
func (s *Service) BlockedSet(ctx context.Context) (map[string]bool, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	ctx, span := tracer.Start(ctx, "depgraph.BlockedSet")
	defer span.End()

	edges, lookup, err := s.snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	set := BlockedSet(edges, lookup)
	span.SetAttributes(attribute.Int("tasks", len(set)))
	span.SetStatus(codes.Ok, "")
	return set, nil
}

// Upstream returns the chain of tasks blocking taskID, directly or
// transitively.
func (s *Service) Upstream(ctx context.Context, taskID string, opts ...ChainOption) (*Chain, error) {
	return s.chain(ctx, taskID, DirectionUpstream, opts)
}

// Downstream returns the chain of tasks waiting on taskID, directly or
// transitively.
func (s *Service) Downstream(ctx context.Context, taskID string, opts ...ChainOption) (*Chain, error) {
	return s.chain(ctx, taskID, DirectionDownstream, opts)
}

func (s *Service) chain(ctx context.Context, taskID string, direction Direction, opts []ChainOption) (*Chain, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	ctx, span := tracer.Start(ctx, "depgraph.Chain",
		trace.WithAttributes(
			attribute.String("task_id", taskID),
			attribute.String("direction", string(direction)),
		),
	)
	defer span.End()

	edges, lookup, err := s.snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	chain, err := traverse(ctx, taskID, direction, edges, lookup, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	traversalDuration.WithLabelValues(string(direction)).Observe(chain.Duration.Seconds())

	span.SetAttributes(
		attribute.Int("nodes", len(chain.Nodes)),
		attribute.Int("depth", chain.Depth),
		attribute.Bool("truncated", chain.Truncated),
	)
	span.SetStatus(codes.Ok, "")
	return chain, nil
}
