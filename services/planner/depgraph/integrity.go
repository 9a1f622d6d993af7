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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianTasks/services/planner/edgestore"
	"github.com/AleutianAI/AleutianTasks/services/planner/task"
)

// FindingKind classifies an integrity finding.
type FindingKind string

const (
	// FindingSelfLoop is an edge whose blocking and dependent task are
	// the same.
	FindingSelfLoop FindingKind = "self_loop"

	// FindingDuplicateArc is two or more edges over the same task pair.
	FindingDuplicateArc FindingKind = "duplicate_arc"

	// FindingCycle is a set of edges forming a dependency cycle.
	FindingCycle FindingKind = "cycle"

	// FindingDegreeExceeded is a task with more blockers than the
	// configured limit allows.
	FindingDegreeExceeded FindingKind = "degree_exceeded"

	// FindingDanglingTask is an edge endpoint the task source cannot
	// resolve.
	FindingDanglingTask FindingKind = "dangling_task"
)

// Finding is one integrity violation discovered by CheckIntegrity.
type Finding struct {
	// Kind classifies the violation.
	Kind FindingKind `json:"kind"`

	// TaskID is the task at fault, when the violation centers on one
	// task.
	TaskID string `json:"task_id,omitempty"`

	// EdgeIDs lists the edges involved.
	EdgeIDs []string `json:"edge_ids,omitempty"`

	// Detail is a human-readable description.
	Detail string `json:"detail"`
}

// IntegrityReport is the result of a full graph integrity scan.
type IntegrityReport struct {
	// EdgesScanned is the number of edges examined.
	EdgesScanned int `json:"edges_scanned"`

	// Findings lists every violation discovered. Empty means the
	// stored graph is consistent.
	Findings []Finding `json:"findings"`

	// Duration is how long the scan took.
	Duration time.Duration `json:"duration"`
}

// Clean reports whether the scan found no violations.
func (r *IntegrityReport) Clean() bool {
	return len(r.Findings) == 0
}

// CheckIntegrity scans the whole stored graph for violations.
//
// Description:
//
//	The engine validates every mutation, so a healthy deployment always
//	reports clean. The scan exists for data corrupted out of band:
//	hand-edited storage, partial restores, or task records deleted
//	outside the planner. It checks self-loops, duplicate arcs,
//	dependency cycles, degree violations, and edges whose endpoints no
//	longer resolve to tasks. Findings are also published to the
//	integrity metrics gauge.
//
// Outputs:
//   - *IntegrityReport: Scan results; never nil on success.
//   - error: Snapshot failures only. Findings are data, not errors.
func (s *Service) CheckIntegrity(ctx context.Context) (*IntegrityReport, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	ctx, span := tracer.Start(ctx, "depgraph.CheckIntegrity")
	defer span.End()

	start := time.Now()
	edges, lookup, err := s.snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	report := &IntegrityReport{
		EdgesScanned: len(edges),
		Findings:     make([]Finding, 0),
	}
	report.Findings = append(report.Findings, scanSelfLoops(edges)...)
	report.Findings = append(report.Findings, scanDuplicateArcs(edges)...)
	report.Findings = append(report.Findings, scanDegrees(edges, s.validator.MaxDependencies())...)
	report.Findings = append(report.Findings, scanDangling(edges, lookup)...)
	report.Findings = append(report.Findings, scanCycles(edges)...)
	report.Duration = time.Since(start)

	publishFindings(report.Findings)

	span.SetAttributes(
		attribute.Int("edges_scanned", report.EdgesScanned),
		attribute.Int("findings", len(report.Findings)),
	)
	span.SetStatus(codes.Ok, "")

	if report.Clean() {
		s.logger.Debug("integrity check clean",
			slog.Int("edges_scanned", report.EdgesScanned),
		)
	} else {
		s.logger.Warn("integrity check found violations",
			slog.Int("edges_scanned", report.EdgesScanned),
			slog.Int("findings", len(report.Findings)),
		)
	}
	return report, nil
}

// publishFindings resets the integrity gauge and publishes per-kind
// counts, including zeros so cleared violations read as cleared.
func publishFindings(findings []Finding) {
	counts := make(map[FindingKind]int)
	for _, f := range findings {
		counts[f.Kind]++
	}
	kinds := []FindingKind{
		FindingSelfLoop,
		FindingDuplicateArc,
		FindingCycle,
		FindingDegreeExceeded,
		FindingDanglingTask,
	}
	for _, kind := range kinds {
		integrityFindings.WithLabelValues(string(kind)).Set(float64(counts[kind]))
	}
}

func scanSelfLoops(edges []edgestore.Edge) []Finding {
	findings := make([]Finding, 0)
	for _, edge := range edges {
		if edge.BlockingTaskID == edge.DependentTaskID {
			findings = append(findings, Finding{
				Kind:    FindingSelfLoop,
				TaskID:  edge.DependentTaskID,
				EdgeIDs: []string{edge.ID},
				Detail:  fmt.Sprintf("task %q blocks itself", edge.DependentTaskID),
			})
		}
	}
	return findings
}

func scanDuplicateArcs(edges []edgestore.Edge) []Finding {
	byPair := make(map[string][]string)
	order := make([]string, 0)
	for _, edge := range edges {
		pair := edge.Pair()
		if _, ok := byPair[pair]; !ok {
			order = append(order, pair)
		}
		byPair[pair] = append(byPair[pair], edge.ID)
	}

	findings := make([]Finding, 0)
	for _, pair := range order {
		ids := byPair[pair]
		if len(ids) > 1 {
			findings = append(findings, Finding{
				Kind:    FindingDuplicateArc,
				EdgeIDs: ids,
				Detail:  fmt.Sprintf("%d edges for arc %s", len(ids), pair),
			})
		}
	}
	return findings
}

func scanDegrees(edges []edgestore.Edge, maxDependencies int) []Finding {
	byDependent := make(map[string][]string)
	order := make([]string, 0)
	for _, edge := range edges {
		if _, ok := byDependent[edge.DependentTaskID]; !ok {
			order = append(order, edge.DependentTaskID)
		}
		byDependent[edge.DependentTaskID] = append(byDependent[edge.DependentTaskID], edge.ID)
	}

	findings := make([]Finding, 0)
	for _, id := range order {
		if len(byDependent[id]) > maxDependencies {
			findings = append(findings, Finding{
				Kind:    FindingDegreeExceeded,
				TaskID:  id,
				EdgeIDs: byDependent[id],
				Detail: fmt.Sprintf("task %q has %d blockers, limit is %d",
					id, len(byDependent[id]), maxDependencies),
			})
		}
	}
	return findings
}

func scanDangling(edges []edgestore.Edge, lookup task.Lookup) []Finding {
	refs := make(map[string][]string)
	order := make([]string, 0)
	note := func(id, edgeID string) {
		if _, ok := lookup(id); ok {
			return
		}
		if _, seen := refs[id]; !seen {
			order = append(order, id)
		}
		refs[id] = append(refs[id], edgeID)
	}
	for _, edge := range edges {
		note(edge.BlockingTaskID, edge.ID)
		if edge.DependentTaskID != edge.BlockingTaskID {
			note(edge.DependentTaskID, edge.ID)
		}
	}

	findings := make([]Finding, 0)
	for _, id := range order {
		findings = append(findings, Finding{
			Kind:    FindingDanglingTask,
			TaskID:  id,
			EdgeIDs: refs[id],
			Detail:  fmt.Sprintf("task %q is referenced by %d edge(s) but does not exist", id, len(refs[id])),
		})
	}
	return findings
}

// arc identifies a (blocking, dependent) pair.
type arc struct {
	blocking  string
	dependent string
}

// scanCycles detects dependency cycles with an iterative depth-first
// walk. Nodes are colored white (unvisited), gray (on the current
// path), black (done); meeting a gray node closes a cycle.
func scanCycles(edges []edgestore.Edge) []Finding {
	adjacency := blockersByDependent(edges)

	arcEdges := make(map[arc]string)
	nodes := make([]string, 0)
	seen := make(map[string]bool)
	for _, edge := range edges {
		key := arc{blocking: edge.BlockingTaskID, dependent: edge.DependentTaskID}
		if _, ok := arcEdges[key]; !ok {
			arcEdges[key] = edge.ID
		}
		for _, id := range []string{edge.DependentTaskID, edge.BlockingTaskID} {
			if !seen[id] {
				seen[id] = true
				nodes = append(nodes, id)
			}
		}
	}

	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(nodes))

	type frame struct {
		id   string
		next int
	}

	findings := make([]Finding, 0)
	for _, root := range nodes {
		if color[root] != white {
			continue
		}
		stack := []frame{{id: root}}
		path := []string{root}
		color[root] = gray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			neighbors := adjacency[top.id]
			if top.next < len(neighbors) {
				id := neighbors[top.next]
				top.next++
				switch color[id] {
				case white:
					color[id] = gray
					stack = append(stack, frame{id: id})
					path = append(path, id)
				case gray:
					cycle := cyclePath(path, id)
					findings = append(findings, Finding{
						Kind:    FindingCycle,
						TaskID:  id,
						EdgeIDs: cycleEdgeIDs(cycle, arcEdges),
						Detail:  fmt.Sprintf("cycle through %s", strings.Join(cycle, " -> ")),
					})
				}
				continue
			}
			color[top.id] = black
			stack = stack[:len(stack)-1]
			path = path[:len(path)-1]
		}
	}
	return findings
}

// cyclePath slices the DFS path from the first occurrence of id and
// closes it with id again, e.g. [b a b].
func cyclePath(path []string, id string) []string {
	for i, p := range path {
		if p == id {
			cycle := append([]string(nil), path[i:]...)
			return append(cycle, id)
		}
	}
	return []string{id}
}

// cycleEdgeIDs maps consecutive cycle nodes back to edge IDs. The walk
// follows blocker arcs, so path step (dependent, blocking) recovers the
// edge keyed by that pair.
func cycleEdgeIDs(cycle []string, arcEdges map[arc]string) []string {
	ids := make([]string, 0, len(cycle)-1)
	for i := 0; i+1 < len(cycle); i++ {
		key := arc{blocking: cycle[i+1], dependent: cycle[i]}
		if id, ok := arcEdges[key]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Stats summarizes the stored dependency graph.
type Stats struct {
	// EdgeCount is the total number of dependency edges.
	EdgeCount int `json:"edge_count"`

	// TaskCount is the number of distinct tasks with at least one edge.
	TaskCount int `json:"task_count"`

	// MaxInDegree is the largest number of blockers on any single task.
	MaxInDegree int `json:"max_in_degree"`

	// BlockedTasks is the number of tasks currently blocked.
	BlockedTasks int `json:"blocked_tasks"`
}

// Stats returns summary statistics for the stored graph.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if ctx == nil {
		return Stats{}, ErrNilContext
	}
	ctx, span := tracer.Start(ctx, "depgraph.Stats")
	defer span.End()

	count, err := s.store.Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Stats{}, fmt.Errorf("count edges: %w", err)
	}
	edges, lookup, err := s.snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Stats{}, err
	}

	stats := Stats{EdgeCount: count}
	tasks := make(map[string]bool)
	inDegree := make(map[string]int)
	for _, edge := range edges {
		tasks[edge.BlockingTaskID] = true
		tasks[edge.DependentTaskID] = true
		inDegree[edge.DependentTaskID]++
	}
	stats.TaskCount = len(tasks)
	for _, d := range inDegree {
		if d > stats.MaxInDegree {
			stats.MaxInDegree = d
		}
	}
	for _, blocked := range BlockedSet(edges, lookup) {
		if blocked {
			stats.BlockedTasks++
		}
	}

	span.SetAttributes(
		attribute.Int("edge_count", stats.EdgeCount),
		attribute.Int("task_count", stats.TaskCount),
	)
	span.SetStatus(codes.Ok, "")
	return stats, nil
}
