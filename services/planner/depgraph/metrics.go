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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all planner metrics.
const metricsNamespace = "aleutian"

// Subsystem for dependency graph metrics.
const metricsSubsystem = "depgraph"

// Validation outcome label values.
const (
	outcomeAllowed   = "allowed"
	outcomeSelf      = "self_dependency"
	outcomeDuplicate = "duplicate"
	outcomeLimit     = "limit_exceeded"
	outcomeCycle     = "cycle_detected"
	outcomeError     = "error"
)

var (
	// validationsTotal counts dependency admission checks by outcome.
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "validations_total",
		Help:      "Dependency admission checks by outcome",
	}, []string{"outcome"})

	// edgesCreatedTotal counts dependency edges written to the store.
	edgesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "edges_created_total",
		Help:      "Dependency edges created",
	})

	// edgesRemovedTotal counts dependency edges removed from the store.
	edgesRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "edges_removed_total",
		Help:      "Dependency edges removed",
	})

	// traversalDuration tracks chain traversal latency by direction.
	traversalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "traversal_duration_seconds",
		Help:      "Chain traversal duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~400ms
	}, []string{"direction"})

	// integrityFindings reports findings from the last integrity check
	// by kind.
	integrityFindings = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "integrity_findings",
		Help:      "Findings reported by the last integrity check, by kind",
	}, []string{"kind"})
)

// validationOutcome maps a CanAdd error to its metric label.
func validationOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeAllowed
	case errors.Is(err, ErrSelfDependency):
		return outcomeSelf
	case errors.Is(err, ErrDuplicateDependency):
		return outcomeDuplicate
	case errors.Is(err, ErrLimitExceeded):
		return outcomeLimit
	case errors.Is(err, ErrCycleDetected):
		return outcomeCycle
	default:
		return outcomeError
	}
}
