// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry provides OpenTelemetry-based observability for the
// planner.
//
// This package initializes the OTel SDK for tracing and metrics, keeping
// the backend swappable through exporter configuration.
//
// # Philosophy
//
// Be opinionated about the API, flexible about the backend. OpenTelemetry
// IS the abstraction layer: packages use otel.Tracer() directly and
// deployments swap backends by changing exporter configuration, not code.
//
// # Defaults
//
// Unlike a resident service, the planner is usually a short-lived CLI
// process, so both exporters default to "none". Set OTEL_TRACES_EXPORTER
// and OTEL_METRICS_EXPORTER (or the config file equivalents) when running
// under a collector:
//
//   - Traces: "otlp" (any OTLP receiver, e.g. Jaeger 1.35+), "stdout", "none"
//   - Metrics: "prometheus" (exposed via MetricsHandler), "stdout", "none"
//
// # Logging
//
// Uses slog (stdlib) for structured logging. LoggerWithTrace injects
// trace_id and span_id into log entries for correlation.
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// # Environment Variables
//
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - ALEUTIAN_ENV: environment name (default: development)
//
// # Thread Safety
//
// Init is called once at startup; everything else is safe for concurrent
// use.
package telemetry
