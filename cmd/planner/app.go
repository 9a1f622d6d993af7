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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianTasks/pkg/logging"
	"github.com/AleutianAI/AleutianTasks/services/planner/depgraph"
	"github.com/AleutianAI/AleutianTasks/services/planner/edgestore"
	"github.com/AleutianAI/AleutianTasks/services/planner/task"
	"github.com/AleutianAI/AleutianTasks/services/planner/telemetry"
)

// app bundles the components a command handler needs: the edge store,
// the task snapshot, the dependency service, and the telemetry
// lifecycle. Handlers construct one per invocation and must close it
// before the process exits.
type app struct {
	cfg     Config
	logger  *logging.Logger
	store   *edgestore.BadgerStore
	source  *task.StaticSource
	service *depgraph.Service
	tracer  trace.Tracer

	telemetryShutdown func(context.Context) error
	metricsServer     *http.Server
}

// newApp wires up the planner from the global config.
//
// Outputs:
//
//	*app - Ready-to-use components. Caller must Close().
//	error - Non-nil if any component fails to initialize. Components
//	    brought up before the failure are torn down again.
func newApp(ctx context.Context) (*app, error) {
	logger := logging.New(logging.Config{
		Level:   config.Log.logLevel(),
		LogDir:  config.Log.Dir,
		Service: "planner",
		JSON:    config.Log.JSON,
		Quiet:   config.Log.Quiet,
	})
	slogger := logger.Slog()

	shutdown, err := telemetry.Init(ctx, config.Telemetry)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	a := &app{
		cfg:               config,
		logger:            logger,
		tracer:            otel.Tracer("aleutian.planner.cli"),
		telemetryShutdown: shutdown,
	}

	if config.Telemetry.MetricExporter == "prometheus" {
		a.metricsServer = startMetricsServer(config.Telemetry.PrometheusPort, slogger)
	}

	store, err := edgestore.NewBadgerStore(edgestore.BadgerConfig{
		Path:       expandHome(config.Storage.Path),
		InMemory:   config.Storage.InMemory,
		SyncWrites: config.Storage.SyncWrites,
		// No GC loop: CLI invocations are short-lived.
		GCInterval: 0,
		Logger:     slogger,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("open edge store: %w", err)
	}
	a.store = store

	source, err := loadTaskSource(config.TasksFile)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.source = source

	validator := depgraph.NewValidator(
		depgraph.WithMaxDependencies(config.MaxDependencies),
	)
	service, err := depgraph.NewService(store, source, slogger,
		depgraph.WithServiceValidator(validator),
	)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("build dependency service: %w", err)
	}
	a.service = service

	return a, nil
}

// startMetricsServer serves /metrics in the background for scrape
// during long-running commands. Best effort: a busy port logs a
// warning instead of failing the command.
func startMetricsServer(port int, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.MetricsHandler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics listener stopped", slog.Int("port", port), slog.String("error", err.Error()))
		}
	}()

	return srv
}

// startCommand opens the root span for a CLI invocation and returns a
// logger correlated with it. Every log line under the command carries
// the command name plus trace and span ids.
func (a *app) startCommand(ctx context.Context, name string) (context.Context, trace.Span, *slog.Logger) {
	ctx, span := a.tracer.Start(ctx, "planner."+name)
	return ctx, span, telemetry.LoggerWithCommand(ctx, a.logger.Slog(), name)
}

// Close releases everything newApp opened, flushing telemetry last so
// spans recorded during store shutdown still export.
func (a *app) Close(ctx context.Context) error {
	var errs []error

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics listener: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close edge store: %w", err))
		}
	}
	if a.telemetryShutdown != nil {
		if err := a.telemetryShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close logger: %w", err))
		}
	}

	return errors.Join(errs...)
}

// exitApp closes the app and terminates the process. os.Exit skips
// deferred calls, so the store must be closed explicitly first.
func exitApp(ctx context.Context, a *app, code int) {
	if a != nil {
		if err := a.Close(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: shutdown: %v\n", err)
		}
	}
	os.Exit(code)
}
