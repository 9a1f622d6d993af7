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
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianTasks/pkg/logging"
	"github.com/AleutianAI/AleutianTasks/services/planner/depgraph"
	"github.com/AleutianAI/AleutianTasks/services/planner/telemetry"
)

// configValidate validates CLI configuration structs.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
}

// Config is the planner CLI configuration, loaded from planner.yaml.
//
// Every field has a usable default, so the CLI runs without any config
// file at all. A config file overrides only the keys it sets.
type Config struct {
	// Storage configures the edge database.
	Storage StorageConfig `yaml:"storage"`

	// TasksFile points at the YAML task snapshot. Tasks are owned by
	// the calling application; the planner reads them, never writes.
	// Empty means no snapshot: edges are managed standalone and chain
	// nodes report missing tasks.
	TasksFile string `yaml:"tasks_file"`

	// MaxDependencies caps direct blockers per task. Zero means the
	// engine default.
	MaxDependencies int `yaml:"max_dependencies" validate:"gte=0,lte=1000"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`

	// Telemetry configures tracing and metrics export.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// StorageConfig selects and tunes the edge store backend.
type StorageConfig struct {
	// Path is the BadgerDB directory. Supports ~ expansion.
	Path string `yaml:"path" validate:"required_without=InMemory"`

	// InMemory runs the store without disk persistence. Edges vanish
	// when the process exits; useful for experiments and tests.
	InMemory bool `yaml:"in_memory"`

	// SyncWrites fsyncs every write. Edges are the system of record,
	// so this defaults to true.
	SyncWrites bool `yaml:"sync_writes"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is the minimum severity: debug, info, warn, or error.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`

	// Dir enables file logging to the given directory when set.
	Dir string `yaml:"dir"`

	// JSON switches stderr output to JSON format.
	JSON bool `yaml:"json"`

	// Quiet suppresses stderr logging entirely.
	Quiet bool `yaml:"quiet"`
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	return configValidate.Struct(c)
}

// DefaultConfig returns the configuration used when no planner.yaml
// exists.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			Path:       "~/.aleutian/planner/edges",
			SyncWrites: true,
		},
		MaxDependencies: depgraph.DefaultMaxDependencies,
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// LoadConfig reads the configuration file at path.
//
// Inputs:
//
//	path - Config file location.
//	mustExist - When true a missing file is an error. When false a
//	    missing file silently yields DefaultConfig, so the CLI works
//	    out of the box.
//
// Outputs:
//
//	Config - Defaults overlaid with whatever the file sets.
//	error - Non-nil for unreadable files, malformed YAML, or values
//	    that fail validation.
func LoadConfig(path string, mustExist bool) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// logLevel maps the config level string onto a logging.Level.
func (c LogConfig) logLevel() logging.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
