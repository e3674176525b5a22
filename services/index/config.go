// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/TheGreenCedar/CodeStory/services/index/resolve"
)

// ServiceConfig holds tunables for the index service.
//
// Description:
//
//	Loaded from an optional YAML file. A missing config file is not an
//	error; every field has a working default.
//
// Thread Safety: safe for concurrent reads after construction.
type ServiceConfig struct {
	// WorkerCount is the number of parallel workers for per-file
	// phases. 0 means runtime.NumCPU().
	WorkerCount int `yaml:"worker_count" validate:"gte=0"`

	// MaxCachedIndexes bounds the number of built indexes kept in
	// memory. Oldest is evicted first.
	MaxCachedIndexes int `yaml:"max_cached_indexes" validate:"gte=1"`

	// SnapshotDBPath is the BadgerDB directory for call-graph
	// snapshots. Empty disables snapshot persistence.
	SnapshotDBPath string `yaml:"snapshot_db_path"`

	// Policy tunes the name+arity resolution fallback.
	Policy resolve.HeuristicPolicy `yaml:"policy"`
}

// DefaultServiceConfig returns a config with working defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		WorkerCount:      0,
		MaxCachedIndexes: 8,
		Policy:           resolve.DefaultHeuristicPolicy(),
	}
}

// LoadServiceConfig reads a YAML config file and validates it.
//
// Description:
//
//	An empty path or a missing file returns the defaults with no
//	error. A file that exists but cannot be parsed or fails
//	validation is an error.
func LoadServiceConfig(path string) (ServiceConfig, error) {
	cfg := DefaultServiceConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}
