// Copyright (C) 2026 TheGreenCedar
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServiceConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadServiceConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.MaxCachedIndexes != 8 || cfg.WorkerCount != 0 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Policy.MaxCandidates == 0 {
		t.Error("default policy not applied")
	}
}

func TestLoadServiceConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.yaml")
	content := []byte("worker_count: 4\nmax_cached_indexes: 2\npolicy:\n  max_candidates: 3\n  same_module_first: false\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadServiceConfig(path)
	if err != nil {
		t.Fatalf("LoadServiceConfig: %v", err)
	}
	if cfg.WorkerCount != 4 || cfg.MaxCachedIndexes != 2 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Policy.MaxCandidates != 3 || cfg.Policy.SameModuleFirst {
		t.Errorf("policy not loaded: %+v", cfg.Policy)
	}
}

func TestLoadServiceConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.yaml")
	if err := os.WriteFile(path, []byte("max_cached_indexes: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadServiceConfig(path); err == nil {
		t.Error("config failing validation should error")
	}
}
