// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package test provides helpers and fixtures shared by the test suites:
// loading the test configuration, trigger messages and a fake Drive server.
package test

import (
	"encoding/json"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jaycherian/gcp-go-media-indexer/internal/cloud"
)

// HandleErr fails the test when err is set.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// ConfigDir returns the absolute path of the repository's configs directory.
func ConfigDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "configs")
}

// SetupOS points the configuration loader at configs/ with the "test"
// runtime for the duration of t.
func SetupOS(t *testing.T) {
	t.Helper()
	t.Setenv(cloud.EnvConfigFilePrefix, ConfigDir())
	t.Setenv(cloud.EnvConfigRuntime, "test")
}

// GetConfig loads configs/.env.toml overlaid with configs/.env.test.toml.
// The work directory is moved to a fresh temporary directory.
func GetConfig(t *testing.T) *cloud.Config {
	t.Helper()
	SetupOS(t)
	config := cloud.NewConfig()
	if err := cloud.LoadConfig(config); err != nil {
		t.Fatalf("failed to load test configuration: %v", err)
	}
	config.Pipeline.WorkDir = t.TempDir()
	return config
}

// GetTestFolderTriggerMessage returns the Pub/Sub body that requests the
// ingestion of folderURL.
func GetTestFolderTriggerMessage(folderURL string) string {
	data, _ := json.Marshal(cloud.FolderTrigger{FolderURL: folderURL})
	return string(data)
}
