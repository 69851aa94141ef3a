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

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-media-indexer/internal/cloud"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/workflow"
	"github.com/jaycherian/gcp-go-media-indexer/internal/telemetry"
)

// StateManager holds what one CLI invocation needs.
type StateManager struct {
	config    *cloud.Config
	cloud     *cloud.ServiceClients
	deps      workflow.Dependencies
	ingestion *workflow.MediaIngestionWorkflow
	shutdown  func(context.Context) error
}

// SetupOS defaults the configuration directory to ./configs.
func SetupOS() error {
	if _, ok := os.LookupEnv(cloud.EnvConfigFilePrefix); !ok {
		return os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	}
	return nil
}

// InitState loads the configuration, sets up logging on stderr, telemetry
// and the clients, and builds the ingestion workflow.
func InitState(ctx context.Context, pretty bool) (*StateManager, error) {
	if err := SetupOS(); err != nil {
		return nil, err
	}
	config, err := cloud.Load()
	if err != nil {
		return nil, err
	}

	format := config.Application.LogFormat
	if pretty {
		format = telemetry.FormatConsole
	}
	telemetry.SetupLogging(os.Stderr, config.Application.LogLevel, format)

	state := &StateManager{config: config}
	if config.Application.TelemetryEnabled {
		if state.shutdown, err = telemetry.SetupOpenTelemetry(ctx, config); err != nil {
			return nil, err
		}
	}

	if state.cloud, err = cloud.NewCloudServiceClients(ctx, config); err != nil {
		return nil, err
	}
	if state.deps, err = workflow.NewDependencies(ctx, config, state.cloud); err != nil {
		state.cloud.Close()
		return nil, err
	}
	state.ingestion = workflow.NewMediaIngestionWorkflow(config, state.deps)
	slog.Debug("indexer ready", "videos", state.ingestion.Dirs().Videos)
	return state, nil
}

// Close flushes telemetry and releases the clients.
func (s *StateManager) Close(ctx context.Context) {
	if s.shutdown != nil {
		if err := s.shutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}
	if s.cloud != nil {
		s.cloud.Close()
	}
}
