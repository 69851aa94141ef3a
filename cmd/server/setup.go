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

// Package main wires the process state: configuration, logging, telemetry,
// service clients, pipeline collaborators and the services behind the HTTP
// routes.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-media-indexer/internal/cloud"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/services"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/workflow"
	"github.com/jaycherian/gcp-go-media-indexer/internal/telemetry"
)

// StateManager holds the dependencies shared by the routes and listeners.
type StateManager struct {
	config       *cloud.Config
	cloud        *cloud.ServiceClients
	deps         workflow.Dependencies
	ingestion    *workflow.MediaIngestionWorkflow
	mediaService *services.MediaService
	shutdown     func(context.Context) error
}

// SetupOS points the configuration loader at ./configs with the "local"
// overrides unless the environment already says otherwise.
func SetupOS() error {
	if _, ok := os.LookupEnv(cloud.EnvConfigFilePrefix); !ok {
		if err := os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if _, ok := os.LookupEnv(cloud.EnvConfigRuntime); !ok {
		return os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return nil
}

// InitState builds the StateManager.
//
// Logic Flow:
//  1. Configuration: TOML files, .env, environment, validation.
//  2. Logging with the configured level and format, then OpenTelemetry.
//  3. Service clients, then the pipeline collaborators (the index table is
//     created when missing).
//  4. The ingestion workflow and the thumbnail signing service.
func InitState(ctx context.Context) (*StateManager, error) {
	if err := SetupOS(); err != nil {
		return nil, err
	}
	config, err := cloud.Load()
	if err != nil {
		return nil, err
	}

	telemetry.SetupLogging(os.Stdout, config.Application.LogLevel, config.Application.LogFormat)
	slog.Info("logging initialized", "level", config.Application.LogLevel, "format", config.Application.LogFormat)

	state := &StateManager{config: config, shutdown: func(context.Context) error { return nil }}
	if config.Application.TelemetryEnabled {
		shutdown, err := telemetry.SetupOpenTelemetry(ctx, config)
		if err != nil {
			return nil, err
		}
		state.shutdown = shutdown
		slog.Info("tracing initialized")
	}

	clients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return nil, err
	}
	state.cloud = clients

	deps, err := workflow.NewDependencies(ctx, config, clients)
	if err != nil {
		clients.Close()
		return nil, err
	}
	state.deps = deps
	state.ingestion = workflow.NewMediaIngestionWorkflow(config, deps)

	if clients.IAMClient != nil {
		state.mediaService = services.NewMediaService(clients.IAMClient, config.Application.SignerServiceAccountEmail, config.Storage.ArchiveBucket)
	} else {
		state.mediaService = services.NewMediaServiceWithSigner(config.Storage.ArchiveBucket, "", nil)
	}
	slog.Info("initialized state",
		"index_backend", config.Pipeline.IndexBackend,
		"transcriber", config.Pipeline.Transcriber,
		"archive_bucket", config.Storage.ArchiveBucket)
	return state, nil
}

// Close flushes telemetry and releases the clients.
func (s *StateManager) Close(ctx context.Context) {
	var errs []error
	if s.shutdown != nil {
		errs = append(errs, s.shutdown(ctx))
	}
	if s.cloud != nil {
		s.cloud.Close()
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("telemetry shutdown failed", "error", err)
	}
}
