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

// Package main is the entry point for the media indexer server.
//
// The server exposes the index over HTTP with gin (similarity search,
// signed thumbnail links and synchronous ingestion runs) and listens on the
// configured Pub/Sub subscriptions for folder triggers. Requests and
// pipeline stages are traced with OpenTelemetry.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaycherian/gcp-go-media-indexer/internal/api"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state, err := InitState(ctx)
	if err != nil {
		return err
	}
	defer state.Close(context.Background())

	SetupListeners(ctx, state)

	runTimeout := time.Duration(state.config.Server.RunTimeoutSeconds) * time.Second
	router := api.NewRouter(&api.Server{
		Search:     state.deps.Searcher,
		Thumbnails: state.mediaService,
		Ingest:     state.ingestion,
		RunTimeout: runTimeout,
		URLExpiry:  15 * time.Minute,
	})

	addr := fmt.Sprintf(":%d", state.config.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 20 * time.Second,
		// POST /ingest answers when the run is over.
		WriteTimeout: runTimeout + 30*time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	slog.Info("server ready", "addr", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return err
	}
	slog.Info("shutting down server")

	// Stops the listeners and aborts a run in progress between items.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	return nil
}
