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

	"github.com/jaycherian/gcp-go-media-indexer/internal/core/workflow"
)

// SetupListeners attaches the folder trigger workflow to every configured
// Pub/Sub subscription and starts receiving. Each message carries
// {"folder_url": "..."}; runs triggered this way share the ingestion lock
// with the HTTP route, so they queue behind each other.
func SetupListeners(ctx context.Context, state *StateManager) {
	for name, listener := range state.cloud.PubSubListeners {
		listener.SetCommand(workflow.NewFolderTriggerWorkflow(state.ingestion))
		listener.Listen(ctx)
		slog.Info("folder trigger listening", "name", name)
	}
}
