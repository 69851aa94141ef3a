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

package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-media-indexer/internal/core/cor"
)

// ArtifactCleanup removes the item's local artifacts: the video and the
// soundtrack are deleted and the frames directory is emptied but kept. It
// runs in the finally sequence, so it sees every exit path. Failures are
// logged by the context and never recorded as item errors.
type ArtifactCleanup struct {
	cor.BaseCommand
}

// NewArtifactCleanup is the constructor for ArtifactCleanup.
func NewArtifactCleanup(name string) *ArtifactCleanup {
	return &ArtifactCleanup{BaseCommand: *cor.NewBaseCommand(name)}
}

// IsExecutable only needs a context.
func (c *ArtifactCleanup) IsExecutable(context cor.Context) bool {
	return context != nil
}

// Execute closes the context.
func (c *ArtifactCleanup) Execute(context cor.Context) {
	files, dirs := len(context.GetTempFiles()), len(context.GetTempDirs())
	context.Close()
	c.Succeed(context)
	slog.DebugContext(context.GetContext(), "artifacts removed", "files", files, "dirs", dirs)
}
