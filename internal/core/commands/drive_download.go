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
	"strings"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// DriveDownload downloads the item's video into the videos directory.
//
// Logic Flow:
//  1. The item descriptor is read from the input parameter.
//  2. The file is fetched into videosDir. The name comes from the
//     Content-Disposition header, or downloaded_file_<id>.
//  3. The file is registered for removal before anything else can fail, so
//     cleanup runs even when the next stage rejects it.
//  4. When the content sniffs as a known non-video type (an image, an
//     archive) the item fails with a decode error.
//  5. The path is written to ParamVideoPath and the output parameter.
type DriveDownload struct {
	cor.BaseCommand
	fetcher   Fetcher
	videosDir string
}

// NewDriveDownload is the constructor for DriveDownload.
func NewDriveDownload(name string, fetcher Fetcher, videosDir string) *DriveDownload {
	return &DriveDownload{BaseCommand: *cor.NewBaseCommand(name), fetcher: fetcher, videosDir: videosDir}
}

// IsExecutable requires an item descriptor.
func (c *DriveDownload) IsExecutable(context cor.Context) bool {
	item, ok := context.Get(c.GetInputParam()).(*model.ItemDescriptor)
	return ok && item != nil && context.GetContext() != nil
}

// Execute downloads the item.
func (c *DriveDownload) Execute(context cor.Context) {
	item := context.Get(c.GetInputParam()).(*model.ItemDescriptor)

	path, err := c.fetcher.Download(context.GetContext(), item.SourceURL, c.videosDir, "")
	if err != nil {
		c.Fail(context, err)
		return
	}
	context.AddTempFile(path)

	if kind, err := filetype.MatchFile(path); err == nil && kind != filetype.Unknown && !strings.HasPrefix(kind.MIME.Value, "video/") {
		c.Fail(context, model.Ef(model.KindDecode, "commands.DriveDownload", "%s is %s, not a video", item.SourceURL, kind.MIME.Value))
		return
	}

	slog.DebugContext(context.GetContext(), "video downloaded", "item", item.ID, "path", path)
	c.Succeed(context)
	advance(context, model.StateDownloaded)
	context.Add(ParamVideoPath, path)
	context.Add(c.GetOutputParam(), path)
}
