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
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-media-indexer/internal/cloud"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// Uploader writes one object to Cloud Storage.
type Uploader interface {
	Upload(ctx context.Context, obj cloud.GCSObject, r io.Reader) error
}

// ThumbnailArchive copies the item's first frame to
// gs://<bucket>/<item id>/thumbnail.jpg. The archive is a convenience for
// the search API: a failure is logged and never fails the item.
type ThumbnailArchive struct {
	cor.BaseCommand
	uploader Uploader
	bucket   string
}

// NewThumbnailArchive is the constructor for ThumbnailArchive.
func NewThumbnailArchive(name string, uploader Uploader, bucket string) *ThumbnailArchive {
	return &ThumbnailArchive{BaseCommand: *cor.NewBaseCommand(name), uploader: uploader, bucket: bucket}
}

// IsExecutable requires the item and at least one frame.
func (c *ThumbnailArchive) IsExecutable(context cor.Context) bool {
	frames, ok := context.Get(ParamFrameSet).(*model.FrameSet)
	return ok && frames.Len() > 0 && Item(context) != nil && context.GetContext() != nil
}

// Execute uploads the first frame.
func (c *ThumbnailArchive) Execute(context cor.Context) {
	item := Item(context)
	frame := context.Get(ParamFrameSet).(*model.FrameSet).Frames[0]
	obj := cloud.ThumbnailObject(c.bucket, item.ID)

	if err := c.upload(context.GetContext(), obj, frame.Path); err != nil {
		if c.ErrorCounter != nil {
			c.ErrorCounter.Add(context.GetContext(), 1)
		}
		slog.WarnContext(context.GetContext(), "failed to archive thumbnail", "item", item.ID, "object", obj.Name, "error", err)
		return
	}
	c.Succeed(context)
	slog.InfoContext(context.GetContext(), "thumbnail archived", "item", item.ID, "bucket", obj.Bucket, "object", obj.Name)
}

func (c *ThumbnailArchive) upload(ctx context.Context, obj cloud.GCSObject, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return c.uploader.Upload(ctx, obj, file)
}
