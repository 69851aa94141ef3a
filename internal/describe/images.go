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

// Package describe turns media into text: a vision model describes the
// sampled frames of a video and a speech model transcribes its soundtrack.
package describe

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// imageExtensions are the frame files sent to the vision model.
var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// ListFrameImages returns the image files of dir in lexicographic order,
// which is capture order for frame_%04d names.
func ListFrameImages(dir string) ([]string, error) {
	const op = "describe.ListFrameImages"
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.Ef(model.KindNotFound, op, "frames directory %s does not exist", dir)
	}
	if err != nil {
		return nil, model.E(model.KindNotFound, op, err)
	}
	images := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			images = append(images, filepath.Join(dir, entry.Name()))
		}
	}
	if len(images) == 0 {
		return nil, model.Ef(model.KindNoImages, op, "no .png, .jpg or .jpeg files in %s", dir)
	}
	sort.Strings(images)
	return images, nil
}

// MIMEType sniffs the content type of file, falling back to its extension.
func MIMEType(file string) string {
	if kind, err := filetype.MatchFile(file); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		if m, ok := imageExtensions[ext]; ok {
			return m
		}
	}
	return "application/octet-stream"
}
