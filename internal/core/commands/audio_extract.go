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
	"path/filepath"

	"github.com/jaycherian/gcp-go-media-indexer/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// AudioExtract writes the video's soundtrack into the audios directory.
type AudioExtract struct {
	cor.BaseCommand
	extractor AudioExtractor
	audiosDir string
	filename  string
}

// NewAudioExtract is the constructor for AudioExtract. filename selects the
// encoding, audio.mp3 or audio.wav.
func NewAudioExtract(name string, extractor AudioExtractor, audiosDir string, filename string) *AudioExtract {
	return &AudioExtract{
		BaseCommand: *cor.NewBaseCommand(name),
		extractor:   extractor,
		audiosDir:   audiosDir,
		filename:    filename,
	}
}

// IsExecutable requires the downloaded video.
func (c *AudioExtract) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && hasPath(context, ParamVideoPath)
}

// Execute runs the extraction. The target is registered for removal first
// because ffmpeg may leave a partial file behind.
func (c *AudioExtract) Execute(context cor.Context) {
	video := context.Get(ParamVideoPath).(string)
	context.AddTempFile(filepath.Join(c.audiosDir, c.filename))

	path, err := c.extractor.VideoToAudio(context.GetContext(), video, c.audiosDir, c.filename)
	if err != nil {
		c.Fail(context, err)
		return
	}
	context.AddTempFile(path)
	c.Succeed(context)
	advance(context, model.StateAudioExtracted)
	context.Add(ParamAudioPath, path)
	context.Add(c.GetOutputParam(), path)
}
