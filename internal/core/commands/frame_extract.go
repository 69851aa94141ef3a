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
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// FrameExtract samples a fixed number of frames into the frames directory.
type FrameExtract struct {
	cor.BaseCommand
	sampler   Sampler
	framesDir string
	numFrames int
}

// NewFrameExtract is the constructor for FrameExtract.
func NewFrameExtract(name string, sampler Sampler, framesDir string, numFrames int) *FrameExtract {
	return &FrameExtract{
		BaseCommand: *cor.NewBaseCommand(name),
		sampler:     sampler,
		framesDir:   framesDir,
		numFrames:   numFrames,
	}
}

// IsExecutable requires the downloaded video.
func (c *FrameExtract) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && hasPath(context, ParamVideoPath)
}

// Execute samples the frames. The directory is registered for emptying
// first so frames written before a failure are removed too.
func (c *FrameExtract) Execute(context cor.Context) {
	video := context.Get(ParamVideoPath).(string)
	context.AddTempDir(c.framesDir)

	frames, err := c.sampler.ExtractEvenlySpreadFrames(context.GetContext(), video, c.framesDir, c.numFrames)
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
	advance(context, model.StateFramesExtracted)
	context.Add(ParamFrameSet, frames)
	context.Add(ParamFramesDir, c.framesDir)
	context.Add(c.GetOutputParam(), frames)
}
