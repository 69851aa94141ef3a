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

// FrameDescribe asks the vision model to describe the sampled frames.
type FrameDescribe struct {
	cor.BaseCommand
	describer FrameDescriber
}

// NewFrameDescribe is the constructor for FrameDescribe.
func NewFrameDescribe(name string, describer FrameDescriber) *FrameDescribe {
	return &FrameDescribe{BaseCommand: *cor.NewBaseCommand(name), describer: describer}
}

// IsExecutable requires the frames directory.
func (c *FrameDescribe) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && hasPath(context, ParamFramesDir)
}

// Execute stores the description under ParamVision.
func (c *FrameDescribe) Execute(context cor.Context) {
	text, err := c.describer.DescribeFrames(context.GetContext(), context.Get(ParamFramesDir).(string))
	if err != nil {
		c.Fail(context, err)
		return
	}
	slog.DebugContext(context.GetContext(), "frames described", "chars", len(text))
	c.Succeed(context)
	context.Add(ParamVision, text)
	context.Add(c.GetOutputParam(), text)
}
