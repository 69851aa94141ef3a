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

// DescriptionCombine joins the vision description and the transcript into
// the text that gets embedded.
type DescriptionCombine struct {
	cor.BaseCommand
}

// NewDescriptionCombine is the constructor for DescriptionCombine.
func NewDescriptionCombine(name string) *DescriptionCombine {
	return &DescriptionCombine{BaseCommand: *cor.NewBaseCommand(name)}
}

// IsExecutable requires both texts, which may be empty.
func (c *DescriptionCombine) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil &&
		hasString(context, ParamVision) && hasString(context, ParamTranscript)
}

// Execute stores a *model.DescriptionRecord under ParamDescription.
func (c *DescriptionCombine) Execute(context cor.Context) {
	record := model.NewDescriptionRecord(context.Get(ParamVision).(string), context.Get(ParamTranscript).(string))
	c.Succeed(context)
	advance(context, model.StateDescribed)
	context.Add(ParamDescription, record)
	context.Add(c.GetOutputParam(), record)
}
