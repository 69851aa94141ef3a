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

// TextEmbed embeds the combined description.
type TextEmbed struct {
	cor.BaseCommand
	embedder Embedder
}

// NewTextEmbed is the constructor for TextEmbed.
func NewTextEmbed(name string, embedder Embedder) *TextEmbed {
	return &TextEmbed{BaseCommand: *cor.NewBaseCommand(name), embedder: embedder}
}

// IsExecutable requires the description record.
func (c *TextEmbed) IsExecutable(context cor.Context) bool {
	record, ok := context.Get(ParamDescription).(*model.DescriptionRecord)
	return ok && record != nil && context.GetContext() != nil
}

// Execute stores the vector under ParamVector.
func (c *TextEmbed) Execute(context cor.Context) {
	record := context.Get(ParamDescription).(*model.DescriptionRecord)
	vector, err := c.embedder.Embed(context.GetContext(), record.CombinedText)
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
	advance(context, model.StateEmbedded)
	context.Add(ParamVector, vector)
	context.Add(c.GetOutputParam(), vector)
}
