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
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// IndexUpsert writes the item's record to the vector index.
//
// Logic Flow:
//  1. The record is built from the item descriptor and ParamVector.
//  2. On success ParamStored is set and the item reaches Stored.
//  3. On failure with strict set, the error is recorded and the item fails.
//  4. On failure without strict, the error is kept under ParamUpsertError
//     and only logged; the item finishes without a stored record.
type IndexUpsert struct {
	cor.BaseCommand
	store  IndexStore
	strict bool
}

// NewIndexUpsert is the constructor for IndexUpsert.
func NewIndexUpsert(name string, store IndexStore, strict bool) *IndexUpsert {
	return &IndexUpsert{BaseCommand: *cor.NewBaseCommand(name), store: store, strict: strict}
}

// IsExecutable requires the item and its vector.
func (c *IndexUpsert) IsExecutable(context cor.Context) bool {
	vector, ok := context.Get(ParamVector).([]float32)
	return ok && len(vector) > 0 && Item(context) != nil && context.GetContext() != nil
}

// Execute performs the upsert.
func (c *IndexUpsert) Execute(context cor.Context) {
	item := Item(context)
	record := model.NewIndexRecord(item, context.Get(ParamVector).([]float32))

	if err := c.store.Upsert(context.GetContext(), record); err != nil {
		if c.strict {
			c.Fail(context, err)
			return
		}
		if c.ErrorCounter != nil {
			c.ErrorCounter.Add(context.GetContext(), 1)
		}
		slog.WarnContext(context.GetContext(), "index upsert failed, continuing without a stored record",
			"item", item.ID, "error", err)
		context.Add(ParamStored, false)
		context.Add(ParamUpsertError, err)
		return
	}
	c.Succeed(context)
	advance(context, model.StateStored)
	context.Add(ParamStored, true)
	context.Add(c.GetOutputParam(), record)
}
