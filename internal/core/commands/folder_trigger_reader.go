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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-media-indexer/internal/cloud"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// FolderTriggerReader parses a trigger message, {"folder_url": "..."}, and
// outputs the folder reference.
type FolderTriggerReader struct {
	cor.BaseCommand
}

// NewFolderTriggerReader is the constructor for FolderTriggerReader.
func NewFolderTriggerReader(name string) *FolderTriggerReader {
	return &FolderTriggerReader{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute parses the raw message held in the input parameter.
func (c *FolderTriggerReader) Execute(context cor.Context) {
	in, ok := context.Get(c.GetInputParam()).(string)
	if !ok {
		c.Fail(context, model.Ef(model.KindDecode, "commands.FolderTriggerReader", "expected a string message, got %T", context.Get(c.GetInputParam())))
		return
	}

	var trigger cloud.FolderTrigger
	if err := json.Unmarshal([]byte(in), &trigger); err != nil {
		c.Fail(context, model.E(model.KindDecode, "commands.FolderTriggerReader", fmt.Errorf("failed to unmarshal folder trigger: %w", err)))
		return
	}
	folder := strings.TrimSpace(trigger.FolderURL)
	if folder == "" {
		c.Fail(context, model.Ef(model.KindInvalidReference, "commands.FolderTriggerReader", "message has no folder_url"))
		return
	}

	c.Succeed(context)
	context.Add(ParamFolderURL, folder)
	context.Add(c.GetOutputParam(), folder)
}
