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

package workflow

import (
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/cor"
)

// FolderRun runs the ingestion of the folder held in its input parameter.
type FolderRun struct {
	cor.BaseCommand
	ingestion *MediaIngestionWorkflow
}

// NewFolderRun is the constructor for FolderRun.
func NewFolderRun(name string, ingestion *MediaIngestionWorkflow) *FolderRun {
	return &FolderRun{BaseCommand: *cor.NewBaseCommand(name), ingestion: ingestion}
}

// Execute waits for the work directories and runs. Item failures are in
// the summary; only a run-level error is recorded.
func (c *FolderRun) Execute(context cor.Context) {
	folder := context.Get(c.GetInputParam()).(string)
	summary, err := c.ingestion.Run(context.GetContext(), folder)
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
	context.Add(c.GetOutputParam(), summary)
}

// NewFolderTriggerWorkflow returns the chain attached to the Pub/Sub
// listeners: parse the trigger message, then run the folder.
func NewFolderTriggerWorkflow(ingestion *MediaIngestionWorkflow) cor.Chain {
	out := cor.NewBaseChain("folder-trigger")
	out.AddCommand(commands.NewFolderTriggerReader("folder-trigger-reader"))
	out.AddCommand(NewFolderRun("folder-run", ingestion))
	return out
}
