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

package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ItemState is the position of an item in the per-item state machine:
//
//	Pending -> Downloaded -> AudioExtracted -> FramesExtracted -> Described
//	        -> Embedded -> Stored -> Done
//
// Failed is reachable from every non-terminal state.
type ItemState int

const (
	StatePending ItemState = iota
	StateDownloaded
	StateAudioExtracted
	StateFramesExtracted
	StateDescribed
	StateEmbedded
	StateStored
	StateDone
	StateFailed
)

var stateNames = [...]string{
	"Pending",
	"Downloaded",
	"AudioExtracted",
	"FramesExtracted",
	"Described",
	"Embedded",
	"Stored",
	"Done",
	"Failed",
}

func (s ItemState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// MarshalJSON writes the state by name.
func (s ItemState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Terminal reports whether no further transition is possible.
func (s ItemState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// ItemResult is the outcome of processing one item.
type ItemResult struct {
	Item        ItemDescriptor `json:"item"`
	State       ItemState      `json:"state"`
	FailedStage string         `json:"failed_stage,omitempty"` // Command that moved the item to Failed.
	Err         error          `json:"-"`
	Error       string         `json:"error,omitempty"`
	Stored      bool           `json:"stored"` // True when the index accepted the record.
	Duration    time.Duration  `json:"duration"`
}

// Succeeded reports whether the item reached Done with its record stored.
func (r *ItemResult) Succeeded() bool {
	return r.State == StateDone && r.Stored
}

// PartiallyStored reports whether the item was processed but its record
// never reached the index.
func (r *ItemResult) PartiallyStored() bool {
	return r.State == StateDone && !r.Stored
}

// RunSummary accumulates the outcome of one pipeline run.
type RunSummary struct {
	RunID           string        `json:"run_id"`
	Folder          string        `json:"folder"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
	Results         []*ItemResult `json:"results"`
	Succeeded       int           `json:"succeeded"`
	Failed          int           `json:"failed"`
	PartiallyStored int           `json:"partially_stored"`
	Diagnostics     []*Match      `json:"diagnostics,omitempty"`
}

// NewRunSummary starts a summary with a fresh run id.
func NewRunSummary(folder string) *RunSummary {
	return &RunSummary{
		RunID:     uuid.New().String(),
		Folder:    folder,
		StartedAt: time.Now(),
		Results:   make([]*ItemResult, 0),
	}
}

// Add records one item result and updates the counters.
func (s *RunSummary) Add(result *ItemResult) {
	if result.Err != nil && result.Error == "" {
		result.Error = result.Err.Error()
	}
	s.Results = append(s.Results, result)
	switch {
	case result.Succeeded():
		s.Succeeded++
	case result.PartiallyStored():
		s.PartiallyStored++
	default:
		s.Failed++
	}
}

// Finish stamps the end time.
func (s *RunSummary) Finish() {
	s.FinishedAt = time.Now()
}

// Total returns the number of items attempted.
func (s *RunSummary) Total() int {
	return len(s.Results)
}
