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

// Package model defines the data structures shared by every stage of the
// ingestion pipeline. This file holds the per-item records that flow from the
// folder listing through to the vector index.
//
// Structs:
//   - ItemDescriptor: One video discovered in a shared folder.
//   - Frame / FrameSet: The still images sampled from a video.
//   - DescriptionRecord: Vision description plus transcript, combined for embedding.
//   - IndexMetadata / IndexRecord: What is written to the vector index.
//   - Match: One result of a similarity query.
package model

import "strings"

// DescriptionSeparator joins the vision description and the transcript.
const DescriptionSeparator = "\n"

// ItemDescriptor identifies one unit of work. It is produced by folder
// enumeration and never modified afterwards.
type ItemDescriptor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SourceURL string `json:"source_url"`
}

// Frame is a single decoded still image.
type Frame struct {
	Index     int     `json:"index"`     // Zero based position in the set.
	Timestamp float64 `json:"timestamp"` // Seconds from the start of the video.
	Path      string  `json:"path"`      // Local image path, frame_%04d.jpg.
}

// FrameSet is the ordered output of the frame sampler. Timestamps are
// non-decreasing and never exceed Duration.
type FrameSet struct {
	Duration float64 `json:"duration"`
	Frames   []Frame `json:"frames"`
}

// Len returns the number of frames in the set.
func (f *FrameSet) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Frames)
}

// Timestamps returns the sample time of each frame, in order.
func (f *FrameSet) Timestamps() []float64 {
	out := make([]float64, 0, f.Len())
	if f == nil {
		return out
	}
	for _, fr := range f.Frames {
		out = append(out, fr.Timestamp)
	}
	return out
}

// DescriptionRecord holds the text derived from one item. It only lives
// long enough to be embedded.
type DescriptionRecord struct {
	Vision       string `json:"vision"`
	Transcript   string `json:"transcript"`
	CombinedText string `json:"combined_text"`
}

// NewDescriptionRecord joins the vision description and the transcript with
// DescriptionSeparator.
func NewDescriptionRecord(vision string, transcript string) *DescriptionRecord {
	return &DescriptionRecord{
		Vision:       vision,
		Transcript:   transcript,
		CombinedText: strings.Join([]string{vision, transcript}, DescriptionSeparator),
	}
}

// IndexMetadata is stored next to every vector.
type IndexMetadata struct {
	Name string `json:"name" bigquery:"name"`
	URL  string `json:"url" bigquery:"url"`
}

// IndexRecord is written once per successfully processed item. Writing the
// same ID again overwrites the previous record.
type IndexRecord struct {
	ID       string        `json:"id"`
	Vector   []float32     `json:"vector"`
	Metadata IndexMetadata `json:"metadata"`
}

// NewIndexRecord builds the record for an item from its embedding.
func NewIndexRecord(item *ItemDescriptor, vector []float32) *IndexRecord {
	return &IndexRecord{
		ID:       item.ID,
		Vector:   vector,
		Metadata: IndexMetadata{Name: item.Name, URL: item.SourceURL},
	}
}

// Match is one similarity query result. Higher scores are more similar.
type Match struct {
	ID       string        `json:"id" bigquery:"id"`
	Score    float64       `json:"score" bigquery:"score"`
	Metadata IndexMetadata `json:"metadata" bigquery:"metadata"`
}
