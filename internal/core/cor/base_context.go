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

// Package cor (Chain of Responsibility) provides the building blocks the
// ingestion pipeline is assembled from. This file defines BaseContext, the
// default Context.
//
// BaseContext holds:
//   - data: arbitrary values shared between commands.
//   - errors: the errors raised by commands, keyed by command name, plus the
//     order in which they were raised.
//   - tempFiles: files that must be deleted when the item is finished.
//   - tempDirs: directories that must be emptied (but kept) when the item is
//     finished.
//   - context: the Go context carrying cancellation and the current span.
package cor

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-media-indexer/internal/fsx"
)

// BaseContext is the default implementation of the Context interface.
type BaseContext struct {
	data       map[string]interface{}
	errors     map[string]error
	errorOrder []string
	tempFiles  []string
	tempDirs   []string
	context    context.Context
}

// NewBaseContext returns an empty Context with a background Go context.
func NewBaseContext() Context {
	return &BaseContext{
		data:      make(map[string]interface{}),
		errors:    make(map[string]error),
		tempFiles: make([]string, 0),
		tempDirs:  make([]string, 0),
		context:   context.Background(),
	}
}

// SetContext sets the Go context.
func (c *BaseContext) SetContext(context context.Context) {
	c.context = context
}

// GetContext returns the Go context.
func (c *BaseContext) GetContext() context.Context {
	return c.context
}

// Close removes every tracked file and empties every tracked directory.
// Missing artifacts are ignored and failures are only logged, so Close can
// be called on every exit path and more than once.
func (c *BaseContext) Close() {
	for _, file := range c.tempFiles {
		if err := fsx.RemoveIfExists(file); err != nil {
			slog.Warn("failed to remove temporary file", "file", file, "error", err)
		}
	}
	for _, dir := range c.tempDirs {
		if err := fsx.ClearDir(dir); err != nil {
			slog.Warn("failed to clear temporary directory", "dir", dir, "error", err)
		}
	}
}

// Add stores value under key.
func (c *BaseContext) Add(key string, value interface{}) Context {
	c.data[key] = value
	return c
}

// AddTempFile tracks file for removal. Duplicates are ignored.
func (c *BaseContext) AddTempFile(file string) {
	if file == "" || contains(c.tempFiles, file) {
		return
	}
	c.tempFiles = append(c.tempFiles, file)
}

// GetTempFiles returns the tracked files.
func (c *BaseContext) GetTempFiles() []string {
	return c.tempFiles
}

// AddTempDir tracks dir for emptying. Duplicates are ignored.
func (c *BaseContext) AddTempDir(dir string) {
	if dir == "" || contains(c.tempDirs, dir) {
		return
	}
	c.tempDirs = append(c.tempDirs, dir)
}

// GetTempDirs returns the tracked directories.
func (c *BaseContext) GetTempDirs() []string {
	return c.tempDirs
}

// AddError records err for the command named key. Only the first error of a
// command is kept.
func (c *BaseContext) AddError(key string, err error) {
	if _, ok := c.errors[key]; ok {
		return
	}
	c.errors[key] = err
	c.errorOrder = append(c.errorOrder, key)
}

// GetErrors returns the recorded errors keyed by command name.
func (c *BaseContext) GetErrors() map[string]error {
	return c.errors
}

// FirstError returns the earliest recorded error and the command that raised it.
func (c *BaseContext) FirstError() (string, error) {
	if len(c.errorOrder) == 0 {
		return "", nil
	}
	key := c.errorOrder[0]
	return key, c.errors[key]
}

// Get returns the value stored under key.
func (c *BaseContext) Get(key string) interface{} {
	return c.data[key]
}

// Remove deletes key.
func (c *BaseContext) Remove(key string) {
	delete(c.data, key)
}

// HasErrors reports whether any error was recorded.
func (c *BaseContext) HasErrors() bool {
	return len(c.errors) > 0
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
