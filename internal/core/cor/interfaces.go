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
// ingestion pipeline is assembled from. An item is processed by a Chain of
// Commands sharing one Context; the Context carries the item's data, the
// errors raised along the way and the local artifacts that must be removed
// once the item is finished, whatever its outcome.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the keys used to pipe the output of one command into
// the input of the next.
const (
	// CtxIn is the default key for the primary input of a command. The
	// BaseChain fills it with the previous command's output.
	CtxIn = "__IN__"
	// CtxOut is the default key a command writes its primary output to.
	CtxOut = "__OUT__"
)

// Context is the property bag shared by every command of one chain
// execution.
type Context interface {
	// SetContext sets the Go context used for cancellation and tracing.
	SetContext(context context.Context)

	// GetContext returns the Go context.
	GetContext() context.Context

	// Add stores a value under key and returns the Context for chaining.
	Add(key string, value interface{}) Context

	// AddError records an error raised by the command named key.
	AddError(key string, err error)

	// GetErrors returns every recorded error keyed by command name.
	GetErrors() map[string]error

	// FirstError returns the name of the first command that failed and its
	// error, or ("", nil) when nothing failed.
	FirstError() (string, error)

	// Get returns the value stored under key, or nil.
	Get(key string) interface{}

	// Remove deletes key.
	Remove(key string)

	// HasErrors reports whether any error was recorded.
	HasErrors() bool

	// AddTempFile registers a file that Close must delete.
	AddTempFile(file string)

	// GetTempFiles returns the registered files.
	GetTempFiles() []string

	// AddTempDir registers a directory whose contents Close must delete.
	// The directory itself is kept because it is reused by the next item.
	AddTempDir(dir string)

	// GetTempDirs returns the registered directories.
	GetTempDirs() []string

	// Close deletes every registered artifact. It is safe to call more than
	// once and never fails on artifacts that are already gone.
	Close()
}

// Executable is anything with an Execute step.
type Executable interface {
	Execute(context Context)
}

// Command is one atomic stage of a workflow.
type Command interface {
	Executable

	// GetName returns the unique name used in logs, spans and metrics.
	GetName() string

	// GetInputParam returns the key of the primary input.
	GetInputParam() string

	// GetOutputParam returns the key of the primary output.
	GetOutputParam() string

	// IsExecutable checks the preconditions of Execute.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain runs commands in order. A Chain is itself a Command, so chains nest.
type Chain interface {
	Command

	// ContinueOnFailure controls whether the remaining commands run after a
	// command has recorded an error.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the main sequence.
	AddCommand(command Command) Chain

	// AddFinally appends a command that runs after the main sequence on
	// every exit path, including after a failure.
	AddFinally(command Command) Chain
}
