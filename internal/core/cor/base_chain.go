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
// ingestion pipeline is assembled from. This file defines BaseChain, the
// default Chain.
//
// Logic Flow:
//  1. **Span**: a span is opened for the whole chain.
//  2. **Main sequence**: commands run in order, each inside its own child
//     span. When a command records an error (a panic counts as one) and
//     continueOnFailure is false, the remaining main commands are skipped.
//  3. **Piping**: after each main command, the value it left in CtxOut is
//     moved to CtxIn so it becomes the next command's input.
//  4. **Finally sequence**: commands added with AddFinally always run, in
//     order, whatever happened in the main sequence. This is where an item's
//     local artifacts are removed.
//  5. **Status**: the chain span is marked Ok or Error from the final
//     state of the Context.
package cor

import (
	goctx "context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"go.opentelemetry.io/otel/codes"
)

// ErrCommandPanicked wraps the value recovered from a panicking command.
var ErrCommandPanicked = errors.New("command panicked")

// BaseChain is the default implementation of Chain.
type BaseChain struct {
	BaseCommand
	continueOnFailure bool      // Keep executing main commands after a failure.
	commands          []Command // The main sequence.
	finally           []Command // Commands run on every exit path.
}

// NewBaseChain is the constructor for BaseChain.
//
// Inputs:
//   - name: The chain name used for logging and telemetry.
//
// Outputs:
//   - *BaseChain: The new, empty chain.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseCommand: *NewBaseCommand(name)}
}

// ContinueOnFailure sets the error handling behaviour of the main sequence.
func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

// AddCommand appends command to the main sequence.
func (c *BaseChain) AddCommand(command Command) Chain {
	c.commands = append(c.commands, command)
	return c
}

// AddFinally appends command to the sequence that runs on every exit path.
func (c *BaseChain) AddFinally(command Command) Chain {
	c.finally = append(c.finally, command)
	return c
}

// IsExecutable requires a Go context to be present.
func (c *BaseChain) IsExecutable(context Context) bool {
	return context != nil && context.GetContext() != nil
}

// Execute runs the main sequence and then the finally sequence.
//
// Inputs:
//   - chCtx: The shared Context for this execution.
func (c *BaseChain) Execute(chCtx Context) {
	parentCtx := chCtx.GetContext()

	outerCtx, chainSpan := c.Tracer.Start(parentCtx, fmt.Sprintf("%s_execute", c.GetName()))
	defer chainSpan.End()

	// Deferred so the finally sequence also runs if the chain itself panics.
	defer func() {
		for _, command := range c.finally {
			c.run(chCtx, outerCtx, command)
		}
		chCtx.SetContext(parentCtx)
		if !chCtx.HasErrors() {
			chainSpan.SetStatus(codes.Ok, "chain completed successfully")
		} else {
			chainSpan.SetStatus(codes.Error, "chain failed to execute")
		}
	}()

	for _, command := range c.commands {
		if chCtx.HasErrors() && !c.continueOnFailure {
			_, skipped := c.Tracer.Start(outerCtx, command.GetName())
			skipped.SetStatus(codes.Error, "previous error on chain; skipping execution")
			skipped.End()
			break
		}
		// A cancelled run stops before the next stage; finally still runs.
		if err := outerCtx.Err(); err != nil {
			chCtx.AddError(command.GetName(), err)
			break
		}

		c.run(chCtx, outerCtx, command)

		outputValue := chCtx.Get(CtxOut)
		chCtx.Remove(CtxIn)
		if outputValue != nil {
			chCtx.Add(CtxIn, outputValue)
		}
		chCtx.Remove(CtxOut)
	}
}

// run executes one command inside its own span.
func (c *BaseChain) run(chCtx Context, outerCtx goctx.Context, command Command) {
	commandContext, commandSpan := c.Tracer.Start(outerCtx, command.GetName())
	defer commandSpan.End()

	before := len(chCtx.GetErrors())
	if command.IsExecutable(chCtx) {
		chCtx.SetContext(commandContext)
		execute(chCtx, command)
		// Reset so the next command's span is a sibling, not a grandchild.
		chCtx.SetContext(outerCtx)
	} else {
		chCtx.AddError(command.GetName(), fmt.Errorf("command not executable: %s", command.GetName()))
	}

	if len(chCtx.GetErrors()) > before {
		commandSpan.SetStatus(codes.Error, "error during command execution")
	} else {
		commandSpan.SetStatus(codes.Ok, "command completed successfully")
	}
}

// execute runs command, recording a panic as the command's error so the rest
// of the chain, and the caller's loop, carry on.
func execute(chCtx Context, command Command) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(chCtx.GetContext(), "command panicked",
				"command", command.GetName(), "panic", r, "stack", string(debug.Stack()))
			chCtx.AddError(command.GetName(), fmt.Errorf("%w: %s: %v", ErrCommandPanicked, command.GetName(), r))
		}
	}()
	command.Execute(chCtx)
}
