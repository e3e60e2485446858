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

// Package cor (Chain of Responsibility) provides the building blocks used to
// express the ingestion pipeline as a sequence of small commands. A Chain runs
// its commands in order over a shared Context, pipes the output of one command
// into the input of the next and stops at the first failure.
package cor

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the keys used by BaseChain to pipe data between commands.
const (
	// CtxIn holds the primary input of a command. BaseChain moves the previous
	// command's output here.
	CtxIn = "__IN__"
	// CtxOut is where a command places its primary output.
	CtxOut = "__OUT__"
)

// Context is the property bag shared by all commands of one chain execution.
// It is not safe for concurrent use: a chain execution is sequential.
type Context interface {
	// SetContext sets the Go context carrying cancellation and trace spans.
	SetContext(context context.Context)
	// GetContext retrieves the Go context.
	GetContext() context.Context

	// Add stores a value and returns the Context for chaining.
	Add(key string, value interface{}) Context
	// Get retrieves a value, nil when absent.
	Get(key string) interface{}
	// Remove deletes a value.
	Remove(key string)

	// AddError records a failure, keyed by the command that produced it.
	AddError(key string, err error)
	// GetErrors returns all recorded failures.
	GetErrors() map[string]error
	// FirstError returns the earliest recorded failure, or nil.
	FirstError() error
	// HasErrors reports whether any failure was recorded.
	HasErrors() bool

	// SetProgress installs the receiver of human readable status updates.
	SetProgress(progress func(status string))
	// Progress forwards a status update, a no-op without a receiver.
	Progress(status string)

	// AddTempFile tracks a file that must be removed by Close.
	AddTempFile(file string)
	// GetTempFiles returns the tracked files.
	GetTempFiles() []string
	// AddCloser tracks a resource, e.g. an open payload, released by Close.
	AddCloser(closer io.Closer)

	// Close releases tracked resources and removes temporary files.
	Close()
}

// Executable is anything with an Execute step.
type Executable interface {
	Execute(context Context)
}

// Command is an atomic unit of work.
type Command interface {
	Executable

	GetName() string
	GetInputParam() string
	GetOutputParam() string
	// IsExecutable checks the Context before Execute is called.
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain is a Command running other commands in sequence.
type Chain interface {
	Command

	// ContinueOnFailure keeps running the remaining commands after a failure.
	ContinueOnFailure(bool) Chain
	// AddCommand appends a command.
	AddCommand(command Command) Chain
}
