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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/cor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// ScriptResyncWorkflow periodically retries the writes of scripts that were
// kept locally after a failed save, for every open session.
type ScriptResyncWorkflow struct {
	cor.BaseCommand
	registry *SessionRegistry
	interval time.Duration
}

// NewScriptResyncWorkflow creates the workflow. A non-positive interval
// disables the timer.
func NewScriptResyncWorkflow(registry *SessionRegistry, interval time.Duration) *ScriptResyncWorkflow {
	return &ScriptResyncWorkflow{
		BaseCommand: *cor.NewBaseCommand("script-resync"),
		registry:    registry,
		interval:    interval,
	}
}

// IsExecutable is always true; the workflow has no input.
func (w *ScriptResyncWorkflow) IsExecutable(_ cor.Context) bool {
	return true
}

// Execute resyncs every session whose orchestrator is idle. Failures are
// recorded per owner and the synced count is the output.
func (w *ScriptResyncWorkflow) Execute(context cor.Context) {
	total := 0
	for _, s := range w.registry.Sessions() {
		if s.Orchestrator.State().Phase.IsActive() {
			continue
		}
		n, err := s.Library.Resync(context.GetContext())
		total += n
		if err != nil {
			context.AddError(fmt.Sprintf("%s/%s", w.GetName(), s.Owner), err)
		}
	}
	if context.HasErrors() {
		w.GetErrorCounter().Add(context.GetContext(), 1)
		context.Add(w.GetOutputParam(), total)
		return
	}
	w.Succeed(context, total)
}

// StartTimer runs Execute every interval until ctx is done.
func (w *ScriptResyncWorkflow) StartTimer(ctx context.Context) {
	if w.interval <= 0 {
		return
	}
	tracer := otel.Tracer("script-resync")
	ticker := time.NewTicker(w.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				traceCtx, span := tracer.Start(ctx, "script-resync")
				chainCtx := cor.NewBaseContext()
				chainCtx.SetContext(traceCtx)

				w.Execute(chainCtx)

				if chainCtx.HasErrors() {
					span.SetStatus(codes.Error, "failed to resync scripts")
					slog.WarnContext(traceCtx, "resync incomplete", "errors", len(chainCtx.GetErrors()))
				} else {
					span.SetStatus(codes.Ok, "resynced scripts")
				}
				span.End()
			case <-ctx.Done():
				return
			}
		}
	}()
}
