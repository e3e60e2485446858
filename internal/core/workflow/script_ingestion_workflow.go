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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements the
// per-item script ingestion workflow.
package workflow

import (
	"context"
	"time"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/commands"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/persistence"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/services"
)

// IngestRequest describes one item to ingest.
type IngestRequest struct {
	Owner    string
	Source   *model.MediaSource
	Progress model.ProgressFunc
	// Preview, when set, receives the signed URL of the archived video.
	Preview func(url string)
}

// IngestResult is the outcome of a successful ingestion. PersistErr is set
// when the script was produced but could not be saved.
type IngestResult struct {
	Script     *model.ScriptAnalysis
	PersistErr error
	PreviewURL string
}

// Ingester runs one item through the pipeline.
type Ingester interface {
	Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error)
}

// ScriptIngestionWorkflow turns a single media source into a saved script.
// It's structured as a Chain of Responsibility (cor.Chain):
//
//	media-acquire -> media-encode -> media-archive -> script-analyze -> script-assemble -> script-persist
//
// The chain stops at the first failing stage. Only the archive and persist
// stages swallow their own failures.
type ScriptIngestionWorkflow struct {
	cor.BaseCommand
	acquirer *services.MediaAcquirer
	archive  *services.MediaArchive
	analyzer *services.ScriptAnalyzer
	gateway  persistence.Gateway
	now      func() time.Time
	chain    cor.Chain
}

// NewScriptIngestionWorkflow creates the workflow. archive may be nil.
func NewScriptIngestionWorkflow(
	acquirer *services.MediaAcquirer,
	archive *services.MediaArchive,
	analyzer *services.ScriptAnalyzer,
	gateway persistence.Gateway,
	now func() time.Time) *ScriptIngestionWorkflow {
	w := &ScriptIngestionWorkflow{
		BaseCommand: *cor.NewBaseCommand("script-ingestion-workflow"),
		acquirer:    acquirer,
		archive:     archive,
		analyzer:    analyzer,
		gateway:     gateway,
		now:         now,
	}
	w.initializeChain()
	return w
}

func (w *ScriptIngestionWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewMediaAcquire("media-acquire", w.acquirer))
	out.AddCommand(commands.NewMediaEncode("media-encode"))
	out.AddCommand(commands.NewMediaArchive("media-archive", w.archive))
	out.AddCommand(commands.NewScriptAnalyze("script-analyze", w.analyzer))
	out.AddCommand(commands.NewScriptAssemble("script-assemble", w.now))
	out.AddCommand(commands.NewScriptPersist("script-persist", w.gateway))
	w.chain = out
}

// Execute runs the chain over a prepared context. CtxIn, ParamSource and
// ParamOwner must be set.
func (w *ScriptIngestionWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// Ingest runs one item and releases everything the chain opened.
func (w *ScriptIngestionWorkflow) Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	chCtx := cor.NewBaseContext()
	defer chCtx.Close()
	chCtx.SetContext(ctx)
	chCtx.SetProgress(req.Progress)
	chCtx.Add(cor.CtxIn, req.Source)
	chCtx.Add(commands.ParamSource, req.Source)
	chCtx.Add(commands.ParamOwner, req.Owner)
	if req.Preview != nil {
		chCtx.Add(commands.ParamPreviewHook, req.Preview)
	}

	w.Execute(chCtx)
	if chCtx.HasErrors() {
		return nil, chCtx.FirstError()
	}

	script, ok := chCtx.Get(commands.ParamScript).(*model.ScriptAnalysis)
	if !ok {
		return nil, model.NewError(model.KindMalformedAIResponse, "", nil)
	}
	out := &IngestResult{Script: script}
	out.PersistErr, _ = chCtx.Get(commands.ParamPersistError).(error)
	out.PreviewURL, _ = chCtx.Get(commands.ParamPreviewURL).(string)
	return out, nil
}
