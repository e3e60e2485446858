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
	"log/slog"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/commands"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
)

// BatchRequestWorkflow handles the asynchronous batch requests published on
// Pub/Sub: it parses the message and runs the URLs as one batch of the
// owner's session. The chain fails, and the message is redelivered, only when
// the message is invalid or the session is busy.
type BatchRequestWorkflow struct {
	cor.BaseCommand
	registry *SessionRegistry
	chain    cor.Chain
}

// NewBatchRequestWorkflow creates the workflow.
func NewBatchRequestWorkflow(registry *SessionRegistry) *BatchRequestWorkflow {
	w := &BatchRequestWorkflow{BaseCommand: *cor.NewBaseCommand("batch-request-workflow"), registry: registry}
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewBatchRequestReader("batch-request-reader"))
	out.AddCommand(&batchRunner{BaseCommand: *cor.NewBaseCommand("batch-runner"), registry: registry})
	w.chain = out
	return w
}

func (w *BatchRequestWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

type batchRunner struct {
	cor.BaseCommand
	registry *SessionRegistry
}

func (c *batchRunner) Execute(context cor.Context) {
	req := context.Get(c.GetInputParam()).(*model.BatchRequest)
	session, err := c.registry.Get(context.GetContext(), req.UserID)
	if err != nil {
		c.Fail(context, err)
		return
	}
	items := make([]*model.MediaSource, 0, len(req.URLs))
	for _, u := range req.URLs {
		items = append(items, model.NewURLSource(u))
	}
	report, err := session.Orchestrator.RunBatch(context.GetContext(), items)
	if err != nil {
		c.Fail(context, err)
		return
	}
	slog.InfoContext(context.GetContext(), "batch request processed", "owner", session.Owner, "summary", report.Summary())
	c.Succeed(context, report)
}
