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

package commands

import (
	"log/slog"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/persistence"
)

// ScriptPersist saves the assembled script through the gateway. A failed
// write does not fail the item: the error is stored under ParamPersistError
// and the script is still passed on, so the caller can keep it unsynced.
type ScriptPersist struct {
	cor.BaseCommand
	gateway persistence.Gateway
}

// NewScriptPersist creates the persistence stage.
func NewScriptPersist(name string, gateway persistence.Gateway) *ScriptPersist {
	return &ScriptPersist{BaseCommand: *cor.NewBaseCommand(name), gateway: gateway}
}

func (c *ScriptPersist) Execute(context cor.Context) {
	script, ok := context.Get(c.GetInputParam()).(*model.ScriptAnalysis)
	if !ok || script == nil {
		c.Fail(context, model.NewError(model.KindPersistenceWriteFailed, "", nil))
		return
	}
	context.Progress(model.ProgressSaving)
	if err := c.gateway.Save(context.GetContext(), script); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		slog.ErrorContext(context.GetContext(), "failed to persist script", "script_id", script.ID, "owner", script.UserID, "error", err)
		context.Add(ParamPersistError, err)
		context.Add(c.GetOutputParam(), script)
		return
	}
	c.Succeed(context, script)
}
