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
	"time"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
)

// ScriptAssemble builds the persistable *model.ScriptAnalysis from the
// analysis result, the source and the owner.
type ScriptAssemble struct {
	cor.BaseCommand
	now func() time.Time
}

// NewScriptAssemble creates the assembly stage. now defaults to time.Now.
func NewScriptAssemble(name string, now func() time.Time) *ScriptAssemble {
	if now == nil {
		now = time.Now
	}
	return &ScriptAssemble{BaseCommand: *cor.NewBaseCommand(name), now: now}
}

func (c *ScriptAssemble) Execute(context cor.Context) {
	result, ok := context.Get(c.GetInputParam()).(*model.AnalysisResult)
	if !ok || result == nil {
		c.Fail(context, model.NewError(model.KindMalformedAIResponse, "", nil))
		return
	}
	owner, _ := context.Get(ParamOwner).(string)
	if owner == "" {
		owner = model.GuestUserID
	}
	videoName := ""
	if source, ok := context.Get(ParamSource).(*model.MediaSource); ok && source != nil {
		videoName = source.Name
		// URL items without a model title are labelled as such.
		if source.Kind == model.SourceURL && result.Title == model.PlaceholderTitle {
			copied := *result
			copied.Title = model.DefaultURLAnalysisTitle
			result = &copied
		}
	}
	script := model.NewScriptAnalysis(owner, videoName, result, c.now())
	context.Add(ParamScript, script)
	c.Succeed(context, script)
}
