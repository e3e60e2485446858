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
	"github.com/jaycherian/gcp-go-script-studio/internal/core/services"
)

// ScriptAnalyze sends the encoded media to the analyst model and outputs a
// *model.AnalysisResult.
type ScriptAnalyze struct {
	cor.BaseCommand
	analyzer *services.ScriptAnalyzer
}

// NewScriptAnalyze creates the analysis stage.
func NewScriptAnalyze(name string, analyzer *services.ScriptAnalyzer) *ScriptAnalyze {
	return &ScriptAnalyze{BaseCommand: *cor.NewBaseCommand(name), analyzer: analyzer}
}

func (c *ScriptAnalyze) Execute(context cor.Context) {
	media, ok := context.Get(c.GetInputParam()).(*model.EncodedMedia)
	if !ok || media == nil {
		c.Fail(context, model.NewError(model.KindReadFailed, "", nil))
		return
	}
	result, err := c.analyzer.Analyze(context.GetContext(), media, context.Progress)
	if err != nil {
		c.Fail(context, err)
		return
	}
	if result.Malformed {
		slog.WarnContext(context.GetContext(), "analysis kept as raw text", "kind", model.KindMalformedAIResponse, "video", media.Name)
	}
	c.Succeed(context, result)
}
