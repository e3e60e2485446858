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

package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/jaycherian/gcp-go-script-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

// DefaultAnalysisPrompt is used when no analysis template is configured.
const DefaultAnalysisPrompt = "Bạn là biên tập viên video. Hãy xem video này và trích xuất kịch bản chi tiết. Trả về đúng định dạng JSON."

// DefaultOptimizePrompt is used when no optimize template is configured.
const DefaultOptimizePrompt = "Rewrite these scenes to be more viral on TikTok. Only rewrite audioScript and keep every other field. " +
	"Example of the expected style: {{.EXAMPLE_JSON}}\nScenes: {{.SCENES_JSON}}"

const defaultModelTimeout = 300 * time.Second

// ScriptAnalyzer asks the analyst model to watch a video and describe it
// scene by scene.
type ScriptAnalyzer struct {
	Model      cloud.GenerativeModel // Nil when no credential is configured.
	Counters   cloud.ModelCounters
	Prompt     string
	Timeout    time.Duration // Bounds the whole call, retries included.
	MaxRetries int
}

// NewScriptAnalyzer wires the analyst model from the service clients. The
// model is nil, and every analysis fails with MissingApiKey, when no
// credential was configured.
func NewScriptAnalyzer(clients *cloud.ServiceClients, config *cloud.Config) *ScriptAnalyzer {
	settings := config.AgentModels[cloud.AnalystModelName]
	out := &ScriptAnalyzer{
		Counters:   cloud.NewModelCounters(otel.Meter(cor.MeterName), cloud.AnalystModelName),
		Prompt:     orDefault(config.PromptTemplates.AnalysisPrompt, DefaultAnalysisPrompt),
		Timeout:    durationOr(settings.Timeout(), defaultModelTimeout),
		MaxRetries: settings.MaxRetries,
	}
	if m := clients.AgentModel(cloud.AnalystModelName); m != nil && config.HasGenAICredential() {
		out.Model = m.WithResponseSchema(AnalysisSchema())
	}
	return out
}

// Analyze sends the video to the model and converts the answer into an
// AnalysisResult. An answer that is not valid JSON is not an error: it yields
// the single placeholder scene carrying the raw text, flagged Malformed.
//
// Inputs:
//   - ctx: bounds the model call together with the analyzer timeout.
//   - media: the base64 video and its MIME type.
//   - progress: receives the upload and parsing status lines, may be nil.
//
// Outputs:
//   - *model.AnalysisResult: title and scenes, each scene with a fresh id.
//   - error: MissingApiKey, AnalysisTimeout, AnalysisRejected or the raw
//     model error.
func (a *ScriptAnalyzer) Analyze(ctx context.Context, media *model.EncodedMedia, progress model.ProgressFunc) (*model.AnalysisResult, error) {
	if a.Model == nil {
		return nil, model.NewError(model.KindMissingAPIKey, "", nil)
	}
	// The client library encodes inline data itself, so the transport text is
	// decoded back to bytes here.
	data, err := base64.StdEncoding.DecodeString(media.Base64)
	if err != nil {
		return nil, model.NewError(model.KindReadFailed, "", errors.Wrap(err, "decode payload"))
	}
	mimeType := model.NormalizeVideoMIMEType(media.MIMEType)

	progress.Report(fmt.Sprintf(model.ProgressUploadingFormat, media.SizeMB()))
	callCtx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	progress.Report(model.ProgressAwaitingAI)
	text, err := cloud.GenerateMultiModalResponse(callCtx, a.Counters, a.MaxRetries, a.Model,
		cloud.NewInlineMediaContent(mimeType, data, a.Prompt))
	if err != nil {
		return nil, classifyModelError(callCtx, err)
	}

	progress.Report(model.ProgressParsingResponse)
	var doc model.AnalysisDocument
	if err := json.Unmarshal([]byte(cloud.CleanJSONText(text)), &doc); err != nil {
		slog.WarnContext(ctx, "model answer is not valid JSON", "video", media.Name, "error", err)
		return model.NewMalformedResult(text), nil
	}
	return doc.ToResult(), nil
}

func classifyModelError(callCtx context.Context, err error) error {
	switch {
	case errors.Is(callCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return model.NewError(model.KindAnalysisTimeout, "", err)
	case errors.Is(err, cloud.ErrEmptyResponse):
		return model.NewError(model.KindAnalysisRejected, "", err)
	default:
		return errors.Wrap(err, "gemini request failed")
	}
}

// ScriptOptimizer asks the optimizer model to rewrite the spoken text of a
// script's scenes.
type ScriptOptimizer struct {
	Model      cloud.GenerativeModel
	Counters   cloud.ModelCounters
	Template   *template.Template
	Timeout    time.Duration
	MaxRetries int
}

// NewScriptOptimizer wires the optimizer model from the service clients.
func NewScriptOptimizer(clients *cloud.ServiceClients, config *cloud.Config) (*ScriptOptimizer, error) {
	settings := config.AgentModels[cloud.OptimizerModelName]
	tmpl, err := template.New(cloud.OptimizerModelName).Parse(orDefault(config.PromptTemplates.OptimizePrompt, DefaultOptimizePrompt))
	if err != nil {
		return nil, errors.Wrap(err, "parse optimize prompt")
	}
	out := &ScriptOptimizer{
		Counters:   cloud.NewModelCounters(otel.Meter(cor.MeterName), cloud.OptimizerModelName),
		Template:   tmpl,
		Timeout:    durationOr(settings.Timeout(), defaultModelTimeout),
		MaxRetries: settings.MaxRetries,
	}
	if m := clients.AgentModel(cloud.OptimizerModelName); m != nil && config.HasGenAICredential() {
		out.Model = m.WithResponseSchema(OptimizationSchema())
	}
	return out, nil
}

// GenerateParams builds the template data: the scenes to rewrite and an
// example of the expected shape.
func (o *ScriptOptimizer) GenerateParams(script *model.ScriptAnalysis) (map[string]interface{}, error) {
	docs := make([]*model.SceneDocument, 0, len(script.Scenes))
	for _, s := range script.Scenes {
		docs = append(docs, &model.SceneDocument{
			StartTime:         s.StartTime,
			EndTime:           s.EndTime,
			Type:              s.Type,
			VisualDescription: s.VisualDescription,
			AudioScript:       s.AudioScript,
		})
	}
	scenes, err := json.Marshal(docs)
	if err != nil {
		return nil, err
	}
	example, err := json.Marshal(model.GetExampleScenes())
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"SCENES_JSON":  string(scenes),
		"EXAMPLE_JSON": string(example),
		"TITLE":        script.Title,
	}, nil
}

// Optimize returns the rewritten scenes of script. Output scene i keeps the
// id, timing, type and visual description of input scene i, so K input
// scenes always give K output scenes in the same order. Extra scenes from the
// model are appended with fresh ids. Any failure is OptimizationFailed.
func (o *ScriptOptimizer) Optimize(ctx context.Context, script *model.ScriptAnalysis) ([]*model.Scene, error) {
	if o.Model == nil {
		return nil, model.NewError(model.KindOptimizationFailed, "", model.NewError(model.KindMissingAPIKey, "", nil))
	}
	params, err := o.GenerateParams(script)
	if err != nil {
		return nil, model.NewError(model.KindOptimizationFailed, "", errors.Wrap(err, "encode scenes"))
	}
	var prompt bytes.Buffer
	if err := o.Template.Execute(&prompt, params); err != nil {
		return nil, model.NewError(model.KindOptimizationFailed, "", errors.Wrap(err, "execute prompt template"))
	}

	callCtx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()
	text, err := cloud.GenerateMultiModalResponse(callCtx, o.Counters, o.MaxRetries, o.Model, cloud.NewTextPart(prompt.String()))
	if err != nil {
		return nil, model.NewError(model.KindOptimizationFailed, "", err)
	}

	var doc model.OptimizationDocument
	if err := json.Unmarshal([]byte(cloud.CleanJSONText(text)), &doc); err != nil {
		return nil, model.NewError(model.KindOptimizationFailed, "", errors.Wrap(err, "parse optimized scenes"))
	}
	if !HasRewrittenScenes(doc.Scenes) {
		return nil, model.NewError(model.KindOptimizationFailed, "", errors.New("answer has no rewritten scenes"))
	}
	return MergeOptimizedScenes(script.Scenes, doc.Scenes), nil
}

// HasRewrittenScenes reports whether at least one scene of a rewrite answer
// carries spoken text. A document without a scenes array does not.
func HasRewrittenScenes(rewritten []*model.SceneDocument) bool {
	for _, scene := range rewritten {
		if scene != nil && strings.TrimSpace(scene.AudioScript) != "" {
			return true
		}
	}
	return false
}

// MergeOptimizedScenes maps rewritten scenes onto the originals by position.
func MergeOptimizedScenes(original []*model.Scene, rewritten []*model.SceneDocument) []*model.Scene {
	out := make([]*model.Scene, 0, len(original))
	for i, scene := range original {
		merged := scene.Clone()
		if i < len(rewritten) && rewritten[i] != nil && rewritten[i].AudioScript != "" {
			merged.AudioScript = rewritten[i].AudioScript
		}
		out = append(out, merged)
	}
	for i := len(original); i < len(rewritten); i++ {
		out = append(out, rewritten[i].ToScene())
	}
	return out
}

func orDefault(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func durationOr(value time.Duration, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
