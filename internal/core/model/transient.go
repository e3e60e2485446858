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

package model

// SceneDocument is the scene shape the generative model is asked to emit.
// It carries no id: ids are always generated locally.
type SceneDocument struct {
	StartTime         string `json:"startTime"`
	EndTime           string `json:"endTime"`
	Type              string `json:"type"`
	VisualDescription string `json:"visualDescription"`
	AudioScript       string `json:"audioScript"`
}

// AnalysisDocument is the raw JSON document returned by a video analysis call.
type AnalysisDocument struct {
	Title  string           `json:"title"`
	Scenes []*SceneDocument `json:"scenes"`
}

// OptimizationDocument is the raw JSON document returned by a rewrite call.
type OptimizationDocument struct {
	Scenes []*SceneDocument `json:"scenes"`
}

// AnalysisResult is the validated outcome of analyzing one video. Malformed is
// set when the model answered with text that did not match the schema and the
// result is the single placeholder scene.
type AnalysisResult struct {
	Title     string   `json:"title"`
	Scenes    []*Scene `json:"scenes"`
	Malformed bool     `json:"malformed,omitempty"`
}

// ToScene converts a model scene into a Scene with a fresh id, replacing
// missing values with placeholder text.
func (d *SceneDocument) ToScene() *Scene {
	if d == nil {
		d = &SceneDocument{}
	}
	return &Scene{
		ID:                NewSceneID(),
		StartTime:         orDefault(d.StartTime, PlaceholderStartTime),
		EndTime:           orDefault(d.EndTime, PlaceholderEndTime),
		Type:              orDefault(d.Type, PlaceholderSceneType),
		VisualDescription: orDefault(d.VisualDescription, PlaceholderVisual),
		AudioScript:       orDefault(d.AudioScript, PlaceholderAudio),
	}
}

// ToResult converts the raw document into an AnalysisResult.
func (d *AnalysisDocument) ToResult() *AnalysisResult {
	out := &AnalysisResult{Title: orDefault(d.Title, PlaceholderTitle), Scenes: make([]*Scene, 0, len(d.Scenes))}
	for _, s := range d.Scenes {
		out.Scenes = append(out.Scenes, s.ToScene())
	}
	return out
}

// NewMalformedResult builds the single-scene placeholder used when the model
// output could not be parsed. The raw text is kept so nothing the model said
// is lost.
func NewMalformedResult(raw string) *AnalysisResult {
	return &AnalysisResult{
		Title: MalformedTitle,
		Scenes: []*Scene{{
			ID:                NewSceneID(),
			StartTime:         PlaceholderStartTime,
			EndTime:           MalformedEndTime,
			Type:              MalformedSceneType,
			VisualDescription: MalformedVisual,
			AudioScript:       raw,
		}},
		Malformed: true,
	}
}

func orDefault(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
