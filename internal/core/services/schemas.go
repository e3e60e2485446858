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

import "google.golang.org/genai"

var sceneFields = []string{"startTime", "endTime", "type", "visualDescription", "audioScript"}

func sceneSchema() *genai.Schema {
	properties := make(map[string]*genai.Schema, len(sceneFields))
	for _, field := range sceneFields {
		properties[field] = &genai.Schema{Type: genai.TypeString}
	}
	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       properties,
		Required:         sceneFields,
		PropertyOrdering: sceneFields,
	}
}

// AnalysisSchema is the structured output contract of a video analysis:
// a title and the list of scenes.
func AnalysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":  {Type: genai.TypeString},
			"scenes": {Type: genai.TypeArray, Items: sceneSchema()},
		},
		Required:         []string{"title", "scenes"},
		PropertyOrdering: []string{"title", "scenes"},
	}
}

// OptimizationSchema is the structured output contract of a rewrite.
func OptimizationSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"scenes": {Type: genai.TypeArray, Items: sceneSchema()},
		},
		Required: []string{"scenes"},
	}
}
