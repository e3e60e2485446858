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

package model_test

import (
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/zeebo/assert"
)

func TestExportTSV(t *testing.T) {
	script := &model.ScriptAnalysis{
		Tags: []string{"A", "B"},
		Scenes: []*model.Scene{{
			StartTime:         "00:00",
			EndTime:           "00:05",
			Type:              "Hook",
			VisualDescription: "line1\nline2",
			AudioScript:       "hi\tthere",
		}},
	}
	lines := strings.Split(model.ExportTSV(script), "\n")
	assert.Equal(t, len(lines), 2)
	assert.Equal(t, lines[0], "Sản phẩm\tPhân cảnh\tMô tả hình ảnh\tKịch bản phát ngôn")
	assert.Equal(t, lines[1], "A, B\tHook (00:00 - 00:05)\tline1 line2\thi there")
}

func TestExportTSVNoScenes(t *testing.T) {
	out := model.ExportTSV(&model.ScriptAnalysis{})
	assert.Equal(t, out, strings.Join(model.TSVHeaders, "\t"))
}

func TestCleanTSVField(t *testing.T) {
	assert.Equal(t, model.CleanTSVField("  a\r\n\t\tb  "), "a b")
	assert.Equal(t, model.CleanTSVField(""), "")
}
