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

import (
	"fmt"
	"regexp"
	"strings"
)

// TSVHeaders are the column titles of the spreadsheet export.
var TSVHeaders = []string{"Sản phẩm", "Phân cảnh", "Mô tả hình ảnh", "Kịch bản phát ngôn"}

var tsvBreaks = regexp.MustCompile(`[\t\n\r]+`)

// CleanTSVField collapses tabs and line breaks into single spaces and trims
// the result so a value always fits in one cell.
func CleanTSVField(value string) string {
	return strings.TrimSpace(tsvBreaks.ReplaceAllString(value, " "))
}

// ExportTSV renders the script as tab separated rows, one per scene, ready to
// be pasted into a spreadsheet.
func ExportTSV(script *ScriptAnalysis) string {
	var b strings.Builder
	b.WriteString(strings.Join(TSVHeaders, "\t"))
	product := CleanTSVField(strings.Join(script.Tags, ", "))
	for _, scene := range script.Scenes {
		b.WriteString("\n")
		b.WriteString(strings.Join([]string{
			product,
			CleanTSVField(fmt.Sprintf("%s (%s - %s)", scene.Type, scene.StartTime, scene.EndTime)),
			CleanTSVField(scene.VisualDescription),
			CleanTSVField(scene.AudioScript),
		}, "\t"))
	}
	return b.String()
}
