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

import "time"

// GetExampleScenes returns two well formed scenes. They are embedded in the
// rewrite prompt as a style reference and reused by tests.
func GetExampleScenes() []*SceneDocument {
	return []*SceneDocument{
		{
			StartTime:         "00:00",
			EndTime:           "00:09",
			Type:              "Mở đầu Thu hút",
			VisualDescription: "Trung cận cảnh. Người dẫn chương trình cầm hai hộp mask pad màu hồng và xanh dương, nhìn thẳng vào camera.",
			AudioScript:       "So sánh hai em mask pad hot nhất nhà Emmie. Thấy nhiều người đang phân vân không biết chọn em nào.",
		},
		{
			StartTime:         "00:09",
			EndTime:           "00:16",
			Type:              "Thông tin Sản phẩm",
			VisualDescription: "Cận cảnh hai hộp mask pad xếp chồng lên nhau, sau đó mở hộp màu hồng.",
			AudioScript:       "Điểm chung là cả hai đều dùng chất liệu semi-gel, miếng pad mỏng nhẹ và thấm đẫm tinh chất.",
		},
	}
}

// GetExampleScript returns a complete, persisted-looking script owned by
// ownerID.
func GetExampleScript(ownerID string) *ScriptAnalysis {
	doc := &AnalysisDocument{Title: "Review Mask Pad Emmie", Scenes: GetExampleScenes()}
	out := NewScriptAnalysis(ownerID, "tiktok_video_123.mp4", doc.ToResult(), time.Now())
	out.Tags = []string{"Skincare", "Emmie", "MaskPad"}
	return out
}
