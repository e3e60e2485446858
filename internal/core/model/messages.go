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

// User-facing text. The product ships in Vietnamese.
const (
	PlaceholderTitle     = "Kịch bản phân tích"
	PlaceholderStartTime = "00:00"
	PlaceholderEndTime   = "--:--"
	PlaceholderSceneType = "Cảnh quay"
	PlaceholderVisual    = "Không có mô tả"
	PlaceholderAudio     = "Không có lời thoại"

	MalformedTitle     = "Lỗi định dạng (Xem chi tiết)"
	MalformedEndTime   = "End"
	MalformedSceneType = "Lỗi phân tích"
	MalformedVisual    = "AI đã trả về kết quả nhưng không đúng định dạng JSON."
)

// Progress strings surfaced while an item moves through the pipeline.
const (
	ProgressReadingFile     = "Đang đọc file từ thiết bị..."
	ProgressResolvingTikTok = "Đang lấy link tải TikTok không logo..."
	ProgressDownloadTikTok  = "Đang tải video TikTok về bộ nhớ tạm..."
	ProgressDownloadURL     = "Đang tải video từ URL..."
	ProgressEncoding        = "Đang mã hóa video sang Base64..."
	ProgressArchiving       = "Đang lưu bản gốc của video..."
	ProgressUploadingFormat = "Đang gửi %.2f MB dữ liệu lên Google Gemini..."
	ProgressAwaitingAI      = "AI đang xem video và viết kịch bản (Vui lòng đợi)..."
	ProgressParsingResponse = "Đang xử lý kết quả trả về..."
	ProgressSaving          = "Đang lưu kịch bản..."
	ProgressItemFormat      = "Đang đọc file %d/%d: %s..."
	ProgressURLAnalysis     = "Đang tải và phân tích video từ URL..."
	ProgressOptimizing      = "AI đang tối ưu kịch bản..."
	NotifyItemFailedFormat  = "Lỗi %s: %s"
	NotifyItemDoneFormat    = "Đã phân tích xong: %s"
	NotifyBatchDoneFormat   = "Đã hoàn thành %d/%d video!"
	NotifyBatchAllFailed    = "Không thể xử lý video nào. Vui lòng kiểm tra lại file."
	NotifyURLSaved          = "Đã lưu kịch bản vào Cloud!"
	NotifyURLSavedLocal     = "Đã lưu kịch bản trên máy."
	NotifySyncFailedFormat  = "Lỗi lưu kịch bản lên Cloud: %s"
	NotifyOptimized         = "Đã tối ưu và cập nhật Cloud!"
	NotifyOptimizeFailed    = "Lỗi khi tối ưu hóa."
	NotifyTagSaveFailed     = "Lỗi lưu tag lên Cloud!"
	NotifyDeleted           = "Đã xóa kịch bản."
	NotifyMigratedFormat    = "Đã chuyển %d kịch bản lên tài khoản của bạn."
	NotifyResyncedFormat    = "Đã đồng bộ lại %d kịch bản."
	DefaultURLAnalysisTitle = "URL Analysis"
	UnsupportedUploadFormat = "File %s không phải là video."
	FileTooLargeFormat      = "File quá lớn (%.1fMB). Vui lòng dùng file < %dMB."
	VideoTooLargeFormat     = "Video quá lớn. Giới hạn %dMB."
	InvalidURLMessage       = "Đường dẫn video không hợp lệ."
)
