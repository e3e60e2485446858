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

// This file defines the error taxonomy of the ingestion pipeline.
//
// Every failure that can reach a user is an *Error carrying a Kind and a
// localized Message. The package level sentinels (ErrFileTooLarge, ...) only
// carry a Kind, and Error.Is compares kinds, so callers can write
// errors.Is(err, model.ErrNotAVideo) no matter how deeply the error was wrapped
// or what message it carries.
package model

import (
	"errors"
	"fmt"
)

// ErrorKind names one class of pipeline failure.
type ErrorKind string

const (
	KindFileTooLarge            ErrorKind = "FileTooLarge"
	KindReadFailed              ErrorKind = "ReadFailed"
	KindResolutionFailed        ErrorKind = "ResolutionFailed"
	KindDownloadBlocked         ErrorKind = "DownloadBlocked"
	KindDownloadFailed          ErrorKind = "DownloadFailed"
	KindNotAVideo               ErrorKind = "NotAVideo"
	KindMissingAPIKey           ErrorKind = "MissingApiKey"
	KindAnalysisTimeout         ErrorKind = "AnalysisTimeout"
	KindAnalysisRejected        ErrorKind = "AnalysisRejected"
	KindMalformedAIResponse     ErrorKind = "MalformedAiResponse"
	KindOptimizationFailed      ErrorKind = "OptimizationFailed"
	KindPersistenceWriteFailed  ErrorKind = "PersistenceWriteFailed"
	KindPersistenceDeleteFailed ErrorKind = "PersistenceDeleteFailed"
	KindNotFound                ErrorKind = "NotFound"
	KindBusy                    ErrorKind = "Busy"
)

var defaultMessages = map[ErrorKind]string{
	KindFileTooLarge:            "File quá lớn.",
	KindReadFailed:              "Lỗi đọc file.",
	KindResolutionFailed:        "Không lấy được link video TikTok. Hãy thử tải video về máy và upload thủ công.",
	KindDownloadBlocked:         "Lỗi tải video từ Server TikTok (Proxy block).",
	KindDownloadFailed:          "Không thể tải video từ URL này.",
	KindNotAVideo:               "Nội dung tải về không phải là video.",
	KindMissingAPIKey:           "Chưa cấu hình API Key hoặc API Key không hợp lệ.",
	KindAnalysisTimeout:         "Timeout: Video quá dài hoặc mạng quá chậm.",
	KindAnalysisRejected:        "AI từ chối xử lý video này.",
	KindMalformedAIResponse:     "AI trả về kết quả không đúng định dạng JSON.",
	KindOptimizationFailed:      NotifyOptimizeFailed,
	KindPersistenceWriteFailed:  "Lỗi lưu kịch bản.",
	KindPersistenceDeleteFailed: "Lỗi khi xóa kịch bản.",
	KindNotFound:                "Không tìm thấy kịch bản.",
	KindBusy:                    "Đang xử lý, vui lòng đợi.",
}

// Sentinels for errors.Is.
var (
	ErrFileTooLarge            = &Error{Kind: KindFileTooLarge}
	ErrReadFailed              = &Error{Kind: KindReadFailed}
	ErrResolutionFailed        = &Error{Kind: KindResolutionFailed}
	ErrDownloadBlocked         = &Error{Kind: KindDownloadBlocked}
	ErrDownloadFailed          = &Error{Kind: KindDownloadFailed}
	ErrNotAVideo               = &Error{Kind: KindNotAVideo}
	ErrMissingAPIKey           = &Error{Kind: KindMissingAPIKey}
	ErrAnalysisTimeout         = &Error{Kind: KindAnalysisTimeout}
	ErrAnalysisRejected        = &Error{Kind: KindAnalysisRejected}
	ErrMalformedAIResponse     = &Error{Kind: KindMalformedAIResponse}
	ErrOptimizationFailed      = &Error{Kind: KindOptimizationFailed}
	ErrPersistenceWriteFailed  = &Error{Kind: KindPersistenceWriteFailed}
	ErrPersistenceDeleteFailed = &Error{Kind: KindPersistenceDeleteFailed}
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrBusy                    = &Error{Kind: KindBusy}
)

// Error is a classified pipeline failure.
type Error struct {
	Kind    ErrorKind // Failure class, used for matching.
	Message string    // Localized, user-facing text.
	Err     error     // Underlying cause, if any.
}

// NewError builds an error of the given kind. An empty message falls back to
// the default text for the kind.
func NewError(kind ErrorKind, message string, cause error) *Error {
	if message == "" {
		message = defaultMessages[kind]
	}
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Errorf is NewError with a formatted message.
func Errorf(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return NewError(kind, fmt.Sprintf(format, args...), cause)
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage returns the localized message of the first *Error in the chain,
// falling back to the raw error text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if msg, ok := defaultMessages[e.Kind]; ok {
			return msg
		}
	}
	return err.Error()
}
