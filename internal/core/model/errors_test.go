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
	"context"
	"fmt"
	"testing"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesByKind(t *testing.T) {
	err := model.NewError(model.KindNotAVideo, "", nil)
	wrapped := errors.Wrap(fmt.Errorf("item a.mp4: %w", err), "acquire")

	assert.True(t, errors.Is(wrapped, model.ErrNotAVideo))
	assert.False(t, errors.Is(wrapped, model.ErrFileTooLarge))
	assert.Equal(t, model.KindNotAVideo, model.KindOf(wrapped))
	assert.Equal(t, "Nội dung tải về không phải là video.", model.UserMessage(wrapped))
}

func TestErrorKeepsCause(t *testing.T) {
	err := model.NewError(model.KindAnalysisTimeout, "", context.DeadlineExceeded)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, errors.Is(err, model.ErrAnalysisTimeout))
	assert.Contains(t, err.Error(), "Timeout")
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain", err: fmt.Errorf("boom"), want: "boom"},
		{name: "custom", err: model.Errorf(model.KindFileTooLarge, nil, "File quá lớn (%dMB).", 31), want: "File quá lớn (31MB)."},
		{name: "sentinel", err: model.ErrMissingAPIKey, want: "Chưa cấu hình API Key hoặc API Key không hợp lệ."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.UserMessage(tt.err))
		})
	}
}
