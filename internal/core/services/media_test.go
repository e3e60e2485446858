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

package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/services"
	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	tests := []struct {
		owner, name, prefix, suffix string
	}{
		{"guest", "clip.mp4", "guest/", "-clip.mp4"},
		{"user 1", "my video (1).mov", "user_1/", "-my_video_1_.mov"},
		{"", "https://cdn.example.com/a/b.mp4?sig=1", "guest/", "-b.mp4"},
		{"u", "???", "u/", "-video"},
	}
	for _, tt := range tests {
		got := services.ObjectName(tt.owner, tt.name)
		assert.True(t, strings.HasPrefix(got, tt.prefix), got)
		assert.True(t, strings.HasSuffix(got, tt.suffix), got)
	}
	assert.NotEqual(t, services.ObjectName("u", "a.mp4"), services.ObjectName("u", "a.mp4"))
}

func TestDisabledArchiveIsNoop(t *testing.T) {
	archive := &services.MediaArchive{}
	assert.False(t, archive.Enabled())
	name, err := archive.Upload(context.Background(), "guest", "a.mp4", "video/mp4", strings.NewReader("x"))
	assert.NoError(t, err)
	assert.Empty(t, name)
	_, err = archive.GenerateSignedURL(context.Background(), "guest/a.mp4")
	assert.Error(t, err)
}
