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

// Package test provides utility functions and fakes to support the application's
// test suite. It helps in setting up a consistent test environment, loading
// test-specific configurations, and scripting the generative model so workflows
// can run without network access.
package test

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-script-studio/internal/cloud"
	"google.golang.org/genai"
)

// StateManager acts as a simple in-memory cache for the application configuration
// during test runs.
type StateManager struct {
	config *cloud.Config
}

var state = &StateManager{}

// HandleErr fails the test when err is not nil.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// SetupOS points the configuration loader at the test configuration files
// (configs/.env.test.toml of the repository).
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, ConfigDir())
	if err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// ConfigDir walks up from the working directory to the module root and
// returns its configs directory.
func ConfigDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "configs"
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "configs")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "configs"
		}
		dir = parent
	}
}

// GetConfig is a singleton accessor for the test configuration.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(config)
		state.config = config
	}
	return state.config
}

// ModelReply is one scripted answer of a FakeModel.
type ModelReply struct {
	Text string
	Err  error
	// Block, when set, makes the call wait for the request context to end.
	Block bool
}

// FakeModel is a cloud.GenerativeModel that replays scripted replies in order.
// Once the script is exhausted the last reply is repeated.
type FakeModel struct {
	mu       sync.Mutex
	replies  []ModelReply
	Requests [][]*genai.Content
}

// NewFakeModel creates a fake answering with replies.
func NewFakeModel(replies ...ModelReply) *FakeModel {
	return &FakeModel{replies: replies}
}

// GenerateContent implements cloud.GenerativeModel.
func (f *FakeModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	reply := ModelReply{}
	idx := len(f.Requests)
	if idx < len(f.replies) {
		reply = f.replies[idx]
	} else if len(f.replies) > 0 {
		reply = f.replies[len(f.replies)-1]
	}
	f.Requests = append(f.Requests, content)
	f.mu.Unlock()

	if reply.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return NewTextResponse(reply.Text), nil
}

// Calls returns the number of requests received.
func (f *FakeModel) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// NewTextResponse builds a single candidate response holding text.
func NewTextResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 20},
	}
}

// GetTestAnalysisText is a well formed analysis answer with two scenes.
func GetTestAnalysisText() string {
	return "```json\n" + `{
  "title": "Review Son Môi",
  "scenes": [
    {"startTime": "00:00", "endTime": "00:03", "type": "Hook", "visualDescription": "Cận cảnh thỏi son", "audioScript": "Màu son này đang hot nhất TikTok!"},
    {"startTime": "00:03", "endTime": "00:10", "type": "Body", "visualDescription": "Swatch lên môi", "audioScript": "Chất son mịn, không khô môi."}
  ]
}` + "\n```"
}

// GetTestOptimizeText is a rewrite answer for the two scenes of
// GetTestAnalysisText. The model also changes the timing, which must be ignored.
func GetTestOptimizeText() string {
	return `{
  "scenes": [
    {"startTime": "00:01", "endTime": "00:02", "type": "Intro", "visualDescription": "x", "audioScript": "Dừng lại! Thỏi son này cháy hàng khắp TikTok."},
    {"startTime": "00:02", "endTime": "00:09", "type": "Outro", "visualDescription": "y", "audioScript": "Mịn như nhung, cả ngày không khô môi."}
  ]
}`
}

// GetTestBatchRequestText is a batch request as published on Pub/Sub.
func GetTestBatchRequestText() string {
	return `{"userId": "user-42", "urls": ["https://cdn.example.com/a.mp4", " https://cdn.example.com/b.mp4 "]}`
}
