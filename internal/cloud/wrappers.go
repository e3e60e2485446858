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

// Package cloud provides components for interacting with Google Cloud services.
// This file implements a rate limited decorator around the generative model
// client so that bursts of batch items never exceed the configured quota.
package cloud

import (
	"context"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GenerativeModel is the part of a model client used by the analyzer and the
// optimizer. It is satisfied by QuotaAwareGenerativeAIModel and by test fakes.
type GenerativeModel interface {
	GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error)
}

// QuotaAwareGenerativeAIModel binds a model name and its generation settings
// to the shared genai.Models handle and throttles calls with a token bucket.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig // Settings sent with every request.
	ModelName               string
	ModelHandle             *genai.Models
	RateLimit               *rate.Limiter // Allows requestsPerSecond calls in a burst, refilled once per second.
}

// NewQuotaAwareModel creates a new QuotaAwareGenerativeAIModel.
//
// Inputs:
//   - wrapped: the generation settings.
//   - name: the model id, e.g. "gemini-2.5-flash".
//   - modelHandle: the Models service of a genai client.
//   - requestsPerSecond: the burst size of the limiter, at least 1.
func NewQuotaAwareModel(wrapped *genai.GenerateContentConfig, name string, modelHandle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	if requestsPerSecond < 1 {
		requestsPerSecond = 1
	}
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: wrapped,
		ModelName:               name,
		ModelHandle:             modelHandle,
		RateLimit:               rate.NewLimiter(rate.Every(time.Second), requestsPerSecond),
	}
}

// GenerateContent waits for the limiter and forwards the call. Waiting honours
// the context, so a cancelled request never reaches the model.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerativeContentConfig)
}

// WithResponseSchema returns a copy of the model that asks for JSON matching
// schema. The limiter is shared, the settings are copied.
func (q *QuotaAwareGenerativeAIModel) WithResponseSchema(schema *genai.Schema) *QuotaAwareGenerativeAIModel {
	cfg := &genai.GenerateContentConfig{}
	if q.GenerativeContentConfig != nil {
		copied := *q.GenerativeContentConfig
		cfg = &copied
	}
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = schema
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: cfg,
		ModelName:               q.ModelName,
		ModelHandle:             q.ModelHandle,
		RateLimit:               q.RateLimit,
	}
}
