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
// This file initializes and holds the clients used by the rest of the
// application. It acts as a small dependency injection container: a single
// ServiceClients value is built at startup and passed to the services,
// workflows and HTTP handlers.
//
// Clients are only created when their configuration is present. A developer
// running in guest mode needs nothing but a Gemini API key, and even without
// a key the server starts and reports the missing key on the first analysis.
package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/genai"
)

// ServiceClients is the container of all external clients. Any field may be
// nil when the matching configuration is absent.
type ServiceClients struct {
	StorageClient   *storage.Client                         // Source video archive.
	PubsubClient    *pubsub.Client                          // Asynchronous batch requests.
	GenAIClient     *genai.Client                           // Gemini, API key or Vertex backend.
	BigQueryClient  *bigquery.Client                        // Per-user script store.
	IAMClient       *credentials.IamCredentialsClient       // Signs preview URLs.
	PubSubListeners map[string]*PubSubListener              // Keyed by the logical subscription name.
	AgentModels     map[string]*QuotaAwareGenerativeAIModel // Keyed by the logical agent name.
}

// Close shuts down every client that was created.
func (c *ServiceClients) Close() {
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.BigQueryClient != nil {
		_ = c.BigQueryClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
}

// AgentModel returns the model registered under name, or nil.
func (c *ServiceClients) AgentModel(name string) *QuotaAwareGenerativeAIModel {
	if c == nil || c.AgentModels == nil {
		return nil
	}
	return c.AgentModels[name]
}

// NewCloudServiceClients initializes the clients required by config.
//
// Inputs:
//   - ctx: the root context of the application.
//   - config: the loaded configuration, secrets included.
//
// Outputs:
//   - *ServiceClients: the initialized clients.
//   - error: the first client creation failure.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	cloud = &ServiceClients{
		PubSubListeners: make(map[string]*PubSubListener),
		AgentModels:     make(map[string]*QuotaAwareGenerativeAIModel),
	}
	projectID := config.Application.GoogleProjectId

	if config.Storage.ArchiveBucket != "" {
		if cloud.StorageClient, err = storage.NewClient(ctx); err != nil {
			return nil, errors.Wrap(err, "storage client")
		}
	}

	if config.Application.SignerServiceAccountEmail != "" {
		if cloud.IAMClient, err = credentials.NewIamCredentialsClient(ctx); err != nil {
			return nil, errors.Wrap(err, "iam credentials client")
		}
	}

	if projectID != "" {
		if cloud.BigQueryClient, err = bigquery.NewClient(ctx, projectID); err != nil {
			return nil, errors.Wrap(err, "bigquery client")
		}
		if len(config.TopicSubscriptions) > 0 {
			if cloud.PubsubClient, err = pubsub.NewClient(ctx, projectID); err != nil {
				return nil, errors.Wrap(err, "pubsub client")
			}
			// Commands are attached once the workflows are built.
			for subKey, values := range config.TopicSubscriptions {
				listener, err := NewPubSubListener(cloud.PubsubClient, values.Name, nil)
				if err != nil {
					return nil, err
				}
				cloud.PubSubListeners[subKey] = listener
			}
		}
	}

	if !config.HasGenAICredential() {
		slog.Warn("no generative model credential configured", "backend", config.Application.GenAIBackend)
		return cloud, nil
	}

	clientConfig := &genai.ClientConfig{APIKey: config.Application.APIKey, Backend: genai.BackendGeminiAPI}
	if config.Application.GenAIBackend == BackendVertex {
		clientConfig = &genai.ClientConfig{
			Project:  projectID,
			Location: config.Application.GoogleLocation,
			Backend:  genai.BackendVertexAI,
		}
	}
	if cloud.GenAIClient, err = genai.NewClient(ctx, clientConfig); err != nil {
		return nil, errors.Wrap(err, "genai client")
	}

	for amKey, values := range config.AgentModels {
		model := &genai.GenerateContentConfig{
			Temperature:       genai.Ptr[float32](values.Temperature),
			TopP:              genai.Ptr[float32](values.TopP),
			TopK:              genai.Ptr[float32](values.TopK),
			MaxOutputTokens:   values.MaxTokens,
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}},
			SafetySettings:    DefaultSafetySettings,
			ResponseMIMEType:  values.OutputFormat,
		}
		cloud.AgentModels[amKey] = NewQuotaAwareModel(model, values.Model, cloud.GenAIClient.Models, values.RateLimit)
		slog.Info("agent model configured", "agent", amKey, "model", values.Model)
	}

	return cloud, nil
}
