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
// This file contains general-purpose helpers: hierarchical configuration
// loading, secret resolution and a resilient wrapper around generative model
// calls.
//
// Functions:
//   - LoadConfig: reads a base TOML file and overwrites its values with an
//     environment specific one (e.g. .env.local.toml, .env.test.toml).
//   - LoadSecrets: resolves the Gemini API key from the environment or a .env file.
//   - GenerateMultiModalResponse: calls a model with retries and token metrics.
//   - CleanJSONText: extracts the JSON object from a model answer.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/avast/retry-go/v4"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

const (
	ConfigFileBaseName  = ".env"              // The base name for configuration files (e.g., ".env.toml").
	ConfigFileExtension = ".toml"             // The file extension for configuration files.
	ConfigSeparator     = "."                 // The separator used in config file names (e.g., ".env.local.toml").
	EnvConfigFilePrefix = "GCP_CONFIG_PREFIX" // The environment variable for specifying the config directory.
	EnvConfigRuntime    = "GCP_RUNTIME"       // The environment variable for specifying the runtime context (e.g., "local", "test", "prod").
)

// ErrEmptyResponse is returned when the model answered without any text.
var ErrEmptyResponse = errors.New("model returned no text")

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig provides a hierarchical configuration loading mechanism. It first loads a
// base configuration file and then merges or overwrites its values with an environment-specific
// configuration file. The paths and environment are determined by environment variables.
//
// Inputs:
//   - baseConfig: a pointer to the target configuration struct.
func LoadConfig(baseConfig interface{}) {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension

	if fileExists(baseConfigFileName) {
		_, err := toml.DecodeFile(baseConfigFileName, baseConfig)
		if err != nil {
			log.Fatalf("failed to decode base configuration file %s with error: %s", baseConfigFileName, err)
		}
	}

	// Values in the runtime file overwrite the base values.
	if fileExists(envConfigFileName) {
		_, err := toml.DecodeFile(envConfigFileName, baseConfig)
		if err != nil {
			log.Fatalf("failed to decode environment configuration file: %s with error: %s", envConfigFileName, err)
		}
	}
	slog.Debug("configuration loaded", "base", baseConfigFileName, "runtime", envConfigFileName)
}

// LoadSecrets reads an optional .env file into the process environment and
// resolves the API key from the variable named by application.api_key_env.
// Variables already present in the environment win over the file.
func LoadSecrets(config *Config, files ...string) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}
	if config.Application.APIKeyEnv != "" {
		config.Application.APIKey = strings.TrimSpace(os.Getenv(config.Application.APIKeyEnv))
	}
}

// ModelCounters groups the metrics recorded around a model call.
type ModelCounters struct {
	InputTokens  metric.Int64Counter
	OutputTokens metric.Int64Counter
	Retries      metric.Int64Counter
}

// NewModelCounters registers the counters of a model call under prefix.
func NewModelCounters(meter metric.Meter, prefix string) ModelCounters {
	in, _ := meter.Int64Counter(prefix + ".gemini.token.input")
	out, _ := meter.Int64Counter(prefix + ".gemini.token.output")
	retries, _ := meter.Int64Counter(prefix + ".gemini.retry")
	return ModelCounters{InputTokens: in, OutputTokens: out, Retries: retries}
}

// GenerateMultiModalResponse executes a multi-modal request against a
// generative model. A failed call is retried up to maxRetries times while the
// context is alive. The text of all candidates is concatenated and returned
// without markdown fences.
//
// Inputs:
//   - ctx: controls cancellation and tracing; its deadline bounds all attempts.
//   - counters: token and retry metrics, zero values are ignored.
//   - maxRetries: additional attempts after the first failure.
//   - model: the model to call.
//   - content: the prompt parts (video, text, ...).
//
// Outputs:
//   - string: the model text.
//   - error: the last error, ErrEmptyResponse when no text came back.
func GenerateMultiModalResponse(
	ctx context.Context,
	counters ModelCounters,
	maxRetries int,
	model GenerativeModel,
	content []*genai.Content) (value string, err error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	resp, err := retry.DoWithData(
		func() (*genai.GenerateContentResponse, error) {
			return model.GenerateContent(ctx, content)
		},
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries)+1),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(error) bool { return ctx.Err() == nil }),
		retry.OnRetry(func(n uint, err error) {
			if counters.Retries != nil {
				counters.Retries.Add(ctx, 1)
			}
			slog.WarnContext(ctx, "retrying model call", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", err
	}
	if resp.UsageMetadata != nil {
		if counters.InputTokens != nil {
			counters.InputTokens.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		}
		if counters.OutputTokens != nil {
			counters.OutputTokens.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
		}
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				sb.WriteString(fmt.Sprint(part.Text))
			}
		}
	}
	value = strings.TrimSpace(sb.String())
	value = strings.TrimPrefix(value, "```json")
	value = strings.TrimSuffix(value, "```")
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrEmptyResponse
	}
	return value, nil
}

// CleanJSONText returns the substring between the first '{' and the last '}'.
// Without such a pair, surrounding markdown fences are stripped instead.
func CleanJSONText(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// NewTextPart wraps a prompt in a user content.
func NewTextPart(in string) []*genai.Content {
	return genai.Text(in)
}

// NewInlineMediaContent builds a single user content holding the media bytes
// followed by the text prompt.
func NewInlineMediaContent(mimeType string, data []byte, prompt string) []*genai.Content {
	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText(prompt),
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}
