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

// Package cloud defines the application configuration, loaded from TOML files,
// and the clients used to talk to Google Cloud and Gemini.
//
// Structs:
//   - Acquisition: limits and routes used to fetch videos.
//   - Batch: pacing of the batch orchestrator.
//   - Storage, LocalStore, BigQueryDataSource: where scripts and source videos live.
//   - PromptTemplates: text/template prompts sent to the models.
//   - GenAIModel: per-agent model settings.
//   - TopicSubscription: a single Pub/Sub subscription.
//   - Config: the root that aggregates all of the above.
package cloud

import (
	"time"

	"google.golang.org/genai"
)

// Logical names used as keys in the configuration maps.
const (
	AnalystModelName         = "script-analyst"   // Watches a video and writes the scene list.
	OptimizerModelName       = "script-optimizer" // Rewrites the audio script of existing scenes.
	BatchRequestSubscription = "BatchRequests"    // Asynchronous batch requests.
)

// Supported values of application.genai_backend.
const (
	BackendGeminiAPI = "gemini-api"
	BackendVertex    = "vertex"
)

// MinAPIKeyLength is the shortest value accepted as a Gemini API key.
const MinAPIKeyLength = 5

// DefaultSafetySettings disables blocking for every harm category. Videos are
// user supplied marketing content and a blocked answer is surfaced to the user
// as a rejected analysis anyway.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Application holds general application settings.
type Application struct {
	Name                      string `toml:"name"`                         // The name of the application.
	GoogleProjectId           string `toml:"google_project_id"`            // The Google Cloud project ID, optional in gemini-api mode.
	GoogleLocation            string `toml:"location"`                     // The Google Cloud location.
	GenAIBackend              string `toml:"genai_backend"`                // "gemini-api" or "vertex".
	APIKeyEnv                 string `toml:"api_key_env"`                  // Name of the environment variable holding the Gemini API key.
	APIKey                    string `toml:"-"`                            // Resolved at load time, never read from TOML.
	HTTPPort                  string `toml:"http_port"`                    // Port of the HTTP API.
	LogFile                   string `toml:"log_file"`                     // Optional log file, in addition to stdout.
	SignerServiceAccountEmail string `toml:"signer_service_account_email"` // The service account used for signing GCS URLs.
}

// Acquisition configures how videos are fetched.
type Acquisition struct {
	MaxFileSizeMB       int64    `toml:"max_file_size_mb"`      // Upper bound for uploaded and downloaded videos.
	FetchTimeoutSeconds int      `toml:"fetch_timeout_seconds"` // Per request timeout, for the resolver and every route.
	ResolverURL         string   `toml:"resolver_url"`          // Endpoint turning a platform page URL into a direct video URL.
	PlatformDomains     []string `toml:"platform_domains"`      // Hosts that require the resolver.
	ProxyRoutes         []string `toml:"proxy_routes"`          // Ordered fmt templates, %s receives the escaped target URL.
	UserAgent           string   `toml:"user_agent"`            // Sent on every outbound request.
}

// MaxFileSize returns the size limit in bytes.
func (a Acquisition) MaxFileSize() int64 {
	return a.MaxFileSizeMB * 1024 * 1024
}

// DefaultFetchTimeout applies when no positive fetch timeout is configured.
const DefaultFetchTimeout = 60 * time.Second

// FetchTimeout returns the per request timeout.
func (a Acquisition) FetchTimeout() time.Duration {
	if a.FetchTimeoutSeconds <= 0 {
		return DefaultFetchTimeout
	}
	return time.Duration(a.FetchTimeoutSeconds) * time.Second
}

// Batch configures the batch orchestrator.
type Batch struct {
	InterItemDelayMs      int `toml:"inter_item_delay_ms"`     // Pause between two items of a batch.
	ResyncIntervalSeconds int `toml:"resync_interval_seconds"` // Period of the unsynced record reconciliation, 0 disables it.
}

// InterItemDelay returns the pause between items.
func (b Batch) InterItemDelay() time.Duration {
	return time.Duration(b.InterItemDelayMs) * time.Millisecond
}

// ResyncInterval is zero when reconciliation is disabled.
func (b Batch) ResyncInterval() time.Duration {
	return time.Duration(b.ResyncIntervalSeconds) * time.Second
}

// Storage configures the optional source video archive.
type Storage struct {
	ArchiveBucket    string `toml:"archive_bucket"`     // Empty disables archiving.
	SignedURLMinutes int    `toml:"signed_url_minutes"` // Lifetime of preview URLs.
}

// LocalStore configures the guest script store.
type LocalStore struct {
	Path string `toml:"path"` // SQLite database file, ":memory:" is accepted.
}

// BigQueryDataSource represents the configuration for the per-user script store.
type BigQueryDataSource struct {
	DatasetName  string `toml:"dataset"`       // The name of the BigQuery dataset.
	ScriptsTable string `toml:"scripts_table"` // The table holding one row per script, scenes nested.
}

// PromptTemplates holds the text/template sources of the prompts.
type PromptTemplates struct {
	AnalysisPrompt string `toml:"analysis"` // Sent with the video.
	OptimizePrompt string `toml:"optimize"` // Receives {{.SCENES_JSON}}, {{.EXAMPLE_JSON}} and {{.TITLE}}.
}

// GenAIModel represents the configuration of one generative model agent.
type GenAIModel struct {
	Model              string  `toml:"model"`               // The model id, e.g. gemini-2.5-flash.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the model.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter.
	TopP               float32 `toml:"top_p"`               // The top_p parameter.
	TopK               float32 `toml:"top_k"`               // The top_k parameter.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of output tokens.
	OutputFormat       string  `toml:"output_format"`       // The response MIME type.
	RateLimit          int     `toml:"rate_limit"`          // Requests per second.
	TimeoutSeconds     int     `toml:"timeout_seconds"`     // Hard limit for one call, retries included.
	MaxRetries         int     `toml:"max_retries"`         // Additional attempts after a failed call.
}

// Timeout returns the hard call limit.
func (m GenAIModel) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// TopicSubscription represents the configuration for a Pub/Sub topic subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The name of the dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // The timeout for the subscription in seconds.
}

// Config represents the overall configuration for the application, loaded from TOML files.
type Config struct {
	Application        Application                  `toml:"application"`
	Acquisition        Acquisition                  `toml:"acquisition"`
	Batch              Batch                        `toml:"batch"`
	Storage            Storage                      `toml:"storage"`
	LocalStore         LocalStore                   `toml:"local_store"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"`
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"` // Keyed by logical name, e.g. "BatchRequests".
	AgentModels        map[string]GenAIModel        `toml:"agent_models"`        // Keyed by logical name, e.g. "script-analyst".
}

// NewConfig creates a Config holding the built-in defaults. Values decoded
// from TOML files overwrite them field by field.
func NewConfig() *Config {
	return &Config{
		Application: Application{
			Name:         "script-studio",
			GenAIBackend: BackendGeminiAPI,
			APIKeyEnv:    "GEMINI_API_KEY",
			HTTPPort:     "8080",
		},
		Acquisition: Acquisition{
			MaxFileSizeMB:       30,
			FetchTimeoutSeconds: 60,
			ResolverURL:         "https://www.tikwm.com/api/",
			PlatformDomains:     []string{"tiktok.com"},
			ProxyRoutes:         []string{"https://corsproxy.io/?%s"},
			UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Batch:      Batch{InterItemDelayMs: 1500},
		Storage:    Storage{SignedURLMinutes: 15},
		LocalStore: LocalStore{Path: "script-studio.db"},
		BigQueryDataSource: BigQueryDataSource{
			DatasetName:  "script_studio",
			ScriptsTable: "scripts",
		},
		TopicSubscriptions: make(map[string]TopicSubscription),
		AgentModels:        make(map[string]GenAIModel),
	}
}

// HasGenAICredential reports whether enough configuration is present to call
// the generative model: a plausible API key in gemini-api mode, a project in
// vertex mode.
func (c *Config) HasGenAICredential() bool {
	if c.Application.GenAIBackend == BackendVertex {
		return c.Application.GoogleProjectId != ""
	}
	return len(c.Application.APIKey) >= MinAPIKeyLength
}
