package types

import "time"

// HTTPConfig holds shared HTTP settings used by every outbound client.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "content-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries is the number of retries on HTTP 429. Zero disables retry.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RequestsPerMinute caps the outbound request rate. Zero disables limiting.
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" mapstructure:"requests_per_minute"`

	// BreakerFailures is the number of consecutive failures that opens the
	// circuit breaker. Zero disables the breaker.
	BreakerFailures int `json:"breaker_failures" yaml:"breaker_failures" mapstructure:"breaker_failures"`

	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration `json:"breaker_timeout" yaml:"breaker_timeout" mapstructure:"breaker_timeout"`
}

// ProviderConfig holds settings for the OpenAI-compatible model provider.
type ProviderConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the chat completions API base (e.g. "https://api.groq.com/openai/v1").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// APIKey is the authentication key for the provider.
	APIKey string `json:"-" yaml:"-" mapstructure:"api_key"`
}

// ToolsConfig holds settings for the research tool adapters.
type ToolsConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// SerperAPIKey authenticates Google Scholar and web search via Serper.dev.
	SerperAPIKey string `json:"-" yaml:"-" mapstructure:"serper_api_key"`

	// SerperBaseURL is the Serper.dev API base.
	SerperBaseURL string `json:"serper_base_url" yaml:"serper_base_url" mapstructure:"serper_base_url"`

	// SemanticScholarAPIKey is an optional key for higher rate limits.
	SemanticScholarAPIKey string `json:"-" yaml:"-" mapstructure:"semantic_scholar_api_key"`

	// SemanticScholarBaseURL is the Semantic Scholar paper search endpoint.
	SemanticScholarBaseURL string `json:"semantic_scholar_base_url" yaml:"semantic_scholar_base_url" mapstructure:"semantic_scholar_base_url"`

	// EnableSemanticScholar adds Semantic Scholar to the academic search fan-out.
	EnableSemanticScholar bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar" mapstructure:"enable_semantic_scholar"`

	// MaxResults bounds the snippets returned by each search tool (default 6).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// YearsBack filters academic results older than this many years (default 3).
	YearsBack int `json:"years_back" yaml:"years_back" mapstructure:"years_back"`

	// ScrapeMaxChars bounds the text returned by the scrape tool.
	ScrapeMaxChars int `json:"scrape_max_chars" yaml:"scrape_max_chars" mapstructure:"scrape_max_chars"`
}

// ImageConfig holds settings for optional image generation.
type ImageConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Enabled turns image generation on.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// APIKey authenticates against the image provider.
	APIKey string `json:"-" yaml:"-" mapstructure:"api_key"`

	// URL is the image generation endpoint.
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// Model is the image model (e.g. "sd3.5-large").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// AspectRatio is used when a prompt carries no --ar parameter.
	AspectRatio string `json:"aspect_ratio" yaml:"aspect_ratio" mapstructure:"aspect_ratio"`

	// MaxImages bounds the number of prompts rendered per run.
	MaxImages int `json:"max_images" yaml:"max_images" mapstructure:"max_images"`
}

// OutputConfig holds settings for the output packager.
type OutputConfig struct {
	// Dir is the base directory for run packages.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// Archive writes a sibling zip archive for every package.
	Archive bool `json:"archive" yaml:"archive" mapstructure:"archive"`
}

// LogConfig selects the structured log level and format.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// HistoryConfig holds settings for the run ledger.
type HistoryConfig struct {
	// Enabled records runs in the SQLite ledger.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// ServerConfig holds settings for the browser form server.
type ServerConfig struct {
	Addr         string        `json:"addr" yaml:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	RunTimeout   time.Duration `json:"run_timeout" yaml:"run_timeout" mapstructure:"run_timeout"`
}

// PipelineConfig groups all configuration for a process.
type PipelineConfig struct {
	Provider ProviderConfig `json:"provider" yaml:"provider" mapstructure:"provider"`
	Tools    ToolsConfig    `json:"tools" yaml:"tools" mapstructure:"tools"`
	Images   ImageConfig    `json:"images" yaml:"images" mapstructure:"images"`
	Output   OutputConfig   `json:"output" yaml:"output" mapstructure:"output"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
	History  HistoryConfig  `json:"history" yaml:"history" mapstructure:"history"`
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`

	// Stages holds one StageConfig per stage, in StageOrder.
	Stages []StageConfig `json:"stages" yaml:"stages" mapstructure:"-"`
}

// Stage returns the configuration for stage n.
func (c PipelineConfig) Stage(n StageName) (StageConfig, bool) {
	for _, s := range c.Stages {
		if s.Name == n {
			return s, true
		}
	}
	return StageConfig{}, false
}
