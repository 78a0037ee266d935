// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config assembles the process configuration from viper (defaults,
// YAML config file, CONTENT_ENGINE_* environment) and the secrets set.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/content-engine/internal/history"
	"github.com/pdiddy/content-engine/internal/imagegen"
	"github.com/pdiddy/content-engine/internal/llm"
	"github.com/pdiddy/content-engine/internal/packager"
	"github.com/pdiddy/content-engine/internal/secrets"
	"github.com/pdiddy/content-engine/internal/stage"
	"github.com/pdiddy/content-engine/internal/tools"
	"github.com/pdiddy/content-engine/pkg/types"
)

// EnvPrefix prefixes environment overrides, e.g.
// CONTENT_ENGINE_OUTPUT_DIR or CONTENT_ENGINE_STAGES_WRITING_TEMPERATURE.
const EnvPrefix = "CONTENT_ENGINE"

// ConfigName is the config file base name searched in the working
// directory and in ~/.config/content-engine.
const ConfigName = "content-engine"

// DefaultRequestsPerMinute caps outbound calls per client.
const DefaultRequestsPerMinute = 30

// UserAgent is sent with every outbound request.
var UserAgent = "content-engine/dev"

// Setup points v at the config file and environment. An explicit path
// must exist; the default locations are optional.
func Setup(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", ConfigName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return &types.ConfigError{Field: "config", Msg: fmt.Sprintf("reading %s: %v", cfgFile, err)}
	}
	return nil
}

// SetDefaults registers every known key with its default. Keys must be
// registered for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	httpDefaults := func(prefix string, timeout time.Duration) {
		v.SetDefault(prefix+".timeout", timeout)
		v.SetDefault(prefix+".user_agent", UserAgent)
		v.SetDefault(prefix+".max_retries", 0)
		v.SetDefault(prefix+".requests_per_minute", DefaultRequestsPerMinute)
		v.SetDefault(prefix+".breaker_failures", 5)
		v.SetDefault(prefix+".breaker_timeout", 30*time.Second)
	}

	httpDefaults("provider", 120*time.Second)
	v.SetDefault("provider.base_url", llm.DefaultBaseURL)
	v.SetDefault("provider.api_key", "")

	httpDefaults("tools", 30*time.Second)
	v.SetDefault("tools.serper_api_key", "")
	v.SetDefault("tools.serper_base_url", tools.DefaultSerperBaseURL)
	v.SetDefault("tools.semantic_scholar_api_key", "")
	v.SetDefault("tools.semantic_scholar_base_url", tools.DefaultSemanticScholarURL)
	v.SetDefault("tools.enable_semantic_scholar", false)
	v.SetDefault("tools.max_results", 6)
	v.SetDefault("tools.years_back", 3)
	v.SetDefault("tools.scrape_max_chars", 8000)

	httpDefaults("images", 120*time.Second)
	v.SetDefault("images.enabled", false)
	v.SetDefault("images.api_key", "")
	v.SetDefault("images.url", imagegen.DefaultURL)
	v.SetDefault("images.model", imagegen.DefaultModel)
	v.SetDefault("images.aspect_ratio", imagegen.DefaultAspectRatio)
	v.SetDefault("images.max_images", imagegen.DefaultMaxImages)

	v.SetDefault("output.dir", packager.DefaultDir)
	v.SetDefault("output.archive", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", history.DefaultPath)

	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("server.run_timeout", 20*time.Minute)

	for _, sc := range stage.Defaults() {
		p := "stages." + string(sc.Name) + "."
		v.SetDefault(p+"model", sc.Model)
		v.SetDefault(p+"label", sc.Label)
		v.SetDefault(p+"temperature", sc.Temperature)
		v.SetDefault(p+"max_tokens", sc.MaxTokens)
		v.SetDefault(p+"tools", sc.Tools)
		v.SetDefault(p+"max_iterations", sc.MaxIterations)
		v.SetDefault(p+"role", sc.Role)
		v.SetDefault(p+"goal", sc.Goal)
		v.SetDefault(p+"backstory", sc.Backstory)
		v.SetDefault(p+"task", sc.Task)
	}
}

// Load builds the pipeline configuration from v. Credentials not set in
// v are taken from sec, which falls back to the plain provider variables
// (GROQ_API_KEY, SERPER_API_KEY, STABILITY_API_KEY).
func Load(v *viper.Viper, sec secrets.Set) (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, &types.ConfigError{Field: "config", Msg: err.Error()}
	}

	for _, name := range types.StageOrder {
		cfg.Stages = append(cfg.Stages, loadStage(v, name))
	}

	setIfEmpty(&cfg.Provider.APIKey, sec.Get(secrets.GroqAPIKey))
	setIfEmpty(&cfg.Tools.SerperAPIKey, sec.Get(secrets.SerperAPIKey))
	setIfEmpty(&cfg.Tools.SemanticScholarAPIKey, sec.Get(secrets.SemanticScholarAPIKey))
	setIfEmpty(&cfg.Images.APIKey, sec.Get(secrets.StabilityAPIKey))
	return cfg, nil
}

// loadStage reads one stage key by key so that file, environment and
// default values merge per key rather than per stage.
func loadStage(v *viper.Viper, name types.StageName) types.StageConfig {
	p := "stages." + string(name) + "."
	return types.StageConfig{
		Name:          name,
		Model:         v.GetString(p + "model"),
		Label:         v.GetString(p + "label"),
		Temperature:   v.GetFloat64(p + "temperature"),
		MaxTokens:     v.GetInt(p + "max_tokens"),
		Tools:         v.GetStringSlice(p + "tools"),
		MaxIterations: v.GetInt(p + "max_iterations"),
		Role:          v.GetString(p + "role"),
		Goal:          v.GetString(p + "goal"),
		Backstory:     v.GetString(p + "backstory"),
		Task:          v.GetString(p + "task"),
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// serperTools are the tools that call Serper.dev.
var serperTools = []string{tools.AcademicSearchName, tools.WebSearchName}

// Validate checks cfg before a run. All problems are reported together;
// each one is a *types.ConfigError.
func Validate(cfg types.PipelineConfig) error {
	var errs []error
	add := func(field, msg string) {
		errs = append(errs, &types.ConfigError{Field: field, Msg: msg})
	}

	if cfg.Provider.APIKey == "" {
		add("provider.api_key", "is required (set GROQ_API_KEY or .secrets/"+secrets.GroqAPIKey+")")
	}
	if cfg.Provider.BaseURL == "" {
		add("provider.base_url", "must not be empty")
	}
	if cfg.Output.Dir == "" {
		add("output.dir", "must not be empty")
	}

	needsSerper := false
	for _, name := range types.StageOrder {
		sc, ok := cfg.Stage(name)
		field := "stages." + string(name)
		if !ok {
			add(field, "is not configured")
			continue
		}
		if sc.Model == "" {
			add(field+".model", "must not be empty")
		}
		if sc.Temperature < 0 || sc.Temperature > 1 {
			add(field+".temperature", fmt.Sprintf("must be between 0.0 and 1.0, got %g", sc.Temperature))
		}
		if sc.MaxTokens <= 0 {
			add(field+".max_tokens", "must be positive")
		}
		if sc.MaxIterations < 0 {
			add(field+".max_iterations", "must not be negative")
		}
		if strings.TrimSpace(sc.Task) == "" {
			add(field+".task", "must not be empty")
		}
		for _, t := range sc.Tools {
			if !slices.Contains(knownTools, t) {
				add(field+".tools", fmt.Sprintf("unknown tool %q", t))
			}
			if slices.Contains(serperTools, t) {
				needsSerper = true
			}
		}
	}

	if needsSerper && cfg.Tools.SerperAPIKey == "" {
		add("tools.serper_api_key", "is required by the search tools (set SERPER_API_KEY or .secrets/"+secrets.SerperAPIKey+")")
	}
	if cfg.Images.Enabled && cfg.Images.APIKey == "" {
		add("images.api_key", "is required when image generation is enabled (set STABILITY_API_KEY or .secrets/"+secrets.StabilityAPIKey+")")
	}
	return errors.Join(errs...)
}

var knownTools = []string{tools.AcademicSearchName, tools.WebSearchName, tools.ScrapeName}
