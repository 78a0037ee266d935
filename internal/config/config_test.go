// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/content-engine/internal/secrets"
	"github.com/pdiddy/content-engine/internal/stage"
	"github.com/pdiddy/content-engine/internal/tools"
	"github.com/pdiddy/content-engine/pkg/types"
)

// clearKeyEnv removes provider key variables for the duration of a test.
func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GROQ_API_KEY", "SERPER_API_KEY", "STABILITY_API_KEY", "SEMANTIC_SCHOLAR_API_KEY"} {
		t.Setenv(k, "")
	}
}

func loadDefaults(t *testing.T, sec secrets.Set) types.PipelineConfig {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v, sec)
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	clearKeyEnv(t)
	cfg := loadDefaults(t, secrets.Set{})

	require.Len(t, cfg.Stages, 3)
	for i, want := range stage.Defaults() {
		got := cfg.Stages[i]
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Model, got.Model)
		assert.Equal(t, want.Temperature, got.Temperature)
		assert.Equal(t, want.MaxTokens, got.MaxTokens)
		assert.Equal(t, want.MaxIterations, got.MaxIterations)
		assert.Equal(t, want.Task, got.Task)
	}
	research, _ := cfg.Stage(types.StageResearch)
	assert.ElementsMatch(t, []string{tools.AcademicSearchName, tools.WebSearchName, tools.ScrapeName}, research.Tools)

	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.Provider.BaseURL)
	assert.Equal(t, 120*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, DefaultRequestsPerMinute, cfg.Provider.RequestsPerMinute)
	assert.Equal(t, 6, cfg.Tools.MaxResults)
	assert.Equal(t, 3, cfg.Tools.YearsBack)
	assert.Equal(t, "multi_agent_content", cfg.Output.Dir)
	assert.True(t, cfg.History.Enabled)
	assert.False(t, cfg.Images.Enabled)
	assert.Empty(t, cfg.Provider.APIKey)
}

func TestLoadKeysFromSecrets(t *testing.T) {
	clearKeyEnv(t)
	cfg := loadDefaults(t, secrets.Set{
		secrets.GroqAPIKey:      "gsk_file",
		secrets.SerperAPIKey:    "serper_file",
		secrets.StabilityAPIKey: "sk-file",
	})
	assert.Equal(t, "gsk_file", cfg.Provider.APIKey)
	assert.Equal(t, "serper_file", cfg.Tools.SerperAPIKey)
	assert.Equal(t, "sk-file", cfg.Images.APIKey)
}

func TestLoadKeysFromPlainEnv(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk_env")
	cfg := loadDefaults(t, nil)
	assert.Equal(t, "gsk_env", cfg.Provider.APIKey)
}

func TestPrefixedEnvOverrides(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("CONTENT_ENGINE_STAGES_WRITING_TEMPERATURE", "0.2")
	t.Setenv("CONTENT_ENGINE_OUTPUT_DIR", "elsewhere")
	t.Setenv("CONTENT_ENGINE_PROVIDER_API_KEY", "gsk_prefixed")

	v := viper.New()
	require.NoError(t, Setup(v, ""))
	cfg, err := Load(v, secrets.Set{secrets.GroqAPIKey: "gsk_file"})
	require.NoError(t, err)

	writing, ok := cfg.Stage(types.StageWriting)
	require.True(t, ok)
	assert.Equal(t, 0.2, writing.Temperature)
	def := stage.Defaults()[1]
	assert.Equal(t, def.Model, writing.Model, "other stage keys keep defaults")
	assert.Equal(t, def.Task, writing.Task)
	assert.Equal(t, def.MaxTokens, writing.MaxTokens)
	assert.Equal(t, "elsewhere", cfg.Output.Dir)
	assert.Equal(t, "gsk_prefixed", cfg.Provider.APIKey, "config value wins over secrets file")
}

func TestSetupConfigFile(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output:
  dir: from-file
  archive: true
stages:
  social:
    max_tokens: 1500
images:
  enabled: true
`), 0o644))

	v := viper.New()
	require.NoError(t, Setup(v, path))
	cfg, err := Load(v, secrets.Set{})
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Output.Dir)
	assert.True(t, cfg.Output.Archive)
	assert.True(t, cfg.Images.Enabled)
	social, _ := cfg.Stage(types.StageSocial)
	assert.Equal(t, 1500, social.MaxTokens)
	assert.Equal(t, 0.7, social.Temperature, "unset keys keep defaults")
	def := stage.Defaults()[2]
	assert.Equal(t, def.Model, social.Model)
	assert.Equal(t, def.Role, social.Role)
	assert.Equal(t, def.Task, social.Task)
	assert.Equal(t, def.MaxIterations, social.MaxIterations)

	cfg.Provider.APIKey = "gsk_x"
	cfg.Tools.SerperAPIKey = "serper_x"
	cfg.Images.APIKey = "sk_x"
	assert.NoError(t, Validate(cfg))
}

func TestSetupConfigFileStageTools(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stages:
  research:
    tools: [scrape_website]
`), 0o644))

	v := viper.New()
	require.NoError(t, Setup(v, path))
	cfg, err := Load(v, secrets.Set{})
	require.NoError(t, err)

	research, _ := cfg.Stage(types.StageResearch)
	assert.Equal(t, []string{tools.ScrapeName}, research.Tools)
	assert.Equal(t, stage.Defaults()[0].Model, research.Model)
	assert.NotEmpty(t, research.Task)
}

func TestSetupMissingExplicitFile(t *testing.T) {
	err := Setup(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfig)
}

func validConfig(t *testing.T) types.PipelineConfig {
	t.Helper()
	clearKeyEnv(t)
	return loadDefaults(t, secrets.Set{
		secrets.GroqAPIKey:   "gsk_x",
		secrets.SerperAPIKey: "serper_x",
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.PipelineConfig)
		fields []string
	}{
		{name: "valid defaults", mutate: func(*types.PipelineConfig) {}},
		{
			name:   "missing provider key",
			mutate: func(c *types.PipelineConfig) { c.Provider.APIKey = "" },
			fields: []string{"provider.api_key"},
		},
		{
			name:   "missing serper key with search tools",
			mutate: func(c *types.PipelineConfig) { c.Tools.SerperAPIKey = "" },
			fields: []string{"tools.serper_api_key"},
		},
		{
			name: "serper key not needed for scrape only",
			mutate: func(c *types.PipelineConfig) {
				c.Tools.SerperAPIKey = ""
				c.Stages[0].Tools = []string{tools.ScrapeName}
			},
		},
		{
			name: "bad stage values",
			mutate: func(c *types.PipelineConfig) {
				c.Stages[1].Temperature = 1.5
				c.Stages[1].MaxTokens = 0
				c.Stages[2].Model = ""
				c.Stages[0].Tools = append(c.Stages[0].Tools, "teleport")
			},
			fields: []string{"stages.writing.temperature", "stages.writing.max_tokens", "stages.social.model", "stages.research.tools"},
		},
		{
			name:   "missing stage",
			mutate: func(c *types.PipelineConfig) { c.Stages = c.Stages[:2] },
			fields: []string{"stages.social"},
		},
		{
			name:   "images without key",
			mutate: func(c *types.PipelineConfig) { c.Images.Enabled = true },
			fields: []string{"images.api_key"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := Validate(cfg)
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrConfig)
			for _, f := range tt.fields {
				assert.Contains(t, err.Error(), f)
			}
			var ce *types.ConfigError
			assert.True(t, errors.As(err, &ce))
		})
	}
}

func TestValidateNeverEchoesKeys(t *testing.T) {
	cfg := validConfig(t)
	cfg.Stages[1].Temperature = 2
	err := Validate(cfg)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "gsk_x")
	assert.NotContains(t, err.Error(), "serper_x")
}
