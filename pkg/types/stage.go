// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the content-engine pipeline.
//
// A run takes a Topic through three stages in fixed order. Each stage is
// configured by a StageConfig and produces one StageResult; the ordered
// results plus the combined summary form the RunPackage that the packager
// writes to disk.
package types

import (
	"fmt"
	"strings"
	"time"
)

// StageName identifies one sequential phase of the pipeline.
type StageName string

const (
	StageResearch StageName = "research"
	StageWriting  StageName = "writing"
	StageSocial   StageName = "social"
)

// StageOrder is the fixed execution order of the pipeline.
var StageOrder = []StageName{StageResearch, StageWriting, StageSocial}

// Valid reports whether n is one of the three known stages.
func (n StageName) Valid() bool {
	for _, s := range StageOrder {
		if s == n {
			return true
		}
	}
	return false
}

// MinTopicLength is the shortest accepted topic after trimming.
const MinTopicLength = 5

// ValidateTopic trims topic and checks that it is long enough to run.
func ValidateTopic(topic string) (string, error) {
	t := strings.TrimSpace(topic)
	if t == "" {
		return "", &ConfigError{Field: "topic", Msg: "must not be empty"}
	}
	if len([]rune(t)) < MinTopicLength {
		return "", &ConfigError{Field: "topic", Msg: fmt.Sprintf("must be at least %d characters", MinTopicLength)}
	}
	return t, nil
}

// StageConfig holds the fixed model and behavior parameters for one stage.
type StageConfig struct {
	// Name is the stage this configuration applies to.
	Name StageName `json:"name" yaml:"name" mapstructure:"name"`

	// Model is the provider model identifier (e.g. "qwen/qwen3-32b").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// Label is a human-readable model name used in headers and the README.
	Label string `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`

	// Temperature is the sampling temperature in [0.0, 1.0].
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// MaxTokens is the output token budget passed to the model.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Tools lists the tool names this stage may call.
	Tools []string `json:"tools,omitempty" yaml:"tools,omitempty" mapstructure:"tools"`

	// MaxIterations bounds the number of tool-calling rounds.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations" mapstructure:"max_iterations"`

	// Role, Goal and Backstory form the system prompt.
	Role      string `json:"role" yaml:"role" mapstructure:"role"`
	Goal      string `json:"goal" yaml:"goal" mapstructure:"goal"`
	Backstory string `json:"backstory" yaml:"backstory" mapstructure:"backstory"`

	// Task is a text/template rendered with the topic; it becomes the user prompt.
	Task string `json:"task" yaml:"task" mapstructure:"task"`
}

// DisplayModel returns Label when set, otherwise Model.
func (c StageConfig) DisplayModel() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Model
}

// Usage reports token counts returned by the model provider. Not every
// provider returns usage; zero values mean unknown.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens" yaml:"completion_tokens"`
	TotalTokens      int `json:"total_tokens" yaml:"total_tokens"`
}

// Add accumulates u2 into u.
func (u *Usage) Add(u2 Usage) {
	u.PromptTokens += u2.PromptTokens
	u.CompletionTokens += u2.CompletionTokens
	u.TotalTokens += u2.TotalTokens
}

// StageResult is the text artifact produced by one stage. It is never
// mutated after the runner returns it.
type StageResult struct {
	Stage       StageName     `json:"stage" yaml:"stage"`
	Output      string        `json:"output" yaml:"output"`
	GeneratedAt time.Time     `json:"generated_at" yaml:"generated_at"`
	Model       string        `json:"model" yaml:"model"`
	Usage       Usage         `json:"usage" yaml:"usage"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	ToolCalls   int           `json:"tool_calls" yaml:"tool_calls"`
}

// RunPackage is the full set of outputs for one pipeline execution.
type RunPackage struct {
	// Topic is the user-supplied topic.
	Topic string `json:"topic" yaml:"topic"`

	// StartedAt is the run start time; it names the package directory.
	StartedAt time.Time `json:"started_at" yaml:"started_at"`

	// Results holds one StageResult per stage in StageOrder.
	Results []StageResult `json:"results" yaml:"results"`

	// Stages holds the configuration used for each result, parallel to Results.
	Stages []StageConfig `json:"stages" yaml:"stages"`

	// Summary is the combined markdown document.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`

	// Images holds generated images keyed by file name.
	Images map[string][]byte `json:"-" yaml:"-"`
}

// Result returns the StageResult for stage n.
func (p RunPackage) Result(n StageName) (StageResult, bool) {
	for _, r := range p.Results {
		if r.Stage == n {
			return r, true
		}
	}
	return StageResult{}, false
}

// Config returns the StageConfig used for stage n.
func (p RunPackage) Config(n StageName) (StageConfig, bool) {
	for _, c := range p.Stages {
		if c.Name == n {
			return c, true
		}
	}
	return StageConfig{}, false
}
