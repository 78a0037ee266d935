// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stage runs one agent task: it renders the stage prompts, calls
// the configured model, executes the tool calls the model requests, and
// returns the final text as a StageResult.
package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/pdiddy/content-engine/internal/llm"
	"github.com/pdiddy/content-engine/internal/logging"
	"github.com/pdiddy/content-engine/pkg/types"
)

// ToolSet declares and executes tools. *tools.Registry implements it.
type ToolSet interface {
	Definitions(names []string) ([]llm.Tool, error)
	Invoke(ctx context.Context, name, args string) (string, error)
}

// Runner executes stages against a model provider.
type Runner struct {
	Provider llm.Provider
	Tools    ToolSet
	Logger   *slog.Logger

	// now is the clock used for GeneratedAt and Duration.
	now func() time.Time
}

// NewRunner returns a Runner. tools may be nil when no stage uses tools.
func NewRunner(provider llm.Provider, tools ToolSet, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{Provider: provider, Tools: tools, Logger: logger, now: time.Now}
}

// Run executes the stage described by cfg for topic. input is the output
// of the previous stage and is empty for the first stage.
//
// The runner offers the stage's enabled tools for at most MaxIterations
// rounds, then makes one final call with tool_choice "none". Model
// failures are returned as *types.ProviderError and tool failures as
// *types.ToolError; neither is retried.
func (r *Runner) Run(ctx context.Context, cfg types.StageConfig, topic, input string) (types.StageResult, error) {
	if cfg.Model == "" {
		return types.StageResult{}, &types.ConfigError{Field: fmt.Sprintf("stages.%s.model", cfg.Name), Msg: "must not be empty"}
	}
	clock := r.now
	if clock == nil {
		clock = time.Now
	}
	start := clock()
	logger := r.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With(slog.String("stage", string(cfg.Name)), slog.String("model", cfg.Model))

	prompts, err := renderPrompts(cfg, topic, input)
	if err != nil {
		return types.StageResult{}, err
	}

	var defs []llm.Tool
	if len(cfg.Tools) > 0 {
		if r.Tools == nil {
			return types.StageResult{}, &types.ToolError{Tool: cfg.Tools[0], Err: errors.New("no tools are available")}
		}
		defs, err = r.Tools.Definitions(cfg.Tools)
		if err != nil {
			return types.StageResult{}, err
		}
	}

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	temp := cfg.Temperature

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: prompts.System},
		{Role: llm.RoleUser, Content: prompts.User},
	}

	var usage types.Usage
	toolCalls := 0
	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return types.StageResult{}, fmt.Errorf("stage %s: %w", cfg.Name, err)
		}

		req := llm.ChatRequest{
			Model:       cfg.Model,
			Messages:    messages,
			MaxTokens:   cfg.MaxTokens,
			Temperature: &temp,
		}
		final := len(defs) == 0 || round >= maxIter
		if len(defs) > 0 {
			req.Tools = defs
			req.ToolChoice = "auto"
			if final {
				req.ToolChoice = "none"
			}
		}

		logger.DebugContext(ctx, "calling model", slog.Int("round", round), slog.Int("messages", len(messages)))
		resp, err := r.Provider.Chat(ctx, req)
		if err != nil {
			return types.StageResult{}, stampProviderError(err, cfg)
		}
		if resp.Usage != nil {
			usage.Add(*resp.Usage)
		}

		msg, ok := resp.First()
		if !ok {
			return types.StageResult{}, &types.ProviderError{Stage: cfg.Name, Model: cfg.Model, Kind: types.ProviderEmpty, Err: errors.New("response has no choices")}
		}

		if len(msg.ToolCalls) == 0 || final {
			text := StripReasoning(msg.Content)
			if text == "" {
				return types.StageResult{}, &types.ProviderError{Stage: cfg.Name, Model: cfg.Model, Kind: types.ProviderEmpty, Err: errors.New("model returned no text")}
			}
			end := clock()
			logger.InfoContext(ctx, "stage finished",
				slog.Int("tool_calls", toolCalls),
				slog.Int("chars", len(text)),
				slog.Int("total_tokens", usage.TotalTokens),
				slog.Duration("elapsed", end.Sub(start)),
			)
			return types.StageResult{
				Stage:       cfg.Name,
				Output:      text,
				GeneratedAt: end,
				Model:       cfg.Model,
				Usage:       usage,
				Duration:    end.Sub(start),
				ToolCalls:   toolCalls,
			}, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   msg.Content,
			ToolCalls: msg.ToolCalls,
		})
		for _, call := range msg.ToolCalls {
			name := call.Function.Name
			if !slices.Contains(cfg.Tools, name) {
				return types.StageResult{}, &types.ToolError{Tool: name, Err: fmt.Errorf("tool is not enabled for stage %s", cfg.Name)}
			}
			logger.InfoContext(ctx, "invoking tool", slog.String("tool", name), slog.Int("round", round))
			out, err := r.Tools.Invoke(ctx, name, call.Function.Arguments)
			if err != nil {
				if !errors.Is(err, types.ErrTool) {
					err = &types.ToolError{Tool: name, Err: err}
				}
				return types.StageResult{}, err
			}
			toolCalls++
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Name:       name,
				Content:    out,
			})
		}
	}
}

// stampProviderError attaches the stage to a provider error. Any other
// error is classified as an unavailable provider.
func stampProviderError(err error, cfg types.StageConfig) error {
	var pe *types.ProviderError
	if errors.As(err, &pe) {
		stamped := *pe
		stamped.Stage = cfg.Name
		if stamped.Model == "" {
			stamped.Model = cfg.Model
		}
		return &stamped
	}
	return &types.ProviderError{Stage: cfg.Name, Model: cfg.Model, Kind: types.ProviderUnavailable, Err: err}
}
