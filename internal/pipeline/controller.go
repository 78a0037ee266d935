// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline sequences the three stages of a run. Research runs with
// no prior context, writing receives the research output, and social
// receives the writing output. The first failure stops the run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pdiddy/content-engine/internal/logging"
	"github.com/pdiddy/content-engine/pkg/types"
)

// StageRunner executes one stage. *stage.Runner implements it.
type StageRunner interface {
	Run(ctx context.Context, cfg types.StageConfig, topic, input string) (types.StageResult, error)
}

// Observer receives progress notifications. Calls arrive on the goroutine
// running the pipeline, in stage order.
type Observer interface {
	StageStarted(stage types.StageName, index, total int)
	StageFinished(result types.StageResult, index, total int)
	StageFailed(stage types.StageName, err error)
}

// Controller runs the configured stages in StageOrder.
type Controller struct {
	Runner   StageRunner
	Stages   []types.StageConfig
	Observer Observer
	Logger   *slog.Logger
}

// New returns a Controller. stages must hold one configuration per stage.
func New(runner StageRunner, stages []types.StageConfig, obs Observer, logger *slog.Logger) *Controller {
	return &Controller{Runner: runner, Stages: stages, Observer: obs, Logger: logger}
}

// Run executes research, writing and social for topic and returns exactly
// three results in that order. Stage N+1 starts only after stage N has
// produced its result. On failure Run returns the error of the failing
// stage and no later stage is invoked.
func (c *Controller) Run(ctx context.Context, topic string) ([]types.StageResult, error) {
	topic, err := types.ValidateTopic(topic)
	if err != nil {
		return nil, err
	}
	configs, err := c.ordered()
	if err != nil {
		return nil, err
	}
	logger := c.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	total := len(configs)
	results := make([]types.StageResult, 0, total)
	input := ""
	for i, cfg := range configs {
		if err := ctx.Err(); err != nil {
			c.failed(cfg.Name, err)
			return nil, fmt.Errorf("run cancelled before stage %s: %w", cfg.Name, err)
		}

		c.started(cfg.Name, i, total)
		logger.InfoContext(ctx, "stage started",
			slog.String("stage", string(cfg.Name)),
			slog.Int("index", i+1),
			slog.Int("total", total),
		)

		res, err := c.Runner.Run(ctx, cfg, topic, input)
		if err != nil {
			logger.ErrorContext(ctx, "stage failed",
				slog.String("stage", string(cfg.Name)),
				slog.Any("error", err),
			)
			c.failed(cfg.Name, err)
			return nil, err
		}
		if res.Stage == "" {
			res.Stage = cfg.Name
		}

		results = append(results, res)
		c.finished(res, i, total)
		input = res.Output
	}
	return results, nil
}

// ordered returns one configuration per stage in StageOrder.
func (c *Controller) ordered() ([]types.StageConfig, error) {
	out := make([]types.StageConfig, 0, len(types.StageOrder))
	for _, name := range types.StageOrder {
		found := false
		for _, cfg := range c.Stages {
			if cfg.Name == name {
				out = append(out, cfg)
				found = true
				break
			}
		}
		if !found {
			return nil, &types.ConfigError{Field: "stages." + string(name), Msg: "is not configured"}
		}
	}
	return out, nil
}

func (c *Controller) started(n types.StageName, i, total int) {
	if c.Observer != nil {
		c.Observer.StageStarted(n, i, total)
	}
}

func (c *Controller) finished(r types.StageResult, i, total int) {
	if c.Observer != nil {
		c.Observer.StageFinished(r, i, total)
	}
}

func (c *Controller) failed(n types.StageName, err error) {
	if c.Observer != nil {
		c.Observer.StageFailed(n, err)
	}
}

// Observers fans notifications out to several observers in order.
type Observers []Observer

func (o Observers) StageStarted(n types.StageName, i, total int) {
	for _, obs := range o {
		obs.StageStarted(n, i, total)
	}
}

func (o Observers) StageFinished(r types.StageResult, i, total int) {
	for _, obs := range o {
		obs.StageFinished(r, i, total)
	}
}

func (o Observers) StageFailed(n types.StageName, err error) {
	for _, obs := range o {
		obs.StageFailed(n, err)
	}
}
