// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package app wires the pipeline components into one run: the three
// stages, optional image rendering, packaging and the run ledger. The CLI
// and the browser form both drive runs through Engine.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/content-engine/internal/history"
	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/internal/imagegen"
	"github.com/pdiddy/content-engine/internal/llm"
	"github.com/pdiddy/content-engine/internal/logging"
	"github.com/pdiddy/content-engine/internal/packager"
	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/internal/social"
	"github.com/pdiddy/content-engine/internal/stage"
	"github.com/pdiddy/content-engine/internal/tools"
	"github.com/pdiddy/content-engine/pkg/types"
)

// ImageRenderer turns image prompts into named PNG files.
// *imagegen.Generator implements it.
type ImageRenderer interface {
	GenerateAll(ctx context.Context, prompts []string) (map[string][]byte, error)
}

// Engine executes complete runs.
type Engine struct {
	Runner pipeline.StageRunner
	Stages []types.StageConfig

	// Images is nil when image generation is disabled.
	Images ImageRenderer

	// Packager is nil when output is kept in memory only.
	Packager *packager.Packager

	// History is nil when the ledger is disabled.
	History *history.Store

	Logger *slog.Logger
	now    func() time.Time
}

// Result is a finished run.
type Result struct {
	ID       string
	Package  types.RunPackage
	Social   social.Content
	Files    []packager.File
	Output   packager.Output
	Warnings []string
}

// New builds an Engine from cfg. Each downstream service gets its own
// HTTP client so rate limits and breakers are independent. store may be
// nil.
func New(cfg types.PipelineConfig, store *history.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	provider := llm.NewClient(cfg.Provider, httputil.New("groq", cfg.Provider.HTTPConfig, logger))
	registry := tools.New(cfg.Tools, httputil.New("tools", cfg.Tools.HTTPConfig, logger))

	e := &Engine{
		Runner:   stage.NewRunner(provider, registry, logger),
		Stages:   cfg.Stages,
		Packager: packager.New(cfg.Output),
		History:  store,
		Logger:   logger,
	}
	if cfg.Images.Enabled {
		e.Images = imagegen.New(cfg.Images, httputil.New("stability", cfg.Images.HTTPConfig, logger))
	}
	return e
}

// Run executes the pipeline for topic and packages the result. obs may be
// nil. Nothing is packaged when a stage fails. Image failures are
// reported as warnings and never fail the run.
func (e *Engine) Run(ctx context.Context, topic string, obs pipeline.Observer) (*Result, error) {
	topic, err := types.ValidateTopic(topic)
	if err != nil {
		return nil, err
	}
	now := e.now
	if now == nil {
		now = time.Now
	}
	logger := e.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	started := now()
	res := &Result{ID: uuid.NewString()}
	observers := pipeline.Observers{}
	if obs != nil {
		observers = append(observers, obs)
	}

	recording := false
	if e.History != nil {
		id, err := e.History.Start(ctx, topic, started)
		if err != nil {
			logger.WarnContext(ctx, "run history unavailable", slog.Any("error", err))
		} else {
			res.ID = id
			recording = true
		}
	}

	logger = logger.With(slog.String("run_id", res.ID))
	ctx = logging.WithLogger(ctx, logger)
	logger.InfoContext(ctx, "run started", slog.String("topic", topic))

	var rec *history.Recorder
	if recording {
		rec = e.History.Recorder(ctx, res.ID)
		observers = append(observers, rec)
	}

	results, err := pipeline.New(e.Runner, e.Stages, observers, logger).Run(ctx, topic)
	if err != nil {
		if recording && !rec.Failed() {
			e.fail(ctx, res.ID, "", err)
		}
		return nil, err
	}

	res.Package = types.RunPackage{
		Topic:     topic,
		StartedAt: started,
		Results:   results,
		Stages:    e.orderedStages(),
	}

	if sr, ok := res.Package.Result(types.StageSocial); ok {
		res.Social = social.Parse(sr.Output)
		res.Warnings = append(res.Warnings, res.Social.Warnings...)
		for _, w := range res.Social.Warnings {
			logger.WarnContext(ctx, "social content", slog.String("warning", w))
		}
	}

	if e.Images != nil && len(res.Social.ImagePrompts) > 0 {
		images, err := e.Images.GenerateAll(ctx, res.Social.ImagePrompts)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("image generation: %v", err))
		}
		if len(images) > 0 {
			res.Package.Images = images
		}
	}

	res.Files, err = packager.Render(&res.Package)
	if err != nil {
		perr := &types.PackagingError{Path: "render", Err: err}
		if recording {
			e.fail(ctx, res.ID, "", perr)
		}
		return nil, perr
	}

	if e.Packager != nil {
		res.Output, err = e.Packager.WriteFiles(topic, started, res.Files)
		if err != nil {
			if recording {
				e.fail(ctx, res.ID, "", err)
			}
			return nil, err
		}
	}

	if recording {
		if err := e.History.Finish(ctx, res.ID, res.Output.Dir, res.Output.Archive); err != nil {
			logger.WarnContext(ctx, "recording run completion", slog.Any("error", err))
		}
	}
	logger.InfoContext(ctx, "run finished",
		slog.String("dir", res.Output.Dir),
		slog.Int("files", len(res.Files)),
		slog.Duration("elapsed", now().Sub(started)),
	)
	return res, nil
}

func (e *Engine) fail(ctx context.Context, id string, failed types.StageName, err error) {
	if ferr := e.History.Fail(context.WithoutCancel(ctx), id, failed, err); ferr != nil {
		logging.FromContext(ctx).WarnContext(ctx, "recording run failure", slog.Any("error", ferr))
	}
}

// orderedStages returns the stage configurations in StageOrder.
func (e *Engine) orderedStages() []types.StageConfig {
	out := make([]types.StageConfig, 0, len(types.StageOrder))
	for _, n := range types.StageOrder {
		for _, sc := range e.Stages {
			if sc.Name == n {
				out = append(out, sc)
				break
			}
		}
	}
	return out
}
