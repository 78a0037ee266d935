// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"log/slog"

	"github.com/pdiddy/content-engine/internal/logging"
	"github.com/pdiddy/content-engine/pkg/types"
)

// Recorder writes pipeline progress for one run into the ledger. It
// satisfies pipeline.Observer. Ledger failures are logged and never abort
// the run.
type Recorder struct {
	ctx    context.Context
	store  *Store
	runID  string
	failed bool
}

// Recorder returns an observer that records stage events for runID.
func (s *Store) Recorder(ctx context.Context, runID string) *Recorder {
	return &Recorder{ctx: context.WithoutCancel(ctx), store: s, runID: runID}
}

func (r *Recorder) StageStarted(types.StageName, int, int) {}

func (r *Recorder) StageFinished(res types.StageResult, _, _ int) {
	if err := r.store.RecordStage(r.ctx, r.runID, res); err != nil {
		r.warn("recording stage result", err)
	}
}

func (r *Recorder) StageFailed(stage types.StageName, err error) {
	r.failed = true
	if ferr := r.store.Fail(r.ctx, r.runID, stage, err); ferr != nil {
		r.warn("recording stage failure", ferr)
	}
}

// Failed reports whether a stage failure has been recorded.
func (r *Recorder) Failed() bool { return r.failed }

func (r *Recorder) warn(msg string, err error) {
	logging.FromContext(r.ctx).Warn(msg,
		slog.String("run_id", r.runID),
		slog.Any("error", err),
	)
}
