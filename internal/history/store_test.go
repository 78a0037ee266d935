// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/content-engine/pkg/types"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ledger", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func stageResult(stage types.StageName, output string) types.StageResult {
	return types.StageResult{
		Stage:       stage,
		Output:      output,
		Model:       "test-model",
		GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Usage:       types.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		Duration:    1500 * time.Millisecond,
		ToolCalls:   2,
	}
}

func TestStartFinishGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 9, 59, 0, 0, time.UTC)

	id, err := store.Start(ctx, "Vector databases", started)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Equal(t, "Vector databases", run.Topic)
	assert.True(t, run.StartedAt.Equal(started))
	assert.True(t, run.FinishedAt.IsZero())

	// Recorded out of order; Get returns pipeline order.
	require.NoError(t, store.RecordStage(ctx, id, stageResult(types.StageSocial, "posts")))
	require.NoError(t, store.RecordStage(ctx, id, stageResult(types.StageResearch, "findings")))
	require.NoError(t, store.RecordStage(ctx, id, stageResult(types.StageWriting, "blog ü")))
	require.NoError(t, store.Finish(ctx, id, "out/Vector_databases_20260301_095900", "out/Vector_databases_20260301_095900.zip"))

	run, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.False(t, run.FinishedAt.IsZero())
	assert.Equal(t, "out/Vector_databases_20260301_095900", run.OutputDir)
	assert.Equal(t, "out/Vector_databases_20260301_095900.zip", run.Archive)
	require.Len(t, run.Stages, 3)
	assert.Equal(t, types.StageResearch, run.Stages[0].Stage)
	assert.Equal(t, types.StageWriting, run.Stages[1].Stage)
	assert.Equal(t, types.StageSocial, run.Stages[2].Stage)

	w := run.Stages[1]
	assert.Equal(t, 6, w.Chars, "chars counts runes")
	assert.Equal(t, "test-model", w.Model)
	assert.Equal(t, 30, w.Usage.TotalTokens)
	assert.Equal(t, 2, w.ToolCalls)
	assert.Equal(t, 1500*time.Millisecond, w.Duration)
	assert.True(t, w.GeneratedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestFail(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id, err := store.Start(ctx, "Edge computing", time.Time{})
	require.NoError(t, err)
	require.NoError(t, store.RecordStage(ctx, id, stageResult(types.StageResearch, "ok")))

	cause := &types.ProviderError{Kind: types.ProviderRateLimit, Stage: types.StageWriting, Err: errors.New("slow down")}
	require.NoError(t, store.Fail(ctx, id, types.StageWriting, cause))

	run, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, types.StageWriting, run.FailedStage)
	assert.Equal(t, cause.Error(), run.Error)
	assert.Len(t, run.Stages, 1)
}

func TestUnknownRun(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Finish(ctx, "missing", "dir", ""), ErrNotFound)
	assert.ErrorIs(t, store.Fail(ctx, "missing", "", errors.New("x")), ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i, topic := range []string{"first topic", "second topic", "third topic"} {
		id, err := store.Start(ctx, topic, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)

	runs, err = store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "third topic", runs[0].Topic)
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	id, err := store.Start(ctx, "Persistent topic", time.Time{})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	run, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Persistent topic", run.Topic)
}

func TestExport(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id, err := store.Start(ctx, "Exported topic", time.Time{})
	require.NoError(t, err)
	require.NoError(t, store.RecordStage(ctx, id, stageResult(types.StageResearch, "r")))

	var yb bytes.Buffer
	require.NoError(t, store.ExportYAML(ctx, &yb, 10))
	var fromYAML []map[string]any
	require.NoError(t, yaml.Unmarshal(yb.Bytes(), &fromYAML))
	require.Len(t, fromYAML, 1)
	assert.Equal(t, "Exported topic", fromYAML[0]["topic"])
	assert.Equal(t, "running", fromYAML[0]["status"])

	var jb bytes.Buffer
	require.NoError(t, store.ExportJSON(ctx, &jb, 10))
	var fromJSON []Run
	require.NoError(t, json.Unmarshal(jb.Bytes(), &fromJSON))
	require.Len(t, fromJSON, 1)
	assert.Equal(t, id, fromJSON[0].ID)
	require.Len(t, fromJSON[0].Stages, 1)
}

func TestExportEmpty(t *testing.T) {
	store := setupStore(t)
	var jb bytes.Buffer
	require.NoError(t, store.ExportJSON(context.Background(), &jb, 0))
	assert.JSONEq(t, "[]", jb.String())
}

func TestRecorder(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id, err := store.Start(ctx, "Recorded topic", time.Time{})
	require.NoError(t, err)

	rec := store.Recorder(ctx, id)
	rec.StageStarted(types.StageResearch, 0, 3)
	rec.StageFinished(stageResult(types.StageResearch, "r"), 0, 3)
	assert.False(t, rec.Failed())
	rec.StageFailed(types.StageWriting, errors.New("boom"))

	assert.True(t, rec.Failed())

	run, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, types.StageWriting, run.FailedStage)
	assert.Equal(t, "boom", run.Error)
	require.Len(t, run.Stages, 1)
}
