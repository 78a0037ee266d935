// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a SQLite ledger of pipeline runs: one row per run
// with its outcome and package location, and one row per completed stage
// with model, token usage and timing.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/content-engine/pkg/types"
)

// DefaultPath is the ledger location when none is configured.
const DefaultPath = "multi_agent_content/history.db"

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one ledger entry.
type Run struct {
	ID          string          `json:"id" yaml:"id"`
	Topic       string          `json:"topic" yaml:"topic"`
	Status      Status          `json:"status" yaml:"status"`
	StartedAt   time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time       `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	OutputDir   string          `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	Archive     string          `json:"archive,omitempty" yaml:"archive,omitempty"`
	FailedStage types.StageName `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
	Stages      []StageRecord   `json:"stages,omitempty" yaml:"stages,omitempty"`
}

// StageRecord summarizes one completed stage.
type StageRecord struct {
	Stage       types.StageName `json:"stage" yaml:"stage"`
	Model       string          `json:"model" yaml:"model"`
	Chars       int             `json:"chars" yaml:"chars"`
	Usage       types.Usage     `json:"usage" yaml:"usage"`
	ToolCalls   int             `json:"tool_calls" yaml:"tool_calls"`
	Duration    time.Duration   `json:"duration" yaml:"duration"`
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at"`
}

// Store manages the ledger database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the ledger at path and creates the schema if it
// does not exist.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			output_dir TEXT,
			archive TEXT,
			failed_stage TEXT,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS stage_results (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			stage TEXT NOT NULL,
			model TEXT,
			chars INTEGER,
			prompt_tokens INTEGER,
			completion_tokens INTEGER,
			total_tokens INTEGER,
			tool_calls INTEGER,
			duration_ms INTEGER,
			generated_at TEXT,
			PRIMARY KEY (run_id, stage)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Start records a new running run and returns its ID.
func (s *Store) Start(ctx context.Context, topic string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	if startedAt.IsZero() {
		startedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, topic, status, started_at) VALUES (?, ?, ?, ?)`,
		id, topic, string(StatusRunning), formatTime(startedAt),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// RecordStage stores the summary of a completed stage.
func (s *Store) RecordStage(ctx context.Context, runID string, r types.StageResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO stage_results
			(run_id, stage, model, chars, prompt_tokens, completion_tokens, total_tokens, tool_calls, duration_ms, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, string(r.Stage), r.Model, len([]rune(r.Output)),
		r.Usage.PromptTokens, r.Usage.CompletionTokens, r.Usage.TotalTokens,
		r.ToolCalls, r.Duration.Milliseconds(), formatTime(r.GeneratedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting stage result %s: %w", r.Stage, err)
	}
	return nil
}

// Finish marks a run succeeded and stores where its package was written.
func (s *Store) Finish(ctx context.Context, runID, outputDir, archive string) error {
	return s.update(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, output_dir = ?, archive = ? WHERE id = ?`,
		string(StatusSucceeded), formatTime(s.now()), outputDir, archive, runID,
	)
}

// Fail marks a run failed. stage is empty when the failure happened
// outside a stage, for example while packaging.
func (s *Store) Fail(ctx context.Context, runID string, stage types.StageName, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.update(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, failed_stage = ?, error = ? WHERE id = ?`,
		string(StatusFailed), formatTime(s.now()), string(stage), msg, runID,
	)
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the most recent runs first, at most limit (all when
// limit <= 0). Stage records are included.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, topic, status, started_at, finished_at, output_dir, archive, failed_stage, error
		FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	for i := range runs {
		stages, err := s.stages(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Stages = stages
	}
	return runs, nil
}

// Get returns one run with its stage records.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic, status, started_at, finished_at, output_dir, archive, failed_stage, error
		FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, err
	}
	r.Stages, err = s.stages(ctx, id)
	return r, err
}

func (s *Store) stages(ctx context.Context, runID string) ([]StageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, model, chars, prompt_tokens, completion_tokens, total_tokens, tool_calls, duration_ms, generated_at
		FROM stage_results WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying stage results: %w", err)
	}
	defer rows.Close()

	byName := make(map[types.StageName]StageRecord)
	for rows.Next() {
		var rec StageRecord
		var stage, generated string
		var model sql.NullString
		var ms int64
		if err := rows.Scan(&stage, &model, &rec.Chars,
			&rec.Usage.PromptTokens, &rec.Usage.CompletionTokens, &rec.Usage.TotalTokens,
			&rec.ToolCalls, &ms, &generated); err != nil {
			return nil, fmt.Errorf("scanning stage result: %w", err)
		}
		rec.Stage = types.StageName(stage)
		rec.Model = model.String
		rec.Duration = time.Duration(ms) * time.Millisecond
		rec.GeneratedAt = parseTime(generated)
		byName[rec.Stage] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stage results: %w", err)
	}

	var out []StageRecord
	for _, n := range types.StageOrder {
		if rec, ok := byName[n]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var status, started string
	var finished, outputDir, archive, failedStage, msg sql.NullString
	if err := sc.Scan(&r.ID, &r.Topic, &status, &started, &finished, &outputDir, &archive, &failedStage, &msg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	r.Status = Status(status)
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished.String)
	r.OutputDir = outputDir.String
	r.Archive = archive.String
	r.FailedStage = types.StageName(failedStage.String)
	r.Error = msg.String
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
