// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"fmt"
	"time"

	"github.com/pdiddy/content-engine/internal/app"
	"github.com/pdiddy/content-engine/internal/progress"
	"github.com/pdiddy/content-engine/pkg/types"
)

type jobStatus string

const (
	jobRunning   jobStatus = "running"
	jobSucceeded jobStatus = "succeeded"
	jobFailed    jobStatus = "failed"
)

// job is one submitted run. Fields are guarded by Server.mu.
type job struct {
	id         string
	topic      string
	status     jobStatus
	stage      types.StageName
	completed  []types.StageName
	progress   []string
	startedAt  time.Time
	finishedAt time.Time
	err        string
	result     *app.Result
}

// section is one tab on the run page.
type section struct {
	Key   string
	Title string
	Body  string
}

// jobView is a copy of a job safe to use outside the lock.
type jobView struct {
	ID         string            `json:"id"`
	Topic      string            `json:"topic"`
	Status     jobStatus         `json:"status"`
	Stage      types.StageName   `json:"stage,omitempty"`
	Completed  []types.StageName `json:"completed"`
	Progress   []string          `json:"progress"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Error      string            `json:"error,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
	Files      []string          `json:"files,omitempty"`
	OutputDir  string            `json:"output_dir,omitempty"`
	Sections   []section         `json:"-"`
}

func (j *job) view() jobView {
	v := jobView{
		ID:        j.id,
		Topic:     j.topic,
		Status:    j.status,
		Stage:     j.stage,
		Completed: append([]types.StageName{}, j.completed...),
		Progress:  append([]string{}, j.progress...),
		StartedAt: j.startedAt,
		Error:     j.err,
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		v.FinishedAt = &t
	}
	if j.result != nil {
		v.Warnings = j.result.Warnings
		v.OutputDir = j.result.Output.Dir
		for _, f := range j.result.Files {
			v.Files = append(v.Files, f.Name)
		}
		v.Sections = sections(j.result)
	}
	return v
}

var sectionTitles = map[types.StageName]string{
	types.StageResearch: "Research",
	types.StageWriting:  "Blog Post",
	types.StageSocial:   "Social Media",
}

func sections(res *app.Result) []section {
	var out []section
	for _, n := range types.StageOrder {
		if r, ok := res.Package.Result(n); ok {
			out = append(out, section{Key: string(n), Title: sectionTitles[n], Body: r.Output})
		}
	}
	if res.Package.Summary != "" {
		out = append(out, section{Key: "complete", Title: "Complete Package", Body: res.Package.Summary})
	}
	return out
}

// jobObserver feeds pipeline progress into a job.
type jobObserver struct {
	s  *Server
	id string
}

func (o *jobObserver) StageStarted(stage types.StageName, index, total int) {
	o.s.update(o.id, func(j *job) {
		j.stage = stage
		j.progress = append(j.progress, fmt.Sprintf("[%d/%d] %s...", index+1, total, progress.StartMessage(stage)))
	})
}

func (o *jobObserver) StageFinished(r types.StageResult, index, total int) {
	o.s.update(o.id, func(j *job) {
		j.completed = append(j.completed, r.Stage)
		j.progress = append(j.progress, fmt.Sprintf("[%d/%d] %s stage complete", index+1, total, r.Stage))
	})
}

func (o *jobObserver) StageFailed(stage types.StageName, err error) {
	o.s.update(o.id, func(j *job) {
		j.progress = append(j.progress, fmt.Sprintf("%s stage failed", stage))
	})
}
