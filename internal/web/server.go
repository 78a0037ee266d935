// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package web serves the browser form: a topic and key form, a status page
// per run with tabbed results, and downloads of the generated files.
//
// Keys entered in the form apply to that run only. They are copied into
// the run's configuration and are never stored on the job, rendered back
// into a page, or logged.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/pdiddy/content-engine/internal/app"
	"github.com/pdiddy/content-engine/internal/config"
	"github.com/pdiddy/content-engine/internal/logging"
	"github.com/pdiddy/content-engine/internal/packager"
	"github.com/pdiddy/content-engine/internal/pipeline"
	"github.com/pdiddy/content-engine/pkg/types"
)

// Form field names.
const (
	fieldTopic     = "topic"
	fieldGroqKey   = "groq_api_key"
	fieldSerperKey = "serper_api_key"
)

// recentRuns bounds the list on the form page.
const recentRuns = 10

const defaultShutdownTimeout = 10 * time.Second

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"fmtTime": func(t time.Time) string { return t.Format(packager.DisplayTimeLayout) },
	"tabKeys": func() []string { return []string{"research", "writing", "social", "complete"} },
}).ParseFS(templateFS, "templates/*.html"))

// Engine runs one pipeline. *app.Engine implements it.
type Engine interface {
	Run(ctx context.Context, topic string, obs pipeline.Observer) (*app.Result, error)
}

// EngineFactory builds an Engine for one run's configuration.
type EngineFactory func(cfg types.PipelineConfig) Engine

// Server holds the job registry and the router.
type Server struct {
	cfg       types.PipelineConfig
	newEngine EngineFactory
	logger    *slog.Logger
	router    chi.Router

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	jobs  map[string]*job
	order []string
	now   func() time.Time
}

// NewServer returns a Server that starts runs with cfg, overriding the
// provider keys with any entered in the form.
func NewServer(cfg types.PipelineConfig, factory EngineFactory, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		newEngine: factory,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]*job),
		now:       time.Now,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/runs", s.handleStart)
	r.Get("/runs/{id}", s.handleRun)
	r.Get("/runs/{id}/files/*", s.handleFile)
	r.Get("/runs/{id}/archive", s.handleArchive)
	r.Get("/api/runs/{id}", s.handleAPIRun)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and cancels runs still in progress.
func (s *Server) ListenAndServe(ctx context.Context, sc types.ServerConfig) error {
	srv := &http.Server{
		Addr:         sc.Addr,
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", slog.String("addr", sc.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close cancels running jobs and waits for them to stop.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every started job has finished.
func (s *Server) Wait() { s.wg.Wait() }

type indexData struct {
	Topic     string
	Error     string
	HasGroq   bool
	HasSerper bool
	Runs      []jobView
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, r, http.StatusOK, "", "")
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, topic, msg string) {
	data := indexData{
		Topic:     topic,
		Error:     msg,
		HasGroq:   s.cfg.Provider.APIKey != "",
		HasSerper: s.cfg.Tools.SerperAPIKey != "",
		Runs:      s.recent(recentRuns),
	}
	s.render(w, r, status, "index.html", data)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderIndex(w, r, http.StatusBadRequest, "", "could not read the form")
		return
	}
	rawTopic := r.PostFormValue(fieldTopic)
	topic, err := types.ValidateTopic(rawTopic)
	if err != nil {
		s.renderIndex(w, r, http.StatusBadRequest, rawTopic, err.Error())
		return
	}

	cfg := s.runConfig(r.PostFormValue(fieldGroqKey), r.PostFormValue(fieldSerperKey))
	if err := config.Validate(cfg); err != nil {
		s.renderIndex(w, r, http.StatusBadRequest, topic, err.Error())
		return
	}

	id := s.start(cfg, topic)
	http.Redirect(w, r, "/runs/"+id, http.StatusSeeOther)
}

// runConfig copies the server configuration and applies form keys.
func (s *Server) runConfig(groqKey, serperKey string) types.PipelineConfig {
	cfg := s.cfg
	cfg.Stages = slices.Clone(s.cfg.Stages)
	if k := strings.TrimSpace(groqKey); k != "" {
		cfg.Provider.APIKey = k
	}
	if k := strings.TrimSpace(serperKey); k != "" {
		cfg.Tools.SerperAPIKey = k
	}
	return cfg
}

func (s *Server) start(cfg types.PipelineConfig, topic string) string {
	j := &job{
		id:        uuid.NewString(),
		topic:     topic,
		status:    jobRunning,
		startedAt: s.now(),
	}
	s.mu.Lock()
	s.jobs[j.id] = j
	s.order = append(s.order, j.id)
	s.mu.Unlock()

	logger := s.logger.With(slog.String("job_id", j.id))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if v := recover(); v != nil {
				logger.Error("run panicked", slog.String("panic", fmt.Sprint(v)))
				s.finish(j.id, nil, fmt.Errorf("internal error"))
			}
		}()

		ctx := s.ctx
		if s.cfg.Server.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.Server.RunTimeout)
			defer cancel()
		}
		ctx = logging.WithLogger(ctx, logger)

		res, err := s.newEngine(cfg).Run(ctx, topic, &jobObserver{s: s, id: j.id})
		if err != nil {
			logger.Warn("run failed", slog.Any("error", err))
		}
		s.finish(j.id, res, err)
	}()
	return j.id
}

func (s *Server) finish(id string, res *app.Result, err error) {
	s.update(id, func(j *job) {
		j.finishedAt = s.now()
		j.stage = ""
		if err != nil {
			j.status = jobFailed
			j.err = err.Error()
			return
		}
		j.status = jobSucceeded
		j.result = res
	})
}

func (s *Server) update(id string, fn func(*job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
	}
}

func (s *Server) lookup(id string) (jobView, *app.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return jobView{}, nil, false
	}
	return j.view(), j.result, true
}

func (s *Server) recent(n int) []jobView {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []jobView
	for i := len(s.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.jobs[s.order[i]].view())
	}
	return out
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	v, _, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.render(w, r, http.StatusOK, "run.html", v)
}

func (s *Server) handleAPIRun(w http.ResponseWriter, r *http.Request) {
	v, _, ok := s.lookup(chi.URLParam(r, "id"))
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "run not found"})
		return
	}
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	_, res, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok || res == nil {
		http.NotFound(w, r)
		return
	}
	name := chi.URLParam(r, "*")
	idx := slices.IndexFunc(res.Files, func(f packager.File) bool { return f.Name == name })
	if idx < 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(name)))
	w.Write(res.Files[idx].Data)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	v, res, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if res == nil {
		http.Error(w, "run has no output yet", http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q",
		packager.ArchiveName(v.Topic, res.Package.StartedAt)))
	if err := packager.WriteArchive(w, res.Files); err != nil {
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "writing archive", slog.Any("error", err))
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "rendering template",
			slog.String("template", name), slog.Any("error", err))
	}
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
