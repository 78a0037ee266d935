// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tools implements the external lookups a stage may call while it
// works: academic search, web search, and page scrape. Each tool takes a
// query string (or URL) and returns bounded text with source attribution.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/internal/llm"
	"github.com/pdiddy/content-engine/pkg/types"
)

// Tool names exposed to the model.
const (
	AcademicSearchName = "academic_search"
	WebSearchName      = "web_search"
	ScrapeName         = "scrape_website"
)

// Tool is one callable capability offered to the model. Implementations
// follow the Strategy pattern so tests can substitute fakes.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the tool arguments.
	Parameters() json.RawMessage
	// Invoke runs the tool with the raw JSON arguments chosen by the model.
	Invoke(ctx context.Context, args string) (string, error)
}

// Registry holds the tools available to a process.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry returns a Registry holding the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds t, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns the tool called name.
func (r *Registry) Get(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the model-facing declarations for the named tools.
// An unregistered name is a ToolError.
func (r *Registry) Definitions(names []string) ([]llm.Tool, error) {
	defs := make([]llm.Tool, 0, len(names))
	for _, n := range names {
		t, ok := r.Get(n)
		if !ok {
			return nil, &types.ToolError{Tool: n, Err: errors.New("tool is not registered")}
		}
		defs = append(defs, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs, nil
}

// Invoke runs the named tool. Every failure is returned as a
// *types.ToolError.
func (r *Registry) Invoke(ctx context.Context, name, args string) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", &types.ToolError{Tool: name, Err: errors.New("tool is not registered")}
	}
	out, err := t.Invoke(ctx, args)
	if err != nil {
		var te *types.ToolError
		if errors.As(err, &te) {
			return "", err
		}
		return "", &types.ToolError{Tool: name, Err: err}
	}
	return out, nil
}

// New builds the default registry from configuration: academic search
// (Google Scholar, plus Semantic Scholar when enabled), web search and
// page scrape. All tools share hc.
func New(cfg types.ToolsConfig, hc *httputil.Client) *Registry {
	serper := &SerperClient{BaseURL: cfg.SerperBaseURL, APIKey: cfg.SerperAPIKey, HTTP: hc}

	backends := []AcademicBackend{&ScholarBackend{Serper: serper}}
	if cfg.EnableSemanticScholar {
		backends = append(backends, &SemanticScholarBackend{
			BaseURL: cfg.SemanticScholarBaseURL,
			APIKey:  cfg.SemanticScholarAPIKey,
			HTTP:    hc,
		})
	}

	return NewRegistry(
		&AcademicSearch{
			Backends:   backends,
			MaxResults: cfg.MaxResults,
			YearsBack:  cfg.YearsBack,
		},
		&WebSearch{Serper: serper, MaxResults: cfg.MaxResults},
		&Scrape{HTTP: hc, MaxChars: cfg.ScrapeMaxChars},
	)
}

// queryParameters is the schema shared by the search tools.
var queryParameters = json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"Search query"}},"required":["query"]}`)

// stringArg extracts key from the model's JSON arguments. Models sometimes
// send a bare string instead of an object; that string is used as is.
func stringArg(args, key string) (string, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return "", fmt.Errorf("missing %q argument", key)
	}
	if !strings.HasPrefix(args, "{") {
		return strings.Trim(args, `"`), nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(args), &m); err != nil {
		return "", fmt.Errorf("parsing arguments: %w", err)
	}
	v, ok := m[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("missing %q argument", key)
	}
	return strings.TrimSpace(v), nil
}

// intArg extracts an optional integer argument, returning def when absent.
func intArg(args, key string, def int) int {
	var m map[string]any
	if err := json.Unmarshal([]byte(args), &m); err != nil {
		return def
	}
	if f, ok := m[key].(float64); ok && f > 0 {
		return int(f)
	}
	return def
}
