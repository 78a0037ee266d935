// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pdiddy/content-engine/internal/logging"
	"github.com/pdiddy/content-engine/pkg/types"
)

// now is the clock used for the publication-year filter. Tests replace it.
var now = time.Now

const (
	defaultMaxResults = 6
	defaultYearsBack  = 3
)

// AcademicBackend searches one scholarly index.
type AcademicBackend interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]types.Snippet, error)
}

// AcademicSearch queries every backend concurrently, merges results that
// share a normalized title, and drops papers older than YearsBack. Papers
// without a known year are kept.
type AcademicSearch struct {
	Backends   []AcademicBackend
	MaxResults int
	YearsBack  int
}

func (a *AcademicSearch) Name() string { return AcademicSearchName }

func (a *AcademicSearch) Description() string {
	return "Search Google Scholar and other academic indexes for recent papers and research publications. Returns titles, authors, year, citation counts and abstracts."
}

func (a *AcademicSearch) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"Search query for academic papers"},"years_back":{"type":"integer","description":"Number of years back to search (default 3)"}},"required":["query"]}`)
}

// Invoke runs the search. It fails only when every backend fails.
func (a *AcademicSearch) Invoke(ctx context.Context, args string) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}
	yearsBack := a.YearsBack
	if yearsBack <= 0 {
		yearsBack = defaultYearsBack
	}
	yearsBack = intArg(args, "years_back", yearsBack)

	snippets, err := a.Search(ctx, query, yearsBack)
	if err != nil {
		return "", err
	}
	if len(snippets) == 0 {
		return fmt.Sprintf("No recent academic results found for %q from the last %d years.", query, yearsBack), nil
	}
	return types.FormatSnippets("Academic", query, snippets), nil
}

// Search fans the query out to all backends and returns the merged,
// filtered snippets.
func (a *AcademicSearch) Search(ctx context.Context, query string, yearsBack int) ([]types.Snippet, error) {
	if len(a.Backends) == 0 {
		return nil, errors.New("no academic search backends configured")
	}
	limit := a.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}
	logger := logging.FromContext(ctx)

	type backendResult struct {
		snippets []types.Snippet
		err      error
		name     string
	}

	ch := make(chan backendResult, len(a.Backends))
	var wg sync.WaitGroup
	for _, b := range a.Backends {
		wg.Add(1)
		go func(b AcademicBackend) {
			defer wg.Done()
			s, err := b.Search(ctx, query, limit)
			ch <- backendResult{snippets: s, err: err, name: b.Name()}
		}(b)
	}
	go func() {
		wg.Wait()
		close(ch)
	}()

	// Collect per backend so the merge order follows the Backends slice
	// rather than completion order.
	byName := make(map[string][]types.Snippet)
	var errs []error
	for br := range ch {
		if br.err != nil {
			logger.WarnContext(ctx, "academic backend failed",
				slog.String("backend", br.name),
				slog.Any("error", br.err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", br.name, br.err))
			continue
		}
		byName[br.name] = br.snippets
	}
	if len(errs) == len(a.Backends) {
		return nil, errors.Join(errs...)
	}

	var all []types.Snippet
	for _, b := range a.Backends {
		all = append(all, byName[b.Name()]...)
	}

	minYear := now().Year() - yearsBack
	var kept []types.Snippet
	for _, s := range deduplicate(all) {
		if s.Year == 0 || s.Year >= minYear {
			kept = append(kept, s)
		}
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept, nil
}

// deduplicate merges snippets that share a normalized title.
func deduplicate(snippets []types.Snippet) []types.Snippet {
	seen := make(map[string]int)
	var out []types.Snippet
	for _, s := range snippets {
		key := normalizeTitle(s.Title)
		if key != "" {
			if idx, ok := seen[key]; ok {
				mergeInto(&out[idx], s)
				continue
			}
			seen[key] = len(out)
		}
		out = append(out, s)
	}
	return out
}

// mergeInto fills empty fields of dst from src and keeps the higher
// citation count.
func mergeInto(dst *types.Snippet, src types.Snippet) {
	if dst.Link == "" {
		dst.Link = src.Link
	}
	if dst.Authors == "" {
		dst.Authors = src.Authors
	}
	if dst.Text == "" {
		dst.Text = src.Text
	}
	if dst.Year == 0 {
		dst.Year = src.Year
	}
	if src.Citations > dst.Citations {
		dst.Citations = src.Citations
	}
	if !strings.Contains(dst.Source, src.Source) {
		dst.Source = dst.Source + "," + src.Source
	}
}

// normalizeTitle returns a lowercased, punctuation-stripped title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
