// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/internal/logging"
	"github.com/pdiddy/content-engine/pkg/types"
)

type stubBackend struct {
	name     string
	snippets []types.Snippet
	err      error
	delay    time.Duration
	calls    atomic.Int32
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Search(ctx context.Context, _ string, _ int) ([]types.Snippet, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.snippets, s.err
}

func fixedNow(t *testing.T, year int) {
	t.Helper()
	old := now
	now = func() time.Time { return time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = old })
}

func TestAcademicSearchMergesAndFilters(t *testing.T) {
	fixedNow(t, 2025)

	scholar := &stubBackend{name: "google_scholar", snippets: []types.Snippet{
		{Title: "Vector Databases: A Survey", Year: 2024, Citations: 10, Source: "google_scholar"},
		{Title: "Old Indexing Paper", Year: 2015, Source: "google_scholar"},
		{Title: "Undated Preprint", Source: "google_scholar"},
	}}
	semantic := &stubBackend{name: "semantic_scholar", delay: 10 * time.Millisecond, snippets: []types.Snippet{
		{Title: "vector databases - a survey!", Authors: "A. Author", Year: 2024, Citations: 42, Source: "semantic_scholar"},
		{Title: "HNSW in Practice", Year: 2023, Source: "semantic_scholar"},
	}}

	a := &AcademicSearch{Backends: []AcademicBackend{scholar, semantic}, YearsBack: 3}
	got, err := a.Search(context.Background(), "vector databases", 3)
	require.NoError(t, err)

	var titles []string
	for _, s := range got {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"Vector Databases: A Survey", "Undated Preprint", "HNSW in Practice"}, titles)

	merged := got[0]
	assert.Equal(t, 42, merged.Citations)
	assert.Equal(t, "A. Author", merged.Authors)
	assert.Equal(t, "google_scholar,semantic_scholar", merged.Source)
}

func TestAcademicSearchLimit(t *testing.T) {
	fixedNow(t, 2025)
	var many []types.Snippet
	for i := 0; i < 10; i++ {
		many = append(many, types.Snippet{Title: fmt.Sprintf("Paper %d", i), Year: 2025, Source: "x"})
	}
	a := &AcademicSearch{Backends: []AcademicBackend{&stubBackend{name: "x", snippets: many}}, MaxResults: 4}
	got, err := a.Search(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestAcademicSearchPartialFailure(t *testing.T) {
	fixedNow(t, 2025)
	ok := &stubBackend{name: "ok", snippets: []types.Snippet{{Title: "Found", Year: 2025, Source: "ok"}}}
	bad := &stubBackend{name: "bad", err: errors.New("HTTP 503")}

	a := &AcademicSearch{Backends: []AcademicBackend{bad, ok}}
	got, err := a.Search(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.EqualValues(t, 1, bad.calls.Load())
}

func TestAcademicSearchAllBackendsFail(t *testing.T) {
	a := &AcademicSearch{Backends: []AcademicBackend{
		&stubBackend{name: "one", err: errors.New("down")},
		&stubBackend{name: "two", err: errors.New("also down")},
	}}
	_, err := a.Search(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one: down")
	assert.Contains(t, err.Error(), "two: also down")

	_, err = (&AcademicSearch{}).Search(context.Background(), "q", 3)
	assert.Error(t, err)
}

func TestAcademicSearchInvokeOutput(t *testing.T) {
	fixedNow(t, 2025)
	a := &AcademicSearch{Backends: []AcademicBackend{&stubBackend{name: "google_scholar"}}}

	out, err := a.Invoke(context.Background(), `{"query":"quantum widgets","years_back":2}`)
	require.NoError(t, err)
	assert.Equal(t, `No recent academic results found for "quantum widgets" from the last 2 years.`, out)

	a.Backends = []AcademicBackend{&stubBackend{name: "google_scholar", snippets: []types.Snippet{
		{Title: "Widget Theory", Year: 2024, Citations: 3, Text: "abstract", Source: "google_scholar"},
	}}}
	out, err = a.Invoke(context.Background(), `{"query":"quantum widgets"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "**Widget Theory**")
	assert.Contains(t, out, "Citations: 3")

	_, err = a.Invoke(context.Background(), `{}`)
	assert.Error(t, err)
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Attention Is All You Need", "attention is all you need"},
		{"  Attention:   is ALL you need! ", "attention is all you need"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := normalizeTitle(tt.in); got != tt.want {
			t.Errorf("normalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- Serper Scholar backend ---

func serperServer(t *testing.T, wantPath, body string, captured *serperRequest) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		if got := r.Header.Get("X-API-KEY"); got != "serp-key" {
			t.Errorf("X-API-KEY = %q", got)
		}
		if captured != nil {
			if err := decodeJSON(r, captured); err != nil {
				t.Errorf("decoding request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testSerper(ts *httptest.Server, key string) *SerperClient {
	hc := httputil.New("serper", types.HTTPConfig{Timeout: 5 * time.Second}, logging.Discard()).WithHTTPClient(ts.Client())
	return &SerperClient{BaseURL: ts.URL, APIKey: key, HTTP: hc}
}

func TestScholarBackendParsesResults(t *testing.T) {
	var req serperRequest
	ts := serperServer(t, "/scholar", `{"organic":[
		{"title":"Vector Search at Scale","link":"https://example.org/a","snippet":"J Doe - VLDB, 2023 - vldb.org","publicationInfo":{"summary":"J Doe - VLDB, 2023","authors":[{"name":"J Doe"},{"name":"R Roe"}]},"citedBy":{"total":17}},
		{"title":"Undated","snippet":"no year here","publicationInfo":{"authors":"K Koe"}},
		{"title":"Explicit Year","year":"2022","snippet":"text 2019"}
	]}`, &req)

	got, err := (&ScholarBackend{Serper: testSerper(ts, "serp-key")}).Search(context.Background(), "vector search", 6)
	require.NoError(t, err)

	assert.Equal(t, serperRequest{Q: "vector search", Num: 6, HL: "en"}, req)
	require.Len(t, got, 3)
	assert.Equal(t, types.Snippet{
		Title:     "Vector Search at Scale",
		Link:      "https://example.org/a",
		Text:      "J Doe - VLDB, 2023 - vldb.org",
		Authors:   "J Doe, R Roe",
		Year:      2023,
		Citations: 17,
		Source:    "google_scholar",
	}, got[0])
	assert.Equal(t, 0, got[1].Year)
	assert.Equal(t, "K Koe", got[1].Authors)
	assert.Equal(t, 2022, got[2].Year)
}

func TestScholarBackendErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "invalid key")
	}))
	defer ts.Close()

	_, err := (&ScholarBackend{Serper: testSerper(ts, "serp-key")}).Search(context.Background(), "q", 6)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")

	_, err = (&ScholarBackend{Serper: testSerper(ts, "")}).Search(context.Background(), "q", 6)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Serper API key")
}

func TestYearFromText(t *testing.T) {
	assert.Equal(t, 2023, yearFromText("A Author - Journal, 2023 - site"))
	assert.Equal(t, 0, yearFromText("published 1999"))
	assert.Equal(t, 0, yearFromText(""))
	assert.Equal(t, 2021, yearFromText("2021 and 2024"))
}

// --- Semantic Scholar backend ---

func TestSemanticScholarBackend(t *testing.T) {
	var query, apiKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		apiKey = r.Header.Get("x-api-key")
		fmt.Fprintf(w, `{"total":1,"data":[{"paperId":"p1","title":"Learned Indexes","abstract":%q,"year":2024,"url":"https://s2/p1","citationCount":9,"authors":[{"name":"A"},{"name":"B"}]}]}`,
			strings.Repeat("x", maxAbstract+50))
	}))
	defer ts.Close()

	hc := httputil.New("s2", types.HTTPConfig{}, logging.Discard()).WithHTTPClient(ts.Client())
	b := &SemanticScholarBackend{BaseURL: ts.URL, APIKey: "s2-key", HTTP: hc}
	got, err := b.Search(context.Background(), "learned indexes", 5)
	require.NoError(t, err)

	assert.Contains(t, query, "limit=5")
	assert.Contains(t, query, "query=learned+indexes")
	assert.Equal(t, "s2-key", apiKey)
	require.Len(t, got, 1)
	assert.Equal(t, "A, B", got[0].Authors)
	assert.Equal(t, 9, got[0].Citations)
	assert.Equal(t, "https://s2/p1", got[0].Link)
	assert.True(t, strings.HasSuffix(got[0].Text, "..."))
	assert.Len(t, []rune(got[0].Text), maxAbstract+3)
}

func TestSemanticScholarBackendHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	hc := httputil.New("s2", types.HTTPConfig{}, logging.Discard()).WithHTTPClient(ts.Client())
	_, err := (&SemanticScholarBackend{BaseURL: ts.URL, HTTP: hc}).Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 429")
}
