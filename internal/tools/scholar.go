// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/content-engine/pkg/types"
)

// snippetYear finds a publication year in Scholar snippets such as
// "A Author - Journal, 2023 - publisher".
var snippetYear = regexp.MustCompile(`\b(20\d{2})\b`)

// ScholarBackend searches Google Scholar through Serper.dev.
type ScholarBackend struct {
	Serper *SerperClient
}

func (b *ScholarBackend) Name() string { return "google_scholar" }

// Search posts the query to the Serper /scholar endpoint.
func (b *ScholarBackend) Search(ctx context.Context, query string, limit int) ([]types.Snippet, error) {
	var sr scholarResponse
	if err := b.Serper.post(ctx, "/scholar", serperRequest{Q: query, Num: limit, HL: "en"}, &sr); err != nil {
		return nil, err
	}

	var out []types.Snippet
	for _, r := range sr.Organic {
		if len(out) >= limit {
			break
		}
		s := types.Snippet{
			Title:     r.Title,
			Link:      r.Link,
			Text:      r.Snippet,
			Authors:   string(r.PublicationInfo.Authors),
			Year:      int(r.Year),
			Citations: r.CitedBy.Total,
			Source:    b.Name(),
		}
		if s.Year == 0 {
			s.Year = int(r.PublicationInfo.Year)
		}
		if s.Year == 0 {
			s.Year = yearFromText(r.Snippet)
		}
		if s.Year == 0 {
			s.Year = yearFromText(r.PublicationInfo.Summary)
		}
		out = append(out, s)
	}
	return out, nil
}

func yearFromText(s string) int {
	m := snippetYear.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	y, _ := strconv.Atoi(m[1])
	return y
}

// Serper Scholar JSON structures. Field shapes vary between responses, so
// authors and years decode leniently.
type scholarResponse struct {
	Organic []scholarResult `json:"organic"`
}

type scholarResult struct {
	Title           string          `json:"title"`
	Link            string          `json:"link"`
	Snippet         string          `json:"snippet"`
	Year            looseInt        `json:"year"`
	PublicationInfo publicationInfo `json:"publicationInfo"`
	CitedBy         struct {
		Total int `json:"total"`
	} `json:"citedBy"`
}

type publicationInfo struct {
	Summary string      `json:"summary"`
	Authors looseString `json:"authors"`
	Year    looseInt    `json:"year"`
}

// looseString accepts a JSON string, a list of strings, or a list of
// objects with a name field.
type looseString string

func (l *looseString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = looseString(s)
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*l = ""
		return nil
	}
	var names []string
	for _, r := range raw {
		var n string
		if json.Unmarshal(r, &n) == nil {
			names = append(names, n)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(r, &obj) == nil && obj.Name != "" {
			names = append(names, obj.Name)
		}
	}
	*l = looseString(strings.Join(names, ", "))
	return nil
}

// looseInt accepts a JSON number or a numeric string.
type looseInt int

func (l *looseInt) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*l = looseInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n, _ = strconv.Atoi(strings.TrimSpace(s))
	}
	*l = looseInt(n)
	return nil
}
