// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// Snippet is one search or scrape hit returned by a tool adapter, with
// enough attribution for the model to cite it.
type Snippet struct {
	// Title is the page or paper title.
	Title string `json:"title" yaml:"title"`

	// Link is the source URL.
	Link string `json:"link,omitempty" yaml:"link,omitempty"`

	// Text is the snippet, abstract, or extracted page text.
	Text string `json:"text" yaml:"text"`

	// Authors lists authors for academic results.
	Authors string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Year is the publication year, 0 when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Citations is the citation count for academic results.
	Citations int `json:"citations,omitempty" yaml:"citations,omitempty"`

	// Source identifies which backend produced the snippet (e.g. "google_scholar").
	Source string `json:"source" yaml:"source"`
}

// FormatSnippets renders snippets as a markdown list the model can read.
// An empty list yields a "no results" line mentioning the query.
func FormatSnippets(heading, query string, snippets []Snippet) string {
	if len(snippets) == 0 {
		return fmt.Sprintf("No %s results found for %q.", heading, query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s results for %q:\n\n", heading, query)
	for i, s := range snippets {
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, s.Title)
		if s.Link != "" {
			fmt.Fprintf(&b, "   Link: %s\n", s.Link)
		}
		if s.Authors != "" {
			fmt.Fprintf(&b, "   Authors: %s\n", s.Authors)
		}
		if s.Year > 0 {
			fmt.Fprintf(&b, "   Year: %d\n", s.Year)
		}
		if s.Citations > 0 {
			fmt.Fprintf(&b, "   Citations: %d\n", s.Citations)
		}
		if s.Text != "" {
			fmt.Fprintf(&b, "   %s\n", s.Text)
		}
		fmt.Fprintf(&b, "   Source: %s\n\n", s.Source)
	}
	return strings.TrimRight(b.String(), "\n")
}
