// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"encoding/json"

	"github.com/pdiddy/content-engine/pkg/types"
)

// WebSearch runs a Google web search through Serper.dev.
type WebSearch struct {
	Serper     *SerperClient
	MaxResults int
}

func (w *WebSearch) Name() string { return WebSearchName }

func (w *WebSearch) Description() string {
	return "Search the web for current information, documentation, industry news and practical examples."
}

func (w *WebSearch) Parameters() json.RawMessage { return queryParameters }

func (w *WebSearch) Invoke(ctx context.Context, args string) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}
	limit := w.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}

	var sr webResponse
	if err := w.Serper.post(ctx, "/search", serperRequest{Q: query, Num: limit}, &sr); err != nil {
		return "", err
	}

	var snippets []types.Snippet
	if sr.AnswerBox.Answer != "" || sr.AnswerBox.Snippet != "" {
		text := sr.AnswerBox.Answer
		if text == "" {
			text = sr.AnswerBox.Snippet
		}
		snippets = append(snippets, types.Snippet{
			Title:  firstNonEmpty(sr.AnswerBox.Title, "Answer"),
			Link:   sr.AnswerBox.Link,
			Text:   text,
			Source: "google_answer_box",
		})
	}
	for _, r := range sr.Organic {
		if len(snippets) >= limit {
			break
		}
		snippets = append(snippets, types.Snippet{
			Title:  r.Title,
			Link:   r.Link,
			Text:   r.Snippet,
			Source: "google",
		})
	}
	return types.FormatSnippets("Web", query, snippets), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

type webResponse struct {
	AnswerBox struct {
		Title   string `json:"title"`
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"answerBox"`
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}
