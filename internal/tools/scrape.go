// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/pkg/types"
)

const (
	defaultScrapeChars = 8000
	maxPageBytes       = 4 << 20
)

// skipped holds elements whose text never reaches the model.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Iframe:   true,
	atom.Template: true,
	atom.Form:     true,
}

// block elements end a line of extracted text.
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Tr: true, atom.Section: true, atom.Article: true, atom.Pre: true, atom.Blockquote: true,
}

// Scrape fetches a web page and returns its readable text.
type Scrape struct {
	HTTP     *httputil.Client
	MaxChars int
}

func (s *Scrape) Name() string { return ScrapeName }

func (s *Scrape) Description() string {
	return "Fetch a web page by URL and return its readable text content."
}

func (s *Scrape) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"url":{"type":"string","description":"Absolute http or https URL of the page"}},"required":["url"]}`)
}

func (s *Scrape) Invoke(ctx context.Context, args string) (string, error) {
	raw, err := stringArg(args, "url")
	if err != nil {
		return "", err
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: must be absolute http or https", raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := s.HTTP.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: HTTP %d", u.Host, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxPageBytes)
	var title, text string
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/plain") {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("reading page: %w", err)
		}
		text = collapseLines(string(data))
	} else {
		title, text, err = ExtractText(body)
		if err != nil {
			return "", err
		}
	}

	limit := s.MaxChars
	if limit <= 0 {
		limit = defaultScrapeChars
	}
	return types.FormatSnippets("Page", u.String(), []types.Snippet{{
		Title:  firstNonEmpty(title, u.Host),
		Link:   u.String(),
		Text:   truncate(text, limit),
		Source: "scrape",
	}}), nil
}

// ExtractText parses an HTML document and returns its title and visible
// text, one block element per line.
func ExtractText(r io.Reader) (title, text string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", fmt.Errorf("parsing HTML: %w", err)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (skipped[n.DataAtom] || n.DataAtom == atom.Head) {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				b.WriteString(t)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && block[n.DataAtom] {
			b.WriteByte('\n')
		}
	}
	var findTitle func(n *html.Node)
	findTitle = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Title && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findTitle(c)
		}
	}
	findTitle(doc)
	walk(doc)

	return title, collapseLines(b.String()), nil
}

// collapseLines trims every line and drops blank ones.
func collapseLines(s string) string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}
