// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/content-engine/internal/httputil"
)

// DefaultSerperBaseURL is the Serper.dev Google search API.
const DefaultSerperBaseURL = "https://google.serper.dev"

// SerperClient posts queries to the Serper.dev API.
type SerperClient struct {
	BaseURL string
	APIKey  string
	HTTP    *httputil.Client
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
	HL  string `json:"hl,omitempty"`
}

// post sends body to the Serper endpoint at path and decodes the JSON
// reply into out.
func (c *SerperClient) post(ctx context.Context, path string, body serperRequest, out any) error {
	if c.APIKey == "" {
		return errors.New("no Serper API key configured")
	}
	base := c.BaseURL
	if base == "" {
		base = DefaultSerperBaseURL
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling Serper request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.APIKey)

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("Serper API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("Serper API returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing Serper response: %w", err)
	}
	return nil
}
