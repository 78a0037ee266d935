// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/pkg/types"
)

// DefaultBaseURL is the Groq OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// maxErrorBody bounds how much of an error response is kept in messages.
const maxErrorBody = 512

// Client calls a chat completions endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *httputil.Client
}

// NewClient builds a Client from provider configuration.
func NewClient(cfg types.ProviderConfig, hc *httputil.Client) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(base, "/"),
		APIKey:  cfg.APIKey,
		HTTP:    hc,
	}
}

// Chat sends one chat completion request. Every failure is returned as a
// *types.ProviderError; the caller fills in the stage.
func (c *Client) Chat(ctx context.Context, reqBody ChatRequest) (*ChatResponse, error) {
	fail := func(kind types.ProviderErrorKind, status int, err error) (*ChatResponse, error) {
		return nil, &types.ProviderError{Model: reqBody.Model, Kind: kind, StatusCode: status, Err: err}
	}

	if c.APIKey == "" {
		return fail(types.ProviderAuth, 0, errors.New("no API key configured"))
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fail(types.ProviderBadRequest, 0, fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fail(types.ProviderBadRequest, 0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fail(transportKind(ctx, err), 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		msg := errorMessage(data)
		kind := types.KindForStatus(resp.StatusCode)
		if kind == types.ProviderRateLimit && isQuotaMessage(msg) {
			kind = types.ProviderQuota
		}
		return fail(kind, resp.StatusCode, errors.New(msg))
	}

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return fail(types.ProviderUnavailable, resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}
	if len(cr.Choices) == 0 {
		return fail(types.ProviderEmpty, resp.StatusCode, errors.New("response has no choices"))
	}
	return &cr, nil
}

// transportKind classifies an error that occurred before any response.
func transportKind(ctx context.Context, err error) types.ProviderErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return types.ProviderTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return types.ProviderTimeout
	}
	return types.ProviderUnavailable
}

// errorMessage extracts the provider's error message, falling back to a
// truncated raw body.
func errorMessage(data []byte) string {
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil && eb.Error.Message != "" {
		return eb.Error.Message
	}
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	if s == "" {
		s = "empty error body"
	}
	return s
}

func isQuotaMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "quota") || strings.Contains(m, "insufficient") || strings.Contains(m, "billing")
}
