// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/internal/logging"
	"github.com/pdiddy/content-engine/pkg/types"
)

func testClient(ts *httptest.Server, key string) *Client {
	hc := httputil.New("groq", types.HTTPConfig{Timeout: 5 * time.Second}, logging.Discard()).WithHTTPClient(ts.Client())
	return NewClient(types.ProviderConfig{BaseURL: ts.URL + "/", APIKey: key}, hc)
}

func TestChatRequestShape(t *testing.T) {
	var captured ChatRequest
	var auth, path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"id":"c1","model":"qwen/qwen3-32b","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hi"}}],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`)
	}))
	defer ts.Close()

	temp := 0.3
	resp, err := testClient(ts, "gsk_test").Chat(context.Background(), ChatRequest{
		Model:       "qwen/qwen3-32b",
		Messages:    []Message{{Role: RoleUser, Content: "hello"}},
		MaxTokens:   3000,
		Temperature: &temp,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if path != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", path)
	}
	if auth != "Bearer gsk_test" {
		t.Errorf("Authorization = %q", auth)
	}
	if captured.MaxTokens != 3000 || captured.Temperature == nil || *captured.Temperature != 0.3 {
		t.Errorf("request budget/temperature not forwarded: %+v", captured)
	}
	msg, ok := resp.First()
	if !ok || msg.Content != "hi" {
		t.Errorf("First() = %+v, %v", msg, ok)
	}
	if resp.Usage == nil || resp.Usage.CompletionTokens != 2 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestChatZeroTemperatureIsSent(t *testing.T) {
	var raw map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer ts.Close()

	zero := 0.0
	if _, err := testClient(ts, "k").Chat(context.Background(), ChatRequest{Model: "m", Temperature: &zero}); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["temperature"]; !ok {
		t.Error("temperature 0 should be sent explicitly")
	}
}

func TestChatToolCallsDecoded(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"choices":[{"finish_reason":"tool_calls","message":{"role":"assistant","tool_calls":[{"id":"call_1","type":"function","function":{"name":"web_search","arguments":"{\"query\":\"vector databases\"}"}}]}}]}`)
	}))
	defer ts.Close()

	resp, err := testClient(ts, "k").Chat(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	msg, _ := resp.First()
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Function.Name != "web_search" {
		t.Fatalf("tool calls = %+v", msg.ToolCalls)
	}
}

func TestChatErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind types.ProviderErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"Invalid API Key"}}`, types.ProviderAuth},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached"}}`, types.ProviderRateLimit},
		{"quota", http.StatusTooManyRequests, `{"error":{"message":"You exceeded your current quota"}}`, types.ProviderQuota},
		{"server error", http.StatusInternalServerError, `oops`, types.ProviderUnavailable},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"model not found"}}`, types.ProviderBadRequest},
		{"gateway timeout", http.StatusGatewayTimeout, ``, types.ProviderTimeout},
		{"no choices", http.StatusOK, `{"choices":[]}`, types.ProviderEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			_, err := testClient(ts, "k").Chat(context.Background(), ChatRequest{Model: "m"})
			if !errors.Is(err, types.ErrProvider) {
				t.Fatalf("err = %v, want ErrProvider", err)
			}
			var pe *types.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("err is not *ProviderError: %T", err)
			}
			if pe.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", pe.Kind, tt.wantKind)
			}
			if pe.Model != "m" {
				t.Errorf("Model = %q, want m", pe.Model)
			}
		})
	}
}

func TestChatMissingKey(t *testing.T) {
	c := NewClient(types.ProviderConfig{}, httputil.New("groq", types.HTTPConfig{}, logging.Discard()))
	_, err := c.Chat(context.Background(), ChatRequest{Model: "m"})
	var pe *types.ProviderError
	if !errors.As(err, &pe) || pe.Kind != types.ProviderAuth {
		t.Fatalf("err = %v, want auth ProviderError", err)
	}
	if c.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want default", c.BaseURL)
	}
}

func TestChatTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := testClient(ts, "k").Chat(ctx, ChatRequest{Model: "m"})
	var pe *types.ProviderError
	if !errors.As(err, &pe) || pe.Kind != types.ProviderTimeout {
		t.Fatalf("err = %v, want timeout ProviderError", err)
	}
}
