package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

// bearerPattern matches "Bearer <token>" strings that appear as raw values.
var bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-._~+/]+=*`)

// providerKeyPattern matches key shapes issued by the providers we call:
// Groq (gsk_...) and Stability (sk-...).
var providerKeyPattern = regexp.MustCompile(`\b(gsk_[A-Za-z0-9]{16,}|sk-[A-Za-z0-9]{16,})\b`)

// apiKeyInlinePattern matches inline "api_key=<value>" or "apikey:<value>".
var apiKeyInlinePattern = regexp.MustCompile(`(?i)(api[_\-]?key|apikey)\s*[:=]\s*\S+`)

func newRedactAttr() func([]string, slog.Attr) slog.Attr {
	return masq.New(
		masq.WithFieldName("authorization"),
		masq.WithFieldName("x-api-key"),
		masq.WithFieldName("APIKey"),
		masq.WithFieldName("SerperAPIKey"),
		masq.WithFieldName("SemanticScholarAPIKey"),
		masq.WithFieldName("password"),
		masq.WithFieldName("secret"),
		masq.WithFieldName("token"),
		masq.WithFieldPrefix("api_key"),
		masq.WithFieldPrefix("secret_"),
		masq.WithRegex(bearerPattern),
		masq.WithRegex(providerKeyPattern),
		masq.WithRegex(apiKeyInlinePattern),
	)
}
