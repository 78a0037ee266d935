// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files and
// from the environment. Each file in the directory represents one secret:
// the filename is the key name and the trimmed file contents are the value.
//
// Known key files: groq-api-key, serper-api-key, stability-api-key,
// semantic-scholar-api-key.
package secrets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Key names recognized by the pipeline, with the environment variable
// that supplies each one when no file is present.
const (
	GroqAPIKey            = "groq-api-key"
	SerperAPIKey          = "serper-api-key"
	StabilityAPIKey       = "stability-api-key"
	SemanticScholarAPIKey = "semantic-scholar-api-key"
)

var envNames = map[string]string{
	GroqAPIKey:            "GROQ_API_KEY",
	SerperAPIKey:          "SERPER_API_KEY",
	StabilityAPIKey:       "STABILITY_API_KEY",
	SemanticScholarAPIKey: "SEMANTIC_SCHOLAR_API_KEY",
}

// Set maps key names to secret values.
type Set map[string]string

// Load reads all files in dir and returns their trimmed contents keyed by
// filename. A missing directory is not an error; Load returns an empty Set.
// Unreadable files produce a warning on warn but do not abort.
func Load(dir string, warn io.Writer) (Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Set)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(warn, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Get returns the value for key. Files take precedence over the key's
// environment variable.
func (s Set) Get(key string) string {
	if v, ok := s[key]; ok {
		return v
	}
	if env, ok := envNames[key]; ok {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// Names returns the sorted key names, never the values.
func (s Set) Names() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
