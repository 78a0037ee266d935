// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package imagegen renders the image prompts produced by the social stage
// into PNG files using the Stability AI Stable Image API.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/internal/logging"
	"github.com/pdiddy/content-engine/pkg/types"
)

// Defaults for the Stability AI SD3 endpoint.
const (
	DefaultURL         = "https://api.stability.ai/v2beta/stable-image/generate/sd3"
	DefaultModel       = "sd3.5-large"
	DefaultAspectRatio = "1:1"
	DefaultMaxImages   = 3
)

// maxImageBytes bounds a single image download.
const maxImageBytes = 32 << 20

// aspectRatios lists the ratios the API accepts.
var aspectRatios = map[string]bool{
	"16:9": true, "1:1": true, "21:9": true, "2:3": true, "3:2": true,
	"4:5": true, "5:4": true, "9:16": true, "9:21": true,
}

var (
	arParam   = regexp.MustCompile(`--(?:ar|aspect)\s+(\d+:\d+)`)
	dashParam = regexp.MustCompile(`\s--[a-z]+(?:\s+[^\s-]\S*)?`)
)

// Generator calls the image API.
type Generator struct {
	URL         string
	APIKey      string
	Model       string
	AspectRatio string
	MaxImages   int
	HTTP        *httputil.Client
}

// New builds a Generator from configuration.
func New(cfg types.ImageConfig, hc *httputil.Client) *Generator {
	g := &Generator{
		URL:         cfg.URL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		AspectRatio: cfg.AspectRatio,
		MaxImages:   cfg.MaxImages,
		HTTP:        hc,
	}
	if g.URL == "" {
		g.URL = DefaultURL
	}
	if g.Model == "" {
		g.Model = DefaultModel
	}
	if !aspectRatios[g.AspectRatio] {
		g.AspectRatio = DefaultAspectRatio
	}
	if g.MaxImages <= 0 {
		g.MaxImages = DefaultMaxImages
	}
	return g
}

// ParsePrompt converts a MidJourney-style prompt into plain text and an
// aspect ratio. "--ar W:H" selects the ratio when the API supports it;
// every other "--param value" is dropped.
func ParsePrompt(prompt string) (text, aspect string) {
	if m := arParam.FindStringSubmatch(prompt); m != nil && aspectRatios[m[1]] {
		aspect = m[1]
	}
	text = arParam.ReplaceAllString(prompt, "")
	text = dashParam.ReplaceAllString(" "+text, "")
	return strings.Join(strings.Fields(text), " "), aspect
}

// Generate renders one prompt and returns the PNG bytes.
func (g *Generator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if g.APIKey == "" {
		return nil, errors.New("no image API key configured")
	}
	text, aspect := ParsePrompt(prompt)
	if text == "" {
		return nil, errors.New("empty image prompt")
	}
	if aspect == "" {
		aspect = g.AspectRatio
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range [][2]string{
		{"prompt", text},
		{"model", g.Model},
		{"aspect_ratio", aspect},
		{"output_format", "png"},
	} {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("writing form field %s: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+g.APIKey)
	req.Header.Set("Accept", "image/*")

	resp, err := g.HTTP.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("image API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("image API returned HTTP %d: %s", resp.StatusCode, apiError(data))
	}
	img, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(img) == 0 {
		return nil, errors.New("image API returned an empty body")
	}
	return img, nil
}

// GenerateAll renders up to MaxImages prompts in order. Images are keyed
// image_01.png, image_02.png and so on. A failed prompt is logged and
// skipped; the joined error reports every failure.
func (g *Generator) GenerateAll(ctx context.Context, prompts []string) (map[string][]byte, error) {
	logger := logging.FromContext(ctx)
	images := make(map[string][]byte)
	var errs []error
	for i, p := range prompts {
		if i >= g.MaxImages {
			break
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		name := fmt.Sprintf("image_%02d.png", i+1)
		logger.InfoContext(ctx, "generating image", slog.String("file", name), slog.Int("index", i+1))
		img, err := g.Generate(ctx, p)
		if err != nil {
			logger.WarnContext(ctx, "image generation failed", slog.String("file", name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		images[name] = img
	}
	return images, errors.Join(errs...)
}

// apiError extracts the messages of a Stability error body.
func apiError(data []byte) string {
	var e struct {
		Name   string   `json:"name"`
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(data, &e); err == nil && len(e.Errors) > 0 {
		return strings.Join(e.Errors, "; ")
	}
	s := strings.TrimSpace(string(data))
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	return s
}
