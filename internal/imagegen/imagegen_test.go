// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package imagegen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/content-engine/internal/httputil"
	"github.com/pdiddy/content-engine/internal/logging"
	"github.com/pdiddy/content-engine/pkg/types"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\nfake")

func TestParsePrompt(t *testing.T) {
	tests := []struct {
		name, in, text, aspect string
	}{
		{"blog header", "A neon-lit vector space --ar 16:9 --v 6", "A neon-lit vector space", "16:9"},
		{"style value dropped", "Dark dashboard, clean minimal --ar 1:1 --v 6 --style raw", "Dark dashboard, clean minimal", "1:1"},
		{"mid-prompt param keeps description", "A server room --v 6 with glowing data streams --ar 16:9", "A server room with glowing data streams", "16:9"},
		{"unsupported ratio", "Server room --ar 4:7", "Server room", ""},
		{"no params", "Isometric embedding pipeline", "Isometric embedding pipeline", ""},
		{"aspect alias", "Graph --aspect 9:16 --q 2", "Graph", "9:16"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, aspect := ParsePrompt(tt.in)
			assert.Equal(t, tt.text, text)
			assert.Equal(t, tt.aspect, aspect)
		})
	}
}

type capturedForm struct {
	fields map[string]string
	auth   string
	accept string
}

func stabilityServer(t *testing.T, fail func(prompt string) bool) (*httptest.Server, *[]capturedForm) {
	t.Helper()
	var mu sync.Mutex
	var forms []capturedForm
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		f := capturedForm{fields: map[string]string{}, auth: r.Header.Get("Authorization"), accept: r.Header.Get("Accept")}
		for k, v := range r.MultipartForm.Value {
			f.fields[k] = v[0]
		}
		mu.Lock()
		forms = append(forms, f)
		mu.Unlock()
		if fail != nil && fail(f.fields["prompt"]) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"name":"bad_request","errors":["prompt: flagged"]}`))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngMagic)
	}))
	t.Cleanup(ts.Close)
	return ts, &forms
}

func testGenerator(ts *httptest.Server, cfg types.ImageConfig) *Generator {
	hc := httputil.New("stability", types.HTTPConfig{}, logging.Discard()).WithHTTPClient(ts.Client())
	cfg.URL = ts.URL
	return New(cfg, hc)
}

func TestGenerate(t *testing.T) {
	ts, forms := stabilityServer(t, nil)
	g := testGenerator(ts, types.ImageConfig{APIKey: "sk-stab"})

	img, err := g.Generate(context.Background(), "A neon-lit vector space --ar 16:9 --v 6")
	require.NoError(t, err)
	assert.Equal(t, pngMagic, img)

	require.Len(t, *forms, 1)
	f := (*forms)[0]
	assert.Equal(t, map[string]string{
		"prompt":        "A neon-lit vector space",
		"model":         DefaultModel,
		"aspect_ratio":  "16:9",
		"output_format": "png",
	}, f.fields)
	assert.Equal(t, "Bearer sk-stab", f.auth)
	assert.Equal(t, "image/*", f.accept)
}

func TestGenerateDefaultsAndErrors(t *testing.T) {
	ts, forms := stabilityServer(t, func(p string) bool { return strings.Contains(p, "forbidden") })
	g := testGenerator(ts, types.ImageConfig{APIKey: "k", AspectRatio: "7:3"})
	assert.Equal(t, DefaultAspectRatio, g.AspectRatio)

	_, err := g.Generate(context.Background(), "plain prompt")
	require.NoError(t, err)
	assert.Equal(t, "1:1", (*forms)[0].fields["aspect_ratio"])

	_, err = g.Generate(context.Background(), "forbidden thing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400: prompt: flagged")

	_, err = g.Generate(context.Background(), "--ar 16:9 --v 6")
	assert.ErrorContains(t, err, "empty image prompt")

	g.APIKey = ""
	_, err = g.Generate(context.Background(), "anything")
	assert.ErrorContains(t, err, "no image API key")
}

func TestGenerateAll(t *testing.T) {
	ts, forms := stabilityServer(t, func(p string) bool { return p == "second" })
	g := testGenerator(ts, types.ImageConfig{APIKey: "k", MaxImages: 3})

	images, err := g.GenerateAll(context.Background(), []string{"first", "second", "third", "fourth"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image_02.png")

	assert.Len(t, *forms, 3, "MaxImages bounds the calls")
	assert.Len(t, images, 2)
	assert.Contains(t, images, "image_01.png")
	assert.Contains(t, images, "image_03.png")
	assert.NotContains(t, images, "image_02.png")
}

func TestGenerateAllCancelled(t *testing.T) {
	ts, forms := stabilityServer(t, nil)
	g := testGenerator(ts, types.ImageConfig{APIKey: "k"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	images, err := g.GenerateAll(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, images)
	assert.Empty(t, *forms)
}
