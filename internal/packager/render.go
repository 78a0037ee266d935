// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package packager

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/pdiddy/content-engine/pkg/types"
)

// agentNames labels the stage authors in document headers.
var agentNames = map[types.StageName]string{
	types.StageResearch: "Research Agent",
	types.StageWriting:  "Content Writer Agent",
	types.StageSocial:   "Social Media Specialist",
}

// stageTitle returns the first heading of a stage file.
func stageTitle(n types.StageName, topic string) string {
	switch n {
	case types.StageResearch:
		return "Research Findings: " + topic
	case types.StageSocial:
		return "Social Media Content: " + topic
	default:
		return topic
	}
}

func renderStage(topic string, res types.StageResult, cfg types.StageConfig) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", stageTitle(res.Stage, topic))
	fmt.Fprintf(&b, "*Generated by %s (%s) on: %s*\n\n", agentNames[res.Stage], modelLabel(cfg, res), res.GeneratedAt.Format(DisplayTimeLayout))
	b.WriteString(strings.TrimSpace(res.Output))
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func modelLabel(cfg types.StageConfig, res types.StageResult) string {
	if cfg.Model != "" {
		return cfg.DisplayModel()
	}
	return res.Model
}

var combinedTmpl = template.Must(template.New("combined").Parse(`# Complete Multi-Agent Content Package: {{.Topic}}

**Generated:** {{.Generated}}
**Architecture:** Multi-Agent System
**Research Model:** {{.ResearchModel}}
**Content Model:** {{.WritingModel}}
**Social Model:** {{.SocialModel}}

---

# RESEARCH FINDINGS

{{.Research}}

---

# TECHNICAL BLOG POST

{{.Writing}}

---

# SOCIAL MEDIA CONTENT

{{.Social}}
`))

var readmeTmpl = template.Must(template.New("readme").Parse(`# Multi-Agent Content Package: {{.Topic}}

**Generated:** {{.Generated}}
**Architecture:** Multi-Agent System with Specialized LLMs

## Agent Architecture

{{range .Stages}}- **{{.Agent}}**: {{.Model}} (temperature {{printf "%.1f" .Temperature}}, max {{.MaxTokens}} tokens{{if .Tools}}, tools: {{.Tools}}{{end}}){{if .Duration}}, {{.Duration}}{{end}}
{{end}}
## Files Generated

- ` + "`01_research_findings.md`" + ` - Research report with sources
- ` + "`02_technical_blog_post.md`" + ` - Main technical blog post
- ` + "`03_social_media_content.md`" + ` - LinkedIn and X/Twitter content plus image prompts
- ` + "`complete_multi_agent_content.md`" + ` - All content in one file
- ` + "`README.md`" + ` - This file
{{- range .Images}}
- ` + "`images/{{.}}`" + ` - Generated image
{{- end}}

## Workflow

1. **Research**: the research agent gathers academic papers, industry data and technical examples
2. **Writing**: the content writer turns the research into a technical blog post
3. **Social adaptation**: the social media specialist creates platform-specific content

## Usage

- **Blog**: ` + "`02_technical_blog_post.md`" + `
- **Social media**: ` + "`03_social_media_content.md`" + `
- **Research**: ` + "`01_research_findings.md`" + `
`))

type readmeStage struct {
	Agent       string
	Model       string
	Temperature float64
	MaxTokens   int
	Tools       string
	Duration    time.Duration
}

func generatedAt(pkg *types.RunPackage) string {
	t := pkg.StartedAt
	if n := len(pkg.Results); n > 0 && !pkg.Results[n-1].GeneratedAt.IsZero() {
		t = pkg.Results[n-1].GeneratedAt
	}
	return t.Format(DisplayTimeLayout)
}

func renderCombined(pkg *types.RunPackage) ([]byte, error) {
	out := func(n types.StageName) string {
		r, _ := pkg.Result(n)
		return strings.TrimSpace(r.Output)
	}
	model := func(n types.StageName) string {
		r, _ := pkg.Result(n)
		c, _ := pkg.Config(n)
		return modelLabel(c, r)
	}
	var b bytes.Buffer
	err := combinedTmpl.Execute(&b, map[string]string{
		"Topic":         pkg.Topic,
		"Generated":     generatedAt(pkg),
		"ResearchModel": model(types.StageResearch),
		"WritingModel":  model(types.StageWriting),
		"SocialModel":   model(types.StageSocial),
		"Research":      out(types.StageResearch),
		"Writing":       out(types.StageWriting),
		"Social":        out(types.StageSocial),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering combined document: %w", err)
	}
	return b.Bytes(), nil
}

func renderReadme(pkg *types.RunPackage) ([]byte, error) {
	var stages []readmeStage
	for _, n := range types.StageOrder {
		r, _ := pkg.Result(n)
		c, _ := pkg.Config(n)
		stages = append(stages, readmeStage{
			Agent:       agentNames[n],
			Model:       modelLabel(c, r),
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
			Tools:       strings.Join(c.Tools, ", "),
			Duration:    r.Duration.Round(time.Second),
		})
	}
	images := make([]string, 0, len(pkg.Images))
	for name := range pkg.Images {
		images = append(images, name)
	}
	sort.Strings(images)

	var b bytes.Buffer
	err := readmeTmpl.Execute(&b, map[string]any{
		"Topic":     pkg.Topic,
		"Generated": generatedAt(pkg),
		"Stages":    stages,
		"Images":    images,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering README: %w", err)
	}
	return b.Bytes(), nil
}
