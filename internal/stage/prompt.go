// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/pdiddy/content-engine/pkg/types"
)

// systemPromptTmpl frames the agent persona.
var systemPromptTmpl = template.Must(template.New("system").Parse(`You are a {{.Role}}.

Your goal: {{.Goal}}

{{.Backstory}}

Answer in markdown. Return only the final deliverable, without preamble.`))

// userPromptTmpl carries the task and, after the first stage, the output of
// the previous stage.
var userPromptTmpl = template.Must(template.New("user").Parse(`{{.Task}}
{{- if .Input}}

Context from the previous stage ({{.Previous}}):
---
{{.Input}}
---
{{- end}}`))

// promptData is the data available to stage templates.
type promptData struct {
	Topic string
	Stage types.StageName
}

type renderedPrompts struct {
	System string
	User   string
}

// renderPrompts expands the stage templates with topic and joins the
// previous stage's output.
func renderPrompts(cfg types.StageConfig, topic, input string) (renderedPrompts, error) {
	data := promptData{Topic: topic, Stage: cfg.Name}

	fields := map[string]string{
		"role":      cfg.Role,
		"goal":      cfg.Goal,
		"backstory": cfg.Backstory,
		"task":      cfg.Task,
	}
	out := make(map[string]string, len(fields))
	for name, text := range fields {
		s, err := expand(string(cfg.Name)+"."+name, text, data)
		if err != nil {
			return renderedPrompts{}, &types.ConfigError{
				Field: fmt.Sprintf("stages.%s.%s", cfg.Name, name),
				Msg:   err.Error(),
			}
		}
		out[name] = s
	}
	if strings.TrimSpace(out["task"]) == "" {
		return renderedPrompts{}, &types.ConfigError{Field: fmt.Sprintf("stages.%s.task", cfg.Name), Msg: "must not be empty"}
	}

	var sys bytes.Buffer
	if err := systemPromptTmpl.Execute(&sys, map[string]string{
		"Role":      firstNonEmpty(out["role"], "helpful assistant"),
		"Goal":      out["goal"],
		"Backstory": out["backstory"],
	}); err != nil {
		return renderedPrompts{}, fmt.Errorf("rendering system prompt: %w", err)
	}

	var user bytes.Buffer
	if err := userPromptTmpl.Execute(&user, map[string]string{
		"Task":     out["task"],
		"Input":    strings.TrimSpace(input),
		"Previous": string(previousStage(cfg.Name)),
	}); err != nil {
		return renderedPrompts{}, fmt.Errorf("rendering task prompt: %w", err)
	}

	return renderedPrompts{System: sys.String(), User: user.String()}, nil
}

func expand(name, text string, data promptData) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// previousStage returns the stage that runs before n, or "input" for the
// first stage.
func previousStage(n types.StageName) types.StageName {
	for i, s := range types.StageOrder {
		if s == n && i > 0 {
			return types.StageOrder[i-1]
		}
	}
	return "input"
}

var (
	thinkBlock    = regexp.MustCompile(`(?is)<think>.*?</think>`)
	thinkUnclosed = regexp.MustCompile(`(?is)<think>.*$`)
)

// StripReasoning removes <think> blocks that reasoning models emit ahead of
// their answer. An unclosed block runs to the end of the text. A stray
// closing tag drops everything before it.
func StripReasoning(s string) string {
	s = thinkBlock.ReplaceAllString(s, "")
	if i := strings.LastIndex(strings.ToLower(s), "</think>"); i >= 0 {
		s = s[i+len("</think>"):]
	}
	s = thinkUnclosed.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
