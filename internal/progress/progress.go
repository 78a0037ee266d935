// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress prints human-readable stage progress to a terminal.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pdiddy/content-engine/pkg/types"
)

// Messages shown when a stage starts, keyed by stage.
var startMessages = map[types.StageName]string{
	types.StageResearch: "Research agent is gathering academic and web sources",
	types.StageWriting:  "Writer agent is drafting the technical blog post",
	types.StageSocial:   "Social media agent is adapting the post for LinkedIn and X",
}

// Console writes styled progress lines to w. It satisfies
// pipeline.Observer and is safe for concurrent use.
type Console struct {
	mu   sync.Mutex
	w    io.Writer
	step lipgloss.Style
	ok   lipgloss.Style
	fail lipgloss.Style
	dim  lipgloss.Style
}

// NewConsole returns a Console writing to w. Colors are used only when w
// is a terminal that supports them.
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:    w,
		step: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		ok:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50")),
		fail: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		dim:  r.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}

// StartMessage describes what stage is about to do.
func StartMessage(stage types.StageName) string {
	if msg, ok := startMessages[stage]; ok {
		return msg
	}
	return "Running stage " + string(stage)
}

func (c *Console) StageStarted(stage types.StageName, index, total int) {
	c.printf("%s %s...\n", c.step.Render(fmt.Sprintf("[%d/%d]", index+1, total)), StartMessage(stage))
}

func (c *Console) StageFinished(r types.StageResult, index, total int) {
	detail := fmt.Sprintf("(%d chars, %s", len([]rune(r.Output)), r.Duration.Round(100*time.Millisecond))
	if r.Usage.TotalTokens > 0 {
		detail += fmt.Sprintf(", %d tokens", r.Usage.TotalTokens)
	}
	if r.ToolCalls > 0 {
		detail += fmt.Sprintf(", %d tool calls", r.ToolCalls)
	}
	detail += ")"
	c.printf("%s %s stage complete %s\n",
		c.ok.Render(fmt.Sprintf("[%d/%d]", index+1, total)), r.Stage, c.dim.Render(detail))
}

func (c *Console) StageFailed(stage types.StageName, err error) {
	c.printf("%s %s stage failed: %v\n", c.fail.Render("[error]"), stage, err)
}

// Done reports a finished package.
func (c *Console) Done(dir, archive string) {
	c.printf("%s content saved to %s\n", c.ok.Render("[done]"), dir)
	if archive != "" {
		c.printf("%s archive %s\n", c.dim.Render("      "), archive)
	}
}

// Warn reports a non-fatal problem such as a failed image render.
func (c *Console) Warn(msg string) {
	c.printf("%s %s\n", c.fail.Render("[warn]"), msg)
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}
