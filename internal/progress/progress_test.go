// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package progress

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/content-engine/pkg/types"
)

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.StageStarted(types.StageResearch, 0, 3)
	c.StageFinished(types.StageResult{
		Stage:     types.StageResearch,
		Output:    "findings",
		Duration:  2 * time.Second,
		Usage:     types.Usage{TotalTokens: 120},
		ToolCalls: 3,
	}, 0, 3)
	c.StageStarted(types.StageWriting, 1, 3)
	c.StageFailed(types.StageWriting, errors.New("rate limited"))
	c.Warn("image 2 failed")
	c.Done("out/topic_20260101_000000", "out/topic_20260101_000000.zip")

	out := buf.String()
	assert.Contains(t, out, "[1/3] Research agent is gathering academic and web sources...")
	assert.Contains(t, out, "[1/3] research stage complete (8 chars, 2s, 120 tokens, 3 tool calls)")
	assert.Contains(t, out, "[2/3] Writer agent")
	assert.Contains(t, out, "[error] writing stage failed: rate limited")
	assert.Contains(t, out, "[warn] image 2 failed")
	assert.Contains(t, out, "[done] content saved to out/topic_20260101_000000")
	assert.Contains(t, out, "archive out/topic_20260101_000000.zip")
	assert.NotContains(t, out, "\x1b[", "no escape codes for a non-terminal writer")
}

func TestConsoleUnknownStage(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf).StageStarted("extra", 3, 4)
	assert.Equal(t, "[4/4] Running stage extra...\n", buf.String())
}
