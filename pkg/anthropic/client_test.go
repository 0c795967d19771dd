package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCost(t *testing.T) {
	usage := TokenUsage{
		InputTokens:  1_000_000,
		OutputTokens: 1_000_000,
	}
	cost := usage.EstimateCost("claude-sonnet-4-5-20250929")
	assert.InDelta(t, 18.00, cost, 0.001)
}

func TestEstimateCostUnknownModel(t *testing.T) {
	usage := TokenUsage{InputTokens: 500}
	assert.Zero(t, usage.EstimateCost("some-future-model"))
}

func TestEstimateCostCacheTokens(t *testing.T) {
	usage := TokenUsage{
		CacheCreationInputTokens: 1_000_000,
		CacheReadInputTokens:     1_000_000,
	}
	// writes at 1.25x input rate, reads at 0.1x
	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.80*1.25+0.80*0.1, cost, 0.001)
}

func TestResponseText(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "{\"summary\":"},
		{Type: "tool_use", Text: "ignored"},
		{Type: "text", Text: "\"ok\"}"},
	}}
	assert.Equal(t, `{"summary":"ok"}`, resp.Text())
}
