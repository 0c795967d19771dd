// Package openai wraps go-openai behind the narrow surface the verifier's
// arbitration pass needs: one chat completion per high-value case.
package openai

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	sdk "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client defines the OpenAI API operations used for arbitration.
type Client interface {
	CreateCompletion(ctx context.Context, req Request) (*Response, error)
}

// Request is our own request type for CreateCompletion.
type Request struct {
	Model       string
	MaxTokens   int
	System      string
	User        string
	Temperature *float32
}

// Response is our own response type from CreateCompletion.
type Response struct {
	Text  string
	Usage TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// modelPricing holds per-million-token pricing for known models.
var modelPricing = map[string][2]float64{
	// model → {input $/MTok, output $/MTok}
	"gpt-4o":      {2.50, 10.00},
	"gpt-4o-mini": {0.15, 0.60},
}

// EstimateCost computes an estimated cost in USD. Returns 0 for unknown models.
func (u TokenUsage) EstimateCost(model string) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}
	return (float64(u.PromptTokens)/1e6)*pricing[0] + (float64(u.CompletionTokens)/1e6)*pricing[1]
}

// LogCost logs token usage and estimated cost with structured zap fields.
func (u TokenUsage) LogCost(model, phase string) {
	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int("input_tokens", u.PromptTokens),
		zap.Int("output_tokens", u.CompletionTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}

// sdkClient implements Client using sashabaranov/go-openai.
type sdkClient struct {
	client *sdk.Client
}

// NewClient creates a new OpenAI client.
func NewClient(apiKey string) Client {
	return &sdkClient{client: sdk.NewClient(apiKey)}
}

func (c *sdkClient) CreateCompletion(ctx context.Context, req Request) (*Response, error) {
	chatReq := sdk.ChatCompletionRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages: []sdk.ChatCompletionMessage{
			{Role: sdk.ChatMessageRoleSystem, Content: req.System},
			{Role: sdk.ChatMessageRoleUser, Content: req.User},
		},
	}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, eris.Wrap(err, "openai: create completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: empty response")
	}

	return &Response{
		Text: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
