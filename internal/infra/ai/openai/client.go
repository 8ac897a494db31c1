package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	domai "github.com/crateguard/crateguard/internal/domain/ai"
	"github.com/crateguard/crateguard/internal/infra/ai/parse"
)

const systemPrompt = `You are a senior supply-chain security analyst reviewing Rust code and crate metadata.
Respond in plain text using exactly this layout:

ANALYSIS: [security analysis summary]

PATTERNS:
- Line: [number], Severity: [High/Medium/Low], Description: [description], Code: [snippet]

If no issues are found respond with: ANALYSIS: No significant security issues detected.`

const maxTokens = 2048

// Client is an alternate analysis provider behind the same domain port as
// the Gemini client, selected by config.
type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{Client: openai.NewClient(apiKey), Model: model}
}

func (c *Client) ModelID() string { return c.Model }

func (c *Client) AnalyzeCode(ctx context.Context, req domai.Request) (*domai.Response, error) {
	creq := openai.ChatCompletionRequest{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	// Reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(c.Model, "o1") || strings.HasPrefix(c.Model, "o3") ||
		strings.HasPrefix(c.Model, "o4") || strings.HasPrefix(c.Model, "gpt-5") {
		creq.MaxCompletionTokens = maxTokens
	} else {
		creq.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, domai.Transient(fmt.Errorf("no choices in completion"))
	}

	analysisText, patterns := parse.Response(resp.Choices[0].Message.Content)
	return &domai.Response{Analysis: analysisText, FlaggedPatterns: patterns}, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return fmt.Errorf("%w: %v", domai.ErrQuotaExceeded, err)
		case 400, 404:
			return fmt.Errorf("%w: %v", domai.ErrInvalidRequest, err)
		}
	}
	return domai.Transient(fmt.Errorf("chat completion failed: %w", err))
}
