// Package anthropic provides the Anthropic Claude client behind the
// llm.Client interface.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"simulator/pkg/llm"
)

const defaultMaxTokens = 4096

// Client wraps the Anthropic API client to implement llm.Client.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClient creates a raw Claude client for the given model. Middleware
// is applied at a higher level.
func NewClient(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// NewClientWithBaseURL creates a client pointed at an alternate endpoint.
// Tests use it to run against a local fake server.
func NewClientWithBaseURL(apiKey, model, baseURL string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL)),
		model:  anthropic.Model(model),
	}
}

// ModelName returns the configured model.
func (c *Client) ModelName() string {
	return string(c.model)
}

// Complete implements llm.Client using the Messages API.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	systemPrompt, alternating, err := ensureAlternation(req.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llm.NewError(llm.ErrorTypeBadRequest, 0, err)
	}

	messages := make([]anthropic.MessageParam, 0, len(alternating))
	for i := range alternating {
		msg := &alternating[i]
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == llm.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	model := c.model
	if req.Model != "" {
		model = anthropic.Model(req.Model)
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.JSONMode {
		// The Messages API has no JSON response mode; steer via system text.
		systemPrompt = strings.TrimSpace(systemPrompt + "\n\nRespond with a single valid JSON object and nothing else.")
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}

	if resp == nil || len(resp.Content) == 0 {
		return llm.CompletionResponse{}, llm.NewError(llm.ErrorTypeTransient, 0,
			errors.New("empty response from Claude API"))
	}

	var text strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	usage := llm.Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	return llm.CompletionResponse{
		Content: text.String(),
		Model:   string(resp.Model),
		Usage:   usage,
	}, nil
}

// ensureAlternation prepares messages for the Messages API: system
// messages move to the top-level system parameter and consecutive
// user messages are merged so the sequence alternates strictly.
func ensureAlternation(messages []llm.CompletionMessage) (string, []llm.CompletionMessage, error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("message list cannot be empty")
	}

	var systemParts []string
	var rest []llm.CompletionMessage
	for i := range messages {
		msg := &messages[i]
		if msg.Role == llm.RoleSystem {
			systemParts = append(systemParts, msg.Content)
		} else {
			rest = append(rest, *msg)
		}
	}

	if len(rest) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}

	var merged []llm.CompletionMessage
	var userParts []string
	flush := func() {
		if len(userParts) > 0 {
			merged = append(merged, llm.CompletionMessage{
				Role:    llm.RoleUser,
				Content: strings.Join(userParts, "\n\n"),
			})
			userParts = nil
		}
	}
	for i := range rest {
		msg := &rest[i]
		if msg.Role == llm.RoleAssistant {
			flush()
			if len(merged) == 0 || merged[len(merged)-1].Role == llm.RoleAssistant {
				return "", nil, fmt.Errorf("assistant message at index %d has no preceding user message", i)
			}
			merged = append(merged, *msg)
		} else {
			userParts = append(userParts, msg.Content)
		}
	}
	flush()

	if merged[len(merged)-1].Role != llm.RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got: %s", merged[len(merged)-1].Role)
	}

	return strings.Join(systemParts, "\n\n"), merged, nil
}

func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return llm.NewError(llm.ClassifyStatus(apierr.StatusCode), apierr.StatusCode,
			fmt.Errorf("Claude API error: %w", err))
	}

	return llm.NewError(llm.ErrorTypeTransient, 0, fmt.Errorf("Claude request failed: %w", err))
}
