// Package llm provides interfaces and types for language model client
// implementations and their middleware chain.
package llm

import (
	"context"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem CompletionRole = "system"
	// RoleUser indicates a message from the human user.
	RoleUser CompletionRole = "user"
	// RoleAssistant indicates a message from the AI assistant.
	RoleAssistant CompletionRole = "assistant"
)

const (
	// TemperatureDialogue is used for simulated conversation turns.
	TemperatureDialogue = 0.7

	// TemperatureEvaluation is used for scoring completed conversations.
	// Lower temperature keeps verdicts stable across runs.
	TemperatureEvaluation = 0.3

	// DefaultMaxTokens caps the response length when a request sets none.
	DefaultMaxTokens = 4096
)

// CompletionMessage represents a message in a completion request.
type CompletionMessage struct {
	Role    CompletionRole `json:"role"`
	Content string         `json:"content"`
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Messages    []CompletionMessage
	Model       string
	SessionID   string // attributes usage and cost to a simulation session
	Temperature float64
	MaxTokens   int
	Seed        *int64
	JSONMode    bool // ask the provider for a JSON object response
}

// Usage reports token consumption and estimated cost of one completion.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
	Estimated        bool    `json:"estimated,omitempty"` // counted locally, not reported by the provider
}

// CompletionResponse represents a response from a completion request.
type CompletionResponse struct {
	Content string
	Model   string
	Usage   Usage
}

// Client defines the interface for language model interactions.
type Client interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the model this client talks to.
	ModelName() string
}

// NewCompletionRequest creates a request with default limits applied.
func NewCompletionRequest(model string, messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		Model:       model,
		MaxTokens:   DefaultMaxTokens,
		Temperature: TemperatureDialogue,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleAssistant, Content: content}
}
