// Package testkit provides test doubles for the completion client so
// conversation and batch behavior can be tested deterministically.
package testkit

import (
	"context"
	"sync"

	"simulator/pkg/llm"
)

// ScriptedClient replays a fixed sequence of responses. Once the script
// is exhausted it keeps returning the last entry, so open-ended loops
// still terminate on turn or time budgets.
type ScriptedClient struct {
	mu        sync.Mutex
	script    []ScriptStep
	pos       int
	requests  []llm.CompletionRequest
	model     string
	OnRequest func(req llm.CompletionRequest) // optional hook, called outside the lock
}

// ScriptStep is one scripted response or error.
type ScriptStep struct {
	Content string
	Usage   llm.Usage
	Err     error
}

// NewScriptedClient creates a client replaying the given steps.
func NewScriptedClient(steps ...ScriptStep) *ScriptedClient {
	return &ScriptedClient{script: steps, model: "scripted-model"}
}

// Reply is a shorthand for a successful text step.
func Reply(content string) ScriptStep {
	return ScriptStep{Content: content, Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}
}

// Fail is a shorthand for an error step.
func Fail(err error) ScriptStep {
	return ScriptStep{Err: err}
}

// Complete implements llm.Client.
func (c *ScriptedClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return llm.CompletionResponse{}, err
	}

	c.mu.Lock()
	c.requests = append(c.requests, req)
	if len(c.script) == 0 {
		c.mu.Unlock()
		return llm.CompletionResponse{Content: "", Model: c.model}, nil
	}
	step := c.script[c.pos]
	if c.pos < len(c.script)-1 {
		c.pos++
	}
	hook := c.OnRequest
	c.mu.Unlock()

	if hook != nil {
		hook(req)
	}

	if step.Err != nil {
		return llm.CompletionResponse{}, step.Err
	}
	return llm.CompletionResponse{Content: step.Content, Model: c.model, Usage: step.Usage}, nil
}

// ModelName implements llm.Client.
func (c *ScriptedClient) ModelName() string {
	return c.model
}

// Requests returns a copy of every request seen so far.
func (c *ScriptedClient) Requests() []llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.CompletionRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// CallCount returns how many completions were requested.
func (c *ScriptedClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}
