package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// JSONResult holds the outcome of a JSON-mode completion. A response the
// provider returned successfully but that does not parse as JSON is not
// an error: Invalid is set and Raw keeps the text for diagnostics.
type JSONResult struct {
	Data    map[string]any
	Raw     string
	Usage   Usage
	Invalid bool
}

// Requester issues completions through a client chain with the request
// shapes the simulation and evaluation paths need.
type Requester struct {
	client Client
}

// NewRequester creates a requester on top of the given client.
func NewRequester(client Client) *Requester {
	return &Requester{client: client}
}

// Client returns the underlying client chain.
func (r *Requester) Client() Client {
	return r.client
}

// ChatCompletion requests a plain-text completion.
func (r *Requester) ChatCompletion(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if req.Model == "" {
		req.Model = r.client.ModelName()
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	return r.client.Complete(ctx, req)
}

// JSONCompletion requests a JSON object completion and parses it.
// Transport failures surface as errors; unparseable content comes back
// as an Invalid result.
func (r *Requester) JSONCompletion(ctx context.Context, req CompletionRequest) (JSONResult, error) {
	req.JSONMode = true
	resp, err := r.ChatCompletion(ctx, req)
	if err != nil {
		return JSONResult{}, err
	}
	return ParseJSONContent(resp.Content, resp.Usage), nil
}

// ParseJSONContent parses completion content as a JSON object. Models
// sometimes wrap JSON in markdown fences; those are stripped first.
func ParseJSONContent(content string, usage Usage) JSONResult {
	trimmed := stripFences(content)

	var data map[string]any
	if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
		return JSONResult{Raw: content, Usage: usage, Invalid: true}
	}
	return JSONResult{Data: data, Raw: content, Usage: usage}
}

func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimPrefix(t, "json")
	if i := strings.LastIndex(t, "```"); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}
