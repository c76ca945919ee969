package testkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"
)

// Fixed usage numbers reported by the mock servers so tests can assert
// exact accounting.
const (
	MockPromptTokens     = 12
	MockCompletionTokens = 7
)

// MockOpenAIServer returns a fake Chat Completions endpoint that answers
// every request with reply. Point the real SDK at server.URL + "/v1/".
func MockOpenAIServer(reply string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "not found"})
			return
		}

		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model == "" {
			req.Model = "gpt-4o-mini"
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-mock",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   req.Model,
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]any{
						"role":    "assistant",
						"content": reply,
					},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     MockPromptTokens,
				"completion_tokens": MockCompletionTokens,
				"total_tokens":      MockPromptTokens + MockCompletionTokens,
			},
		})
	}))
}

// MockAnthropicServer returns a fake Messages endpoint that answers every
// request with reply. Point the real SDK at server.URL.
func MockAnthropicServer(reply string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/messages") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "not found"})
			return
		}

		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model == "" {
			req.Model = "claude-3-5-haiku-latest"
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg-mock",
			"type":  "message",
			"role":  "assistant",
			"model": req.Model,
			"content": []map[string]any{
				{"type": "text", "text": reply},
			},
			"stop_reason": "end_turn",
			"usage": map[string]any{
				"input_tokens":  MockPromptTokens,
				"output_tokens": MockCompletionTokens,
			},
		})
	}))
}
