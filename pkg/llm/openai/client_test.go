package openai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simulator/pkg/llm"
	"simulator/pkg/testkit"
)

func TestCompleteAgainstMockServer(t *testing.T) {
	srv := testkit.MockOpenAIServer("Здравствуйте! Чем могу помочь?")
	defer srv.Close()

	client := NewClientWithBaseURL("test-key", "gpt-4o-mini", srv.URL+"/v1/")
	resp, err := client.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			llm.NewSystemMessage("ты оператор"),
			llm.NewUserMessage("привет"),
		},
		Temperature: 0.7,
	})
	require.NoError(t, err)

	assert.Equal(t, "Здравствуйте! Чем могу помочь?", resp.Content)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, testkit.MockPromptTokens, resp.Usage.PromptTokens)
	assert.Equal(t, testkit.MockCompletionTokens, resp.Usage.CompletionTokens)
	assert.Equal(t, testkit.MockPromptTokens+testkit.MockCompletionTokens, resp.Usage.TotalTokens)
}

func TestModelName(t *testing.T) {
	client := NewClient("test-key", "gpt-4o")
	assert.Equal(t, "gpt-4o", client.ModelName())
}
