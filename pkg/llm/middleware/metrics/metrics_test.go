package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simulator/pkg/config"
	"simulator/pkg/llm"
)

func TestInternalRecorderAggregation(t *testing.T) {
	rec := NewInternalRecorder()

	rec.ObserveRequest("gpt-4o-mini", "s1", 100, 50, 0.001, true, "", time.Second)
	rec.ObserveRequest("gpt-4o-mini", "s1", 200, 100, 0.002, true, "", time.Second)
	rec.ObserveRequest("gpt-4o-mini", "s2", 10, 5, 0.0001, true, "", time.Second)

	s1 := rec.SessionUsage("s1")
	require.NotNil(t, s1)
	assert.Equal(t, int64(300), s1.PromptTokens)
	assert.Equal(t, int64(150), s1.CompletionTokens)
	assert.Equal(t, int64(450), s1.TotalTokens)
	assert.Equal(t, int64(2), s1.RequestCount)
	assert.InDelta(t, 0.003, s1.TotalCostUSD, 1e-9)

	totals := rec.Totals()
	assert.Equal(t, int64(3), totals.RequestCount)
	assert.Equal(t, int64(465), totals.TotalTokens)

	assert.Nil(t, rec.SessionUsage("missing"))
	assert.Len(t, rec.AllSessionUsage(), 2)
}

func TestInternalRecorderSkipsFailures(t *testing.T) {
	rec := NewInternalRecorder()

	rec.ObserveRequest("gpt-4o-mini", "s1", 100, 50, 0.001, false, "transient", time.Second)
	rec.ObserveRequest("gpt-4o-mini", "", 100, 50, 0.001, true, "", time.Second)

	assert.Nil(t, rec.SessionUsage("s1"))
	assert.Empty(t, rec.AllSessionUsage())
}

func TestMiddlewareRecordsProviderUsage(t *testing.T) {
	rec := NewInternalRecorder()
	base := llm.WrapClient(
		func(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{
				Content: "hi",
				Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
			}, nil
		},
		func() string { return config.ModelGPT4oMini },
	)

	client := Middleware(rec, nil)(base)
	resp, err := client.Complete(context.Background(), llm.CompletionRequest{SessionID: "sess"})
	require.NoError(t, err)

	wantCost := config.EstimateCost(config.ModelGPT4oMini, 10, 20)
	assert.InDelta(t, wantCost, resp.Usage.CostUSD, 1e-12)

	usage := rec.SessionUsage("sess")
	require.NotNil(t, usage)
	assert.Equal(t, int64(10), usage.PromptTokens)
	assert.Equal(t, int64(20), usage.CompletionTokens)
	assert.InDelta(t, wantCost, usage.TotalCostUSD, 1e-12)
}

func TestMiddlewareEstimatesMissingUsage(t *testing.T) {
	rec := NewInternalRecorder()
	base := llm.WrapClient(
		func(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{Content: "a longer answer with several words"}, nil
		},
		func() string { return config.ModelGPT4oMini },
	)

	client := Middleware(rec, nil)(base)
	resp, err := client.Complete(context.Background(), llm.CompletionRequest{
		SessionID: "sess",
		Messages:  []llm.CompletionMessage{llm.NewUserMessage("hello there")},
	})
	require.NoError(t, err)

	assert.True(t, resp.Usage.Estimated)
	assert.Positive(t, resp.Usage.PromptTokens)
	assert.Positive(t, resp.Usage.CompletionTokens)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
}

func TestMiddlewarePassesErrors(t *testing.T) {
	rec := NewInternalRecorder()
	wantErr := llm.NewError(llm.ErrorTypeTransient, 503, errors.New("down"))
	base := llm.WrapClient(
		func(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
			return llm.CompletionResponse{}, wantErr
		},
		func() string { return "stub" },
	)

	client := Middleware(rec, nil)(base)
	_, err := client.Complete(context.Background(), llm.CompletionRequest{SessionID: "sess"})
	assert.ErrorIs(t, err, wantErr)
	assert.Nil(t, rec.SessionUsage("sess"))
}

func TestErrorType(t *testing.T) {
	assert.Empty(t, errorType(nil))
	assert.Equal(t, "rate_limit", errorType(llm.NewError(llm.ErrorTypeRateLimit, 429, errors.New("x"))))
	assert.Equal(t, "timeout", errorType(context.DeadlineExceeded))
	assert.Equal(t, "unknown", errorType(errors.New("x")))
}
