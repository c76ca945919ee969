package retry

import (
	"context"
	"fmt"
	"time"

	"simulator/pkg/llm"
	"simulator/pkg/logx"
)

// Middleware wraps a client with retry logic. Failed requests are
// retried per the policy with exponential backoff between attempts.
func Middleware(policy *Policy) llm.Middleware {
	logger := logx.NewLogger("retry")

	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				var lastErr error

				for attempt := 1; attempt <= policy.Config.MaxAttempts; attempt++ {
					if attempt > 1 {
						delay := policy.CalculateDelay(attempt)
						logger.Warn("attempt %d/%d for session %s after %v: %v",
							attempt, policy.Config.MaxAttempts, req.SessionID, delay, lastErr)
						if delay > 0 {
							select {
							case <-ctx.Done():
								return llm.CompletionResponse{}, fmt.Errorf("retry cancelled: %w", ctx.Err())
							case <-time.After(delay):
							}
						}
					}

					resp, err := next.Complete(ctx, req)
					if err == nil {
						return resp, nil
					}

					lastErr = err
					if !policy.ShouldRetry(err) {
						return llm.CompletionResponse{}, err
					}
				}

				return llm.CompletionResponse{}, fmt.Errorf("completion failed after %d attempts: %w",
					policy.Config.MaxAttempts, lastErr)
			},
			next.ModelName,
		)
	}
}
