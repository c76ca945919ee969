// Package ratelimit throttles outgoing completion requests so bursts of
// concurrent sessions stay under the provider's request budget.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"simulator/pkg/llm"
)

// NewLimiter creates a token-bucket limiter for the given sustained
// request rate. Burst allows a short spike of up to one second of
// traffic.
func NewLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Middleware wraps a client so every request waits for a limiter token
// first. The limiter is shared: pass the same instance to every chain
// that talks to the same provider.
func Middleware(limiter *rate.Limiter) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if err := limiter.Wait(ctx); err != nil {
					return llm.CompletionResponse{}, fmt.Errorf("rate limit wait: %w", err)
				}
				return next.Complete(ctx, req)
			},
			next.ModelName,
		)
	}
}
