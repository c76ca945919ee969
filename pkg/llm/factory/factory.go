// Package factory assembles provider clients with the full middleware
// chain from configuration.
package factory

import (
	"fmt"
	"time"

	"simulator/pkg/config"
	"simulator/pkg/llm"
	"simulator/pkg/llm/anthropic"
	"simulator/pkg/llm/middleware/metrics"
	"simulator/pkg/llm/middleware/ratelimit"
	"simulator/pkg/llm/middleware/retry"
	"simulator/pkg/llm/openai"
	"simulator/pkg/logx"
)

// NewClient builds the client for the configured model: provider
// adapter wrapped in rate limiting, retry and metrics middleware.
// Middleware order is metrics -> retry -> ratelimit -> provider, so
// every retry attempt waits for rate limiter admission and metrics see
// the final outcome only.
func NewClient(cfg *config.Config, recorder metrics.Recorder) (llm.Client, error) {
	provider := config.ProviderFor(cfg.Model)

	var raw llm.Client
	switch provider {
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("model %s requires OPENAI_API_KEY", cfg.Model)
		}
		raw = openai.NewClient(cfg.OpenAIAPIKey, cfg.Model)
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("model %s requires ANTHROPIC_API_KEY", cfg.Model)
		}
		raw = anthropic.NewClient(cfg.AnthropicAPIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	retryConfig := retry.DefaultConfig
	if cfg.MaxAttempts > 0 {
		retryConfig.MaxAttempts = cfg.MaxAttempts
	}
	policy := retry.NewPolicy(retryConfig, nil)

	if recorder == nil {
		recorder = metrics.Nop()
	}

	return llm.Chain(raw,
		metrics.Middleware(recorder, logx.NewLogger("llm")),
		retry.Middleware(policy),
		ratelimit.Middleware(ratelimit.NewLimiter(cfg.RequestsPerSecond)),
	), nil
}

// Timeout returns the per-conversation deadline from configuration.
func Timeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.TimeoutSec) * time.Second
}
