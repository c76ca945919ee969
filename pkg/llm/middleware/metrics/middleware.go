package metrics

import (
	"context"
	"errors"
	"time"

	"simulator/pkg/config"
	"simulator/pkg/llm"
	"simulator/pkg/logx"
	"simulator/pkg/tokens"
)

// Middleware records usage, cost and latency for every completion and
// fills in Usage when the provider response carried none. Cost is
// estimated from the model price table.
func Middleware(recorder Recorder, logger *logx.Logger) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				model := req.Model
				if model == "" {
					model = next.ModelName()
				}

				if err == nil {
					if resp.Usage.TotalTokens == 0 {
						resp.Usage = estimateUsage(model, req, resp)
					}
					if resp.Usage.CostUSD == 0 {
						resp.Usage.CostUSD = config.EstimateCost(model,
							resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
					}
				}

				recorder.ObserveRequest(
					model,
					req.SessionID,
					resp.Usage.PromptTokens,
					resp.Usage.CompletionTokens,
					resp.Usage.CostUSD,
					err == nil,
					errorType(err),
					duration,
				)

				if logger != nil && err == nil {
					logger.Debug("completion: model=%s session=%s tokens=%d+%d cost=$%.6f duration=%dms",
						model, req.SessionID, resp.Usage.PromptTokens, resp.Usage.CompletionTokens,
						resp.Usage.CostUSD, duration.Milliseconds())
				}

				return resp, err //nolint:wrapcheck // middleware passes errors through unchanged
			},
			next.ModelName,
		)
	}
}

// estimateUsage counts tokens locally when the provider reported none.
func estimateUsage(model string, req llm.CompletionRequest, resp llm.CompletionResponse) llm.Usage {
	counter, err := tokens.NewCounter(model)
	if err != nil {
		return llm.Usage{}
	}

	contents := make([]string, 0, len(req.Messages))
	for i := range req.Messages {
		contents = append(contents, req.Messages[i].Content)
	}

	usage := llm.Usage{
		PromptTokens:     counter.CountMessages(contents),
		CompletionTokens: counter.Count(resp.Content),
		Estimated:        true,
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	return usage
}

func errorType(err error) string {
	if err == nil {
		return ""
	}

	var lerr *llm.Error
	switch {
	case errors.As(err, &lerr):
		return lerr.Type.String()
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}
