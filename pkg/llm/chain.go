package llm

import (
	"context"
)

// Middleware wraps a Client with additional behavior. Middleware
// functions are composed with Chain to form a processing pipeline.
type Middleware func(next Client) Client

// clientFunc adapts plain functions to the Client interface.
type clientFunc struct {
	complete  func(context.Context, CompletionRequest) (CompletionResponse, error)
	modelName func() string
}

func (f clientFunc) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return f.complete(ctx, req)
}

func (f clientFunc) ModelName() string {
	return f.modelName()
}

// WrapClient creates a Client from the provided function implementations.
// Helper for middleware implementations that wrap behavior.
func WrapClient(
	complete func(context.Context, CompletionRequest) (CompletionResponse, error),
	modelName func() string,
) Client {
	return clientFunc{complete: complete, modelName: modelName}
}

// Chain composes middlewares around a base Client. Middlewares are
// applied in order, with earlier middlewares outermost:
//
//	Chain(client, mw1, mw2, mw3) builds mw1 -> mw2 -> mw3 -> client
//
// so mw1 runs first and may modify the request or short-circuit before
// it reaches the base client.
func Chain(base Client, middlewares ...Middleware) Client {
	client := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		client = middlewares[i](client)
	}
	return client
}
