package config

// Provider identifies which transport implementation serves a model.
type Provider string

const (
	// ProviderOpenAI routes requests through the OpenAI API.
	ProviderOpenAI Provider = "openai"
	// ProviderAnthropic routes requests through the Anthropic API.
	ProviderAnthropic Provider = "anthropic"
)

// Model name constants for the models this service knows how to price.
const (
	ModelGPT4oMini    = "gpt-4o-mini"
	ModelGPT4o        = "gpt-4o"
	ModelGPT4         = "gpt-4"
	ModelGPT35Turbo   = "gpt-3.5-turbo"
	ModelClaudeSonnet = "claude-sonnet-4-0"
	ModelClaudeHaiku  = "claude-3-5-haiku-latest"
)

// ModelInfo describes pricing and limits for a known model.
type ModelInfo struct {
	Provider        Provider
	InputCostPer1K  float64 // USD per 1K prompt tokens
	OutputCostPer1K float64 // USD per 1K completion tokens
	MaxOutputTokens int
}

// KnownModels is the static per-model token price table. Unknown models
// are allowed but priced at zero.
//
//nolint:gochecknoglobals // Static lookup table
var KnownModels = map[string]ModelInfo{
	ModelGPT4oMini:    {Provider: ProviderOpenAI, InputCostPer1K: 0.00015, OutputCostPer1K: 0.0006, MaxOutputTokens: 16384},
	ModelGPT4o:        {Provider: ProviderOpenAI, InputCostPer1K: 0.005, OutputCostPer1K: 0.015, MaxOutputTokens: 16384},
	ModelGPT4:         {Provider: ProviderOpenAI, InputCostPer1K: 0.03, OutputCostPer1K: 0.06, MaxOutputTokens: 8192},
	ModelGPT35Turbo:   {Provider: ProviderOpenAI, InputCostPer1K: 0.0015, OutputCostPer1K: 0.002, MaxOutputTokens: 4096},
	ModelClaudeSonnet: {Provider: ProviderAnthropic, InputCostPer1K: 0.003, OutputCostPer1K: 0.015, MaxOutputTokens: 64000},
	ModelClaudeHaiku:  {Provider: ProviderAnthropic, InputCostPer1K: 0.0008, OutputCostPer1K: 0.004, MaxOutputTokens: 8192},
}

// ProviderFor returns the provider serving the given model. Unknown models
// default to OpenAI, matching the service's historical behavior.
func ProviderFor(model string) Provider {
	if info, ok := KnownModels[model]; ok {
		return info.Provider
	}
	return ProviderOpenAI
}

// EstimateCost computes the estimated USD cost of a request from token
// counts using the static price table. Unknown models cost zero.
func EstimateCost(model string, promptTokens, completionTokens int) float64 {
	info, ok := KnownModels[model]
	if !ok {
		return 0
	}
	inputCost := float64(promptTokens) / 1000 * info.InputCostPer1K
	outputCost := float64(completionTokens) / 1000 * info.OutputCostPer1K
	return inputCost + outputCost
}
