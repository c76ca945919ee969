// Package config provides configuration loading and validation for the simulation service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the config file nor environment set a value.
const (
	DefaultModel             = ModelGPT4oMini
	DefaultMaxTurns          = 30
	DefaultTimeoutSec        = 90
	DefaultConcurrency       = 4
	DefaultRequestsPerSecond = 200.0
	DefaultMaxAttempts       = 3
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 5000
)

// Config holds all runtime settings for the simulation service.
type Config struct {
	// API credentials. One of the two must be set for the configured model's provider.
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	// Model used for agent, client and evaluator completions.
	Model string `yaml:"model"`

	// Conversation limits.
	MaxTurns   int `yaml:"max_turns"`
	TimeoutSec int `yaml:"timeout_sec"`

	// Batch execution.
	Concurrency int `yaml:"concurrency"`

	// Resilient client settings.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxAttempts       int     `yaml:"max_attempts"`

	// Session initialization webhook. Empty means local UUID generation.
	WebhookURL string `yaml:"webhook_url"`

	// Directory layout.
	PromptsDir string `yaml:"prompts_dir"`
	ResultsDir string `yaml:"results_dir"`
	LogsDir    string `yaml:"logs_dir"`

	// HTTP server.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Default returns a config populated with default values.
func Default() *Config {
	return &Config{
		Model:             DefaultModel,
		MaxTurns:          DefaultMaxTurns,
		TimeoutSec:        DefaultTimeoutSec,
		Concurrency:       DefaultConcurrency,
		RequestsPerSecond: DefaultRequestsPerSecond,
		MaxAttempts:       DefaultMaxAttempts,
		PromptsDir:        "prompts",
		ResultsDir:        "results",
		LogsDir:           "logs",
		Host:              DefaultHost,
		Port:              DefaultPort,
	}
}

// Load reads configuration from an optional YAML file and applies
// environment overrides on top. A missing file is not an error; the
// defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Fall through to env-only configuration.
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides config fields from environment variables.
func (c *Config) applyEnv() {
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&c.Model, "OPENAI_MODEL")
	setString(&c.Model, "MODEL")
	setInt(&c.MaxTurns, "MAX_TURNS")
	setInt(&c.TimeoutSec, "TIMEOUT_SEC")
	setInt(&c.Concurrency, "CONCURRENCY")
	setFloat(&c.RequestsPerSecond, "REQUESTS_PER_SECOND")
	setInt(&c.MaxAttempts, "MAX_ATTEMPTS")
	setString(&c.WebhookURL, "WEBHOOK_URL")
	setString(&c.PromptsDir, "PROMPTS_DIR")
	setString(&c.ResultsDir, "RESULTS_DIR")
	setString(&c.LogsDir, "LOGS_DIR")
	setString(&c.Host, "HOST")
	setInt(&c.Port, "PORT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Model == "" {
		return errors.New("model must not be empty")
	}

	switch ProviderFor(c.Model) {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for model " + c.Model)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return errors.New("ANTHROPIC_API_KEY is required for model " + c.Model)
		}
	}

	if c.MaxTurns <= 0 {
		return fmt.Errorf("max_turns must be positive, got %d", c.MaxTurns)
	}
	if c.TimeoutSec <= 0 {
		return fmt.Errorf("timeout_sec must be positive, got %d", c.TimeoutSec)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive, got %f", c.RequestsPerSecond)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}

	return nil
}

// EnsureDirectories creates the results and logs directories if missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.ResultsDir, c.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// PromptPath returns the path of a named prompt template file.
func (c *Config) PromptPath(name string) string {
	return filepath.Join(c.PromptsDir, name+".txt")
}
