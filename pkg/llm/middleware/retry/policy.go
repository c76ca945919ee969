// Package retry provides retry middleware with exponential backoff for
// resilient completion calls.
package retry

import (
	"math"
	"math/rand"
	"time"

	"simulator/pkg/llm"
)

// Config defines retry behavior.
type Config struct {
	MaxAttempts   int           `json:"max_attempts"`   // total attempts including the initial one
	InitialDelay  time.Duration `json:"initial_delay"`  // delay before the first retry
	MaxDelay      time.Duration `json:"max_delay"`      // cap on the backoff delay
	BackoffFactor float64       `json:"backoff_factor"` // multiplier for exponential backoff
	Jitter        bool          `json:"jitter"`         // add up to 1s of random jitter
}

// DefaultConfig provides reasonable defaults for retry behavior.
//
//nolint:gochecknoglobals // sensible default config pattern
var DefaultConfig = Config{
	MaxAttempts:   3,
	InitialDelay:  2 * time.Second,
	MaxDelay:      60 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

// Classifier determines if an error should be retried.
type Classifier func(error) bool

// Policy encapsulates retry configuration and logic.
type Policy struct {
	Config     Config
	Classifier Classifier
}

// NewPolicy creates a retry policy. A nil classifier falls back to
// llm.IsRetryable.
func NewPolicy(config Config, classifier Classifier) *Policy {
	if classifier == nil {
		classifier = llm.IsRetryable
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultConfig.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultConfig.MaxDelay
	}
	if config.BackoffFactor <= 0 {
		config.BackoffFactor = DefaultConfig.BackoffFactor
	}
	return &Policy{Config: config, Classifier: classifier}
}

// CalculateDelay computes the backoff delay before the given attempt.
// Attempt 1 is the initial request and never waits.
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delay := time.Duration(float64(p.Config.InitialDelay) * math.Pow(p.Config.BackoffFactor, float64(attempt-2)))
	if delay > p.Config.MaxDelay {
		delay = p.Config.MaxDelay
	}

	if p.Config.Jitter {
		delay += time.Duration(rand.Float64() * float64(time.Second))
	}

	return delay
}

// ShouldRetry determines if an error should be retried.
func (p *Policy) ShouldRetry(err error) bool {
	return p.Classifier(err)
}
