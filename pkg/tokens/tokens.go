// Package tokens provides tiktoken-based token counting used when a
// provider response carries no usage block.
package tokens

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens for a specific model family.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter creates a counter for the given model. Claude and unknown
// models are approximated with the GPT-4 encoding.
func NewCounter(model string) (*Counter, error) {
	tikModel := tokenizer.GPT4
	if strings.HasPrefix(model, "gpt-4o") {
		tikModel = tokenizer.GPT4o
	}

	codec, err := tokenizer.ForModel(tikModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}

	return &Counter{codec: codec}, nil
}

// Count returns the number of tokens in the given text.
func (c *Counter) Count(text string) int {
	if c.codec == nil {
		// Character-based estimation (4 chars ≈ 1 token).
		return len(text) / 4
	}

	count, err := c.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}

	return count
}

// CountMessages returns an approximate token count for a chat exchange:
// per-message framing overhead plus the content tokens.
func (c *Counter) CountMessages(contents []string) int {
	total := 0
	for _, content := range contents {
		total += 4 + c.Count(content)
	}
	return total
}

// CountSimple counts tokens with GPT-4 encoding, without a Counter instance.
func CountSimple(text string) int {
	counter, err := NewCounter("gpt-4")
	if err != nil {
		return len(text) / 4
	}
	return counter.Count(text)
}
