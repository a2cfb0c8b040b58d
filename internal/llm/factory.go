package llm

import (
	"fmt"
	"strings"
)

// NewProvider builds the configured provider. "claude" is accepted as an
// alias for anthropic.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "openai":
		return NewOpenAIProvider(config)
	case "anthropic", "claude":
		return NewAnthropicProvider(config)
	case "ollama":
		return NewOllamaProvider(config)
	}
	return nil, fmt.Errorf("unknown LLM provider %q (supported: openai, anthropic, ollama)", config.Provider)
}
