// services/provider_factory.go
package services

import (
	"fmt"
	"strings"

	"github.com/visibly-ai/visibly-workflows/internal/config"
)

// Default model per provider family
const (
	defaultOpenAIModel     = "gpt-4.1"
	defaultAnthropicModel  = "claude-sonnet-4-20250514"
	defaultPerplexityModel = "sonar"
)

// NewProvider builds the adapter for a provider name stored in the database.
// Matching is by substring so model-flavored names ("openai-gpt-4.1") map to
// the right family.
func NewProvider(name string, cfg *config.Config, costService CostService) (AIProvider, error) {
	lower := strings.ToLower(name)

	switch {
	case strings.Contains(lower, "openai") || strings.Contains(lower, "gpt"):
		return NewOpenAIProvider(cfg, defaultOpenAIModel, costService), nil
	case strings.Contains(lower, "anthropic") || strings.Contains(lower, "claude"):
		return NewAnthropicProvider(cfg, defaultAnthropicModel, costService), nil
	case strings.Contains(lower, "perplexity") || strings.Contains(lower, "sonar"):
		return NewPerplexityProvider(cfg, defaultPerplexityModel, costService), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", name)
	}
}
