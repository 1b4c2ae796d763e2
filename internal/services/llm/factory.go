package llm

import (
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cognita/internal/common"
	"github.com/ternarybob/cognita/internal/interfaces"
)

// placeholderKeys are credential values that mean "no real key". Seeing one
// switches the service into offline mode instead of failing calls later.
var placeholderKeys = map[string]bool{
	"":            true,
	"changeme":    true,
	"offline":     true,
	"placeholder": true,
	"test":        true,
}

// IsPlaceholderCredential reports whether an API key value is a recognized
// stand-in rather than a real credential.
func IsPlaceholderCredential(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if placeholderKeys[key] {
		return true
	}
	// Config templates ship values like "your-gemini-api-key"
	return strings.HasPrefix(key, "your-")
}

// NewService builds the LLM service for the given configuration. Embeddings
// always come from Gemini, so a placeholder Gemini key selects offline mode
// for the whole service regardless of the chat provider.
func NewService(config *common.Config, logger arbor.ILogger) interfaces.LLMService {
	if IsPlaceholderCredential(config.Gemini.APIKey) {
		logger.Warn().
			Str("mode", string(interfaces.LLMModeOffline)).
			Msg("No usable Gemini API key configured, running LLM service in offline mode")
		return NewOfflineService(config.Embedding.Dimension, logger)
	}

	if config.LLM.DefaultProvider == common.LLMProviderClaude && IsPlaceholderCredential(config.Claude.APIKey) {
		logger.Warn().Msg("Claude selected as default provider without a usable key, chat will use Gemini")
		config.LLM.DefaultProvider = common.LLMProviderGemini
	}

	logger.Info().
		Str("mode", string(interfaces.LLMModeCloud)).
		Str("default_provider", string(config.LLM.DefaultProvider)).
		Str("embedding_model", config.Embedding.Model).
		Msg("LLM service initialized")

	return NewCloudService(config, logger)
}
