package llm

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/cognita/internal/common"
	"github.com/ternarybob/cognita/internal/interfaces"
)

// CloudService implements LLMService against the cloud providers: chat via
// the provider factory (Gemini or Claude by model string), embeddings always
// via Gemini. Upstream calls go through per-operation rate limiters sized
// from config.
type CloudService struct {
	factory      *ProviderFactory
	config       *common.Config
	chatLimiter  *rate.Limiter
	embedLimiter *rate.Limiter
	timeout      time.Duration
	logger       arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.LLMService = (*CloudService)(nil)

// NewCloudService creates a cloud-backed LLM service
func NewCloudService(config *common.Config, logger arbor.ILogger) *CloudService {
	factory := NewProviderFactory(&config.Gemini, &config.Claude, &config.LLM, logger)

	chatInterval := parseDurationOr(config.Gemini.RateLimit, 4*time.Second)
	if config.LLM.DefaultProvider == common.LLMProviderClaude {
		chatInterval = parseDurationOr(config.Claude.RateLimit, time.Second)
	}
	embedInterval := parseDurationOr(config.Gemini.RateLimit, 4*time.Second)
	timeout := parseDurationOr(config.Gemini.Timeout, 5*time.Minute)

	return &CloudService{
		factory:      factory,
		config:       config,
		chatLimiter:  rate.NewLimiter(rate.Every(chatInterval), 1),
		embedLimiter: rate.NewLimiter(rate.Every(embedInterval), 1),
		timeout:      timeout,
		logger:       logger,
	}
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return fallback
}

// Embed generates an embedding for one text via the Gemini embedding model.
func (s *CloudService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for the texts, preserving order.
func (s *CloudService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.embedLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.factory.embedWithGemini(ctx, s.config.Embedding.Model, s.config.Embedding.Dimension, texts)
}

// Dimension returns the configured embedding vector size.
func (s *CloudService) Dimension() int {
	return s.config.Embedding.Dimension
}

// Chat generates a buffered completion using the default provider.
func (s *CloudService) Chat(ctx context.Context, messages []interfaces.Message) (*interfaces.ChatResult, error) {
	if err := s.chatLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.factory.GenerateContent(ctx, &ContentRequest{Messages: messages})
	if err != nil {
		return nil, err
	}

	return &interfaces.ChatResult{
		Text:             resp.Text,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
	}, nil
}

// SupportsStreaming is true for both cloud providers.
func (s *CloudService) SupportsStreaming() bool {
	return true
}

// ChatStream generates a completion incrementally via the provider's native
// stream. The returned channel carries deltas and exactly one final event.
func (s *CloudService) ChatStream(ctx context.Context, messages []interfaces.Message) (<-chan interfaces.StreamEvent, error) {
	if err := s.chatLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	events := make(chan interfaces.StreamEvent)

	go func() {
		defer close(events)

		streamCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := s.factory.GenerateContentStream(streamCtx, &ContentRequest{Messages: messages}, func(delta string) error {
			select {
			case events <- interfaces.StreamEvent{Delta: delta}:
				return nil
			case <-streamCtx.Done():
				return streamCtx.Err()
			}
		})
		if err != nil {
			select {
			case events <- interfaces.StreamEvent{Err: err}:
			case <-ctx.Done():
			}
			return
		}

		result := &interfaces.ChatResult{
			Text:             resp.Text,
			PromptTokens:     resp.PromptTokens,
			CompletionTokens: resp.CompletionTokens,
		}
		select {
		case events <- interfaces.StreamEvent{Result: result}:
		case <-ctx.Done():
		}
	}()

	return events, nil
}

// GetMode returns LLMModeCloud.
func (s *CloudService) GetMode() interfaces.LLMMode {
	return interfaces.LLMModeCloud
}

// HealthCheck verifies client construction; it does not spend quota.
func (s *CloudService) HealthCheck(ctx context.Context) error {
	_, err := s.factory.GetGeminiClient(ctx)
	return err
}

// Close releases provider clients.
func (s *CloudService) Close() error {
	return s.factory.Close()
}
