package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cognita/internal/interfaces"
	"github.com/ternarybob/cognita/internal/models"
)

// Service implements EmbeddingService on top of the configured LLM provider.
type Service struct {
	llmService interfaces.LLMService
	model      string
	dimension  int
	logger     arbor.ILogger
}

var _ interfaces.EmbeddingService = (*Service)(nil)

// NewService creates a new embedding service
func NewService(llmService interfaces.LLMService, model string, dimension int, logger arbor.ILogger) interfaces.EmbeddingService {
	return &Service{
		llmService: llmService,
		model:      model,
		dimension:  dimension,
		logger:     logger,
	}
}

// GenerateEmbedding creates a vector embedding for text
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	start := time.Now()
	embedding, err := s.llmService.Embed(ctx, text)
	duration := time.Since(start)

	mode := s.llmService.GetMode()
	if err != nil {
		return nil, &models.EmbeddingError{Provider: string(mode), Err: err}
	}

	if len(embedding) == 0 {
		return nil, &models.EmbeddingError{Provider: string(mode), Err: fmt.Errorf("provider returned empty embedding")}
	}

	s.logger.Debug().
		Str("mode", string(mode)).
		Int("embedding_dim", len(embedding)).
		Dur("duration", duration).
		Msg("Generated embedding")

	return embedding, nil
}

// GenerateEmbeddings creates embeddings for a batch of texts, preserving order.
func (s *Service) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("text at index %d is empty", i)
		}
	}

	start := time.Now()
	embeddings, err := s.llmService.EmbedBatch(ctx, texts)
	duration := time.Since(start)

	mode := s.llmService.GetMode()
	if err != nil {
		return nil, &models.EmbeddingError{Provider: string(mode), Err: err}
	}

	if len(embeddings) != len(texts) {
		return nil, &models.EmbeddingError{
			Provider: string(mode),
			Err:      fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings)),
		}
	}

	s.logger.Debug().
		Str("mode", string(mode)).
		Int("count", len(embeddings)).
		Dur("duration", duration).
		Msg("Generated embedding batch")

	return embeddings, nil
}

// GenerateQueryEmbedding generates embedding for a search query
func (s *Service) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	// Queries go through the same model as documents so distances are comparable.
	return s.GenerateEmbedding(ctx, query)
}

// ModelName returns the embedding model name
func (s *Service) ModelName() string {
	return s.model
}

// Dimension returns the embedding dimension
func (s *Service) Dimension() int {
	return s.dimension
}

// IsAvailable checks if the embedding service is available
func (s *Service) IsAvailable(ctx context.Context) bool {
	if s.llmService == nil {
		return false
	}

	err := s.llmService.HealthCheck(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("LLM service not available")
		return false
	}

	return true
}
