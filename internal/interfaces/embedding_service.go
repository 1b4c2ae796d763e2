package interfaces

import (
	"context"
)

// EmbeddingService generates vector embeddings
type EmbeddingService interface {
	// Generate embedding for raw text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// Generate embeddings for multiple texts, preserving input order
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// Generate query embedding (may have different prompt than document embedding)
	GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error)

	// Get model information
	ModelName() string
	Dimension() int

	// Check if service is available
	IsAvailable(ctx context.Context) bool
}
