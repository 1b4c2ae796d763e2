package interfaces

import (
	"context"

	"github.com/ternarybob/cognita/internal/models"
)

// QueryRequest is a question asked against one or more collections.
// TopK <= 0 means use the configured default.
type QueryRequest struct {
	CollectionIDs []int64 `json:"collection_ids"`
	Question      string  `json:"question"`
	TopK          int     `json:"top_k"`
}

// RAGService answers questions grounded in retrieved collection content.
type RAGService interface {
	// Query runs retrieval and buffered generation. A query over empty or
	// unpopulated collections still returns a non-error answer with zero
	// sources.
	Query(ctx context.Context, req QueryRequest) (*models.Answer, error)

	// StreamQuery runs the same pipeline incrementally. A non-nil error from
	// the call itself is a synchronous input failure and no channel is
	// returned. Otherwise the channel carries a sources event first, then
	// token events, then exactly one done or error event, and closes.
	// Cancelling ctx stops generation and closes the channel.
	StreamQuery(ctx context.Context, req QueryRequest) (<-chan models.QueryEvent, error)
}
