package interfaces

import (
	"context"

	"github.com/ternarybob/cognita/internal/models"
)

// VectorService manages embedded chunks partitioned by collection. Writes to
// one collection are serialized; reads and writes to different collections
// proceed independently. Search never crosses collection boundaries.
type VectorService interface {
	// AddDocuments embeds the chunks and inserts one record per chunk into
	// the collection's partition. Returns the number of records written.
	AddDocuments(ctx context.Context, collectionID int64, documentID string, chunks []models.Chunk) (int, error)

	// DeleteDocument removes every record for the document from the
	// collection. Deleting an absent document is not an error.
	DeleteDocument(ctx context.Context, collectionID int64, documentID string) error

	// DeleteCollection removes the collection's entire partition. Idempotent.
	DeleteCollection(ctx context.Context, collectionID int64) error

	// Search embeds the query and returns up to limit chunks from the
	// collection ordered by ascending raw distance.
	Search(ctx context.Context, collectionID int64, query string, limit int) ([]models.ScoredChunk, error)

	// CountDocumentVectors returns the number of stored records for a
	// document within a collection.
	CountDocumentVectors(ctx context.Context, collectionID int64, documentID string) (int, error)
}
