package interfaces

import "github.com/ternarybob/cognita/internal/models"

// Chunker splits extracted text into retrieval-sized pieces. Splitting is
// deterministic: the same segments always produce the same chunks.
type Chunker interface {
	// Split produces ordered chunks with contiguous 0-based indexes across
	// the whole document. Empty or whitespace-only input yields zero chunks
	// and no error.
	Split(segments []models.Segment, documentID string) []models.Chunk
}
