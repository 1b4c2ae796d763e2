package interfaces

import (
	"context"

	"github.com/ternarybob/cognita/internal/models"
)

// SubmitRequest describes one document to process. The file is already on
// disk at StoragePath; FileType is the declared tag, not a sniffed one.
type SubmitRequest struct {
	DocumentID   string
	CollectionID int64
	Filename     string
	StoragePath  string
	FileType     string
}

// DocumentStatusInfo is the externally visible processing state of a document.
type DocumentStatusInfo struct {
	DocumentID   string                `json:"document_id"`
	Status       models.DocumentStatus `json:"status"`
	ChunkCount   int                   `json:"chunk_count"`
	ErrorMessage string                `json:"error_message,omitempty"`
}

// IngestService owns the document processing pipeline: submission, background
// load/chunk/embed/index, status tracking and vector cleanup.
type IngestService interface {
	// Submit validates the request, records the document as queued and
	// enqueues a processing job. Returns quickly; processing is asynchronous.
	// Re-submitting a completed or failed document starts a fresh run that
	// replaces its previous vectors.
	Submit(ctx context.Context, req SubmitRequest) error

	// Status returns the current processing state of a document.
	// Returns models.ErrDocumentNotFound for unknown IDs.
	Status(ctx context.Context, documentID string) (*DocumentStatusInfo, error)

	// DeleteCollectionVectors removes every vector in a collection,
	// typically when the collection itself is deleted. Idempotent.
	DeleteCollectionVectors(ctx context.Context, collectionID int64) error
}
