package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cognita/internal/common"
	"github.com/ternarybob/cognita/internal/interfaces"
	"github.com/ternarybob/cognita/internal/models"
	"github.com/ternarybob/cognita/internal/queue"
)

// Service implements the document processing pipeline. Submit records a
// document and enqueues it; ProcessMessage runs on queue workers and does the
// load, chunk, embed and index work.
type Service struct {
	config       *common.Config
	documents    interfaces.DocumentStorage
	loader       interfaces.DocumentLoader
	chunker      interfaces.Chunker
	vectorStore  interfaces.VectorService
	queueManager *queue.Manager
	eventService interfaces.EventService
	logger       arbor.ILogger
}

var _ interfaces.IngestService = (*Service)(nil)

// NewService creates a new ingest service
func NewService(
	config *common.Config,
	documents interfaces.DocumentStorage,
	loader interfaces.DocumentLoader,
	chunker interfaces.Chunker,
	vectorStore interfaces.VectorService,
	queueManager *queue.Manager,
	eventService interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		config:       config,
		documents:    documents,
		loader:       loader,
		chunker:      chunker,
		vectorStore:  vectorStore,
		queueManager: queueManager,
		eventService: eventService,
		logger:       logger,
	}
}

// Submit validates the request, saves the document as queued and enqueues a
// processing job. Re-submitting an existing document starts a fresh run.
func (s *Service) Submit(ctx context.Context, req interfaces.SubmitRequest) error {
	if req.DocumentID == "" {
		return fmt.Errorf("document ID is required")
	}
	if req.StoragePath == "" {
		return fmt.Errorf("storage path is required")
	}
	if !models.IsSupportedFileType(req.FileType) {
		return fmt.Errorf("%w: %s", models.ErrUnsupportedFileType, req.FileType)
	}

	doc := &models.Document{
		ID:           req.DocumentID,
		CollectionID: req.CollectionID,
		Filename:     req.Filename,
		StoragePath:  req.StoragePath,
		FileType:     req.FileType,
		Status:       models.StatusQueued,
		SubmittedAt:  time.Now(),
	}

	if err := s.documents.SaveDocument(doc); err != nil {
		return fmt.Errorf("failed to save document record: %w", err)
	}

	msg := models.IngestMessage{
		DocumentID:   req.DocumentID,
		CollectionID: req.CollectionID,
		StoragePath:  req.StoragePath,
		FileType:     req.FileType,
	}

	if err := s.queueManager.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue document: %w", err)
	}

	s.publishEvent(ctx, interfaces.EventDocumentQueued, doc)

	s.logger.Info().
		Str("document_id", req.DocumentID).
		Int64("collection_id", req.CollectionID).
		Str("file_type", req.FileType).
		Msg("Document submitted for processing")

	return nil
}

// Status returns the current processing state of a document.
func (s *Service) Status(ctx context.Context, documentID string) (*interfaces.DocumentStatusInfo, error) {
	doc, err := s.documents.GetDocument(documentID)
	if err != nil {
		return nil, err
	}

	return &interfaces.DocumentStatusInfo{
		DocumentID:   doc.ID,
		Status:       doc.Status,
		ChunkCount:   doc.ChunkCount,
		ErrorMessage: doc.ErrorMessage,
	}, nil
}

// DeleteCollectionVectors removes every vector in a collection.
func (s *Service) DeleteCollectionVectors(ctx context.Context, collectionID int64) error {
	if err := s.vectorStore.DeleteCollection(ctx, collectionID); err != nil {
		return err
	}

	s.publishEvent(ctx, interfaces.EventCollectionPurged, map[string]interface{}{
		"collection_id": collectionID,
	})

	return nil
}

// ProcessMessage is the queue worker handler. It runs the full pipeline for
// one document and records the outcome on the document record. Returning nil
// acknowledges the message; failures are recorded on the document rather than
// retried through redelivery.
func (s *Service) ProcessMessage(ctx context.Context, msg *models.IngestMessage) error {
	doc, err := s.documents.GetDocument(msg.DocumentID)
	if err != nil {
		// Record gone, nothing to update. Drop the message.
		s.logger.Warn().
			Str("document_id", msg.DocumentID).
			Err(err).
			Msg("Queued document no longer exists")
		return nil
	}

	now := time.Now()
	doc.Status = models.StatusProcessing
	doc.StartedAt = &now
	doc.ErrorMessage = ""
	if err := s.documents.SaveDocument(doc); err != nil {
		return fmt.Errorf("failed to mark document processing: %w", err)
	}

	chunkCount, err := s.processDocument(ctx, doc, msg)
	if err != nil {
		s.recordFailure(ctx, doc, err)
		return nil
	}

	completed := time.Now()
	doc.Status = models.StatusCompleted
	doc.ChunkCount = chunkCount
	doc.CompletedAt = &completed
	if err := s.documents.SaveDocument(doc); err != nil {
		return fmt.Errorf("failed to mark document completed: %w", err)
	}

	s.publishEvent(ctx, interfaces.EventDocumentCompleted, doc)

	s.logger.Info().
		Str("document_id", doc.ID).
		Int64("collection_id", doc.CollectionID).
		Int("chunks", chunkCount).
		Dur("duration", completed.Sub(now)).
		Msg("Document processing completed")

	return nil
}

// processDocument runs load, chunk, embed and index for one document and
// returns the number of chunks written. Any previous vectors for the document
// are purged first so a re-run never duplicates.
func (s *Service) processDocument(ctx context.Context, doc *models.Document, msg *models.IngestMessage) (int, error) {
	if err := s.vectorStore.DeleteDocument(ctx, msg.CollectionID, msg.DocumentID); err != nil {
		return 0, models.NewProcessingError("index", err)
	}

	segments, err := s.loader.Load(msg.StoragePath, msg.FileType)
	if err != nil {
		return 0, models.NewProcessingError("load", err)
	}

	chunks := s.chunker.Split(segments, msg.DocumentID)
	if len(chunks) == 0 {
		// Readable file with no extractable text. Completed, zero chunks.
		return 0, nil
	}

	written, err := s.vectorStore.AddDocuments(ctx, msg.CollectionID, msg.DocumentID, chunks)
	if err != nil {
		return 0, models.NewProcessingError("index", err)
	}

	return written, nil
}

// recordFailure rolls back partial vectors and marks the document failed with
// a truncated error message.
func (s *Service) recordFailure(ctx context.Context, doc *models.Document, procErr error) {
	if err := s.vectorStore.DeleteDocument(ctx, doc.CollectionID, doc.ID); err != nil {
		s.logger.Error().
			Err(err).
			Str("document_id", doc.ID).
			Msg("Failed to roll back partial vectors")
	}

	completed := time.Now()
	doc.Status = models.StatusFailed
	doc.ChunkCount = 0
	doc.ErrorMessage = truncateError(procErr.Error(), s.config.Ingest.ErrorMaxLen)
	doc.CompletedAt = &completed

	if err := s.documents.SaveDocument(doc); err != nil {
		s.logger.Error().
			Err(err).
			Str("document_id", doc.ID).
			Msg("Failed to mark document failed")
		return
	}

	s.publishEvent(ctx, interfaces.EventDocumentFailed, doc)

	s.logger.Warn().
		Str("document_id", doc.ID).
		Int64("collection_id", doc.CollectionID).
		Str("error", doc.ErrorMessage).
		Msg("Document processing failed")
}

func (s *Service) publishEvent(ctx context.Context, eventType interfaces.EventType, payload interface{}) {
	if s.eventService == nil {
		return
	}
	if err := s.eventService.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event", string(eventType)).Msg("Failed to publish event")
	}
}

func truncateError(msg string, maxLen int) string {
	if maxLen <= 0 {
		return msg
	}
	runes := []rune(msg)
	if len(runes) <= maxLen {
		return msg
	}
	return string(runes[:maxLen])
}
