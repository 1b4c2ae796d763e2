package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cognita/internal/interfaces"
	"github.com/ternarybob/cognita/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DocumentStorage implements the DocumentStorage interface for Badger
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) SaveDocument(doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if doc.SubmittedAt.IsZero() {
		doc.SubmittedAt = time.Now()
	}

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetDocument(id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.Store().Get(id, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStorage) DeleteDocument(id string) error {
	if err := s.db.Store().Delete(id, &models.Document{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetDocumentsByCollection(collectionID int64) ([]*models.Document, error) {
	var docs []models.Document
	if err := s.db.Store().Find(&docs, badgerhold.Where("CollectionID").Eq(collectionID).Index("CollectionID")); err != nil {
		return nil, fmt.Errorf("failed to get documents by collection: %w", err)
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStorage) GetDocumentsByStatus(status models.DocumentStatus) ([]*models.Document, error) {
	var docs []models.Document
	if err := s.db.Store().Find(&docs, badgerhold.Where("Status").Eq(status)); err != nil {
		return nil, fmt.Errorf("failed to get documents by status: %w", err)
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStorage) GetStaleProcessing(cutoff time.Time) ([]*models.Document, error) {
	docs, err := s.GetDocumentsByStatus(models.StatusProcessing)
	if err != nil {
		return nil, err
	}

	// StartedAt is a pointer field, filter in memory rather than in the query
	stale := make([]*models.Document, 0)
	for _, doc := range docs {
		if doc.StartedAt != nil && doc.StartedAt.Before(cutoff) {
			stale = append(stale, doc)
		}
	}
	return stale, nil
}

func (s *DocumentStorage) CountDocuments() (int, error) {
	count, err := s.db.Store().Count(&models.Document{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(count), nil
}

func (s *DocumentStorage) CountDocumentsByCollection(collectionID int64) (int, error) {
	count, err := s.db.Store().Count(&models.Document{}, badgerhold.Where("CollectionID").Eq(collectionID).Index("CollectionID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count documents by collection: %w", err)
	}
	return int(count), nil
}
