package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cognita/internal/interfaces"
	"github.com/ternarybob/cognita/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// VectorStorage implements the VectorStorage interface for Badger.
// Records for one document are only ever replaced wholesale: callers delete
// by document before inserting a new set.
type VectorStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewVectorStorage creates a new VectorStorage instance
func NewVectorStorage(db *BadgerDB, logger arbor.ILogger) interfaces.VectorStorage {
	return &VectorStorage{
		db:     db,
		logger: logger,
	}
}

func (s *VectorStorage) InsertVectors(records []*models.VectorRecord) error {
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("vector record ID is required")
		}
		if err := s.db.Store().Insert(rec.ID, rec); err != nil {
			return fmt.Errorf("failed to insert vector record %s: %w", rec.ID, err)
		}
	}
	return nil
}

func (s *VectorStorage) DeleteByDocument(collectionID int64, documentID string) (int, error) {
	count, err := s.CountByDocument(collectionID, documentID)
	if err != nil {
		return 0, err
	}

	query := badgerhold.Where("CollectionID").Eq(collectionID).Index("CollectionID").
		And("DocumentID").Eq(documentID)
	if err := s.db.Store().DeleteMatching(&models.VectorRecord{}, query); err != nil {
		return 0, fmt.Errorf("failed to delete vectors for document %s: %w", documentID, err)
	}
	return count, nil
}

func (s *VectorStorage) DeleteByCollection(collectionID int64) (int, error) {
	count, err := s.CountByCollection(collectionID)
	if err != nil {
		return 0, err
	}

	query := badgerhold.Where("CollectionID").Eq(collectionID).Index("CollectionID")
	if err := s.db.Store().DeleteMatching(&models.VectorRecord{}, query); err != nil {
		return 0, fmt.Errorf("failed to delete vectors for collection %d: %w", collectionID, err)
	}
	return count, nil
}

func (s *VectorStorage) GetByCollection(collectionID int64) ([]*models.VectorRecord, error) {
	var records []models.VectorRecord
	query := badgerhold.Where("CollectionID").Eq(collectionID).Index("CollectionID")
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to get vectors for collection %d: %w", collectionID, err)
	}

	result := make([]*models.VectorRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *VectorStorage) CountByDocument(collectionID int64, documentID string) (int, error) {
	query := badgerhold.Where("CollectionID").Eq(collectionID).Index("CollectionID").
		And("DocumentID").Eq(documentID)
	count, err := s.db.Store().Count(&models.VectorRecord{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count vectors for document %s: %w", documentID, err)
	}
	return int(count), nil
}

func (s *VectorStorage) CountByCollection(collectionID int64) (int, error) {
	query := badgerhold.Where("CollectionID").Eq(collectionID).Index("CollectionID")
	count, err := s.db.Store().Count(&models.VectorRecord{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count vectors for collection %d: %w", collectionID, err)
	}
	return int(count), nil
}
