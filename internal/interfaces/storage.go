package interfaces

import (
	"time"

	"github.com/ternarybob/cognita/internal/models"
)

// DocumentStorage - interface for document record persistence
type DocumentStorage interface {
	// CRUD operations
	SaveDocument(doc *models.Document) error
	GetDocument(id string) (*models.Document, error)
	DeleteDocument(id string) error

	// List operations
	GetDocumentsByCollection(collectionID int64) ([]*models.Document, error)
	GetDocumentsByStatus(status models.DocumentStatus) ([]*models.Document, error)

	// GetStaleProcessing returns documents that entered processing before
	// the cutoff, used by the requeue sweep after a crash.
	GetStaleProcessing(cutoff time.Time) ([]*models.Document, error)

	// Stats operations
	CountDocuments() (int, error)
	CountDocumentsByCollection(collectionID int64) (int, error)
}

// VectorStorage - interface for embedded chunk persistence, partitioned by
// collection. Search math lives in the vector service; storage only moves
// records.
type VectorStorage interface {
	InsertVectors(records []*models.VectorRecord) error
	DeleteByDocument(collectionID int64, documentID string) (int, error)
	DeleteByCollection(collectionID int64) (int, error)
	GetByCollection(collectionID int64) ([]*models.VectorRecord, error)
	CountByDocument(collectionID int64, documentID string) (int, error)
	CountByCollection(collectionID int64) (int, error)
}

// StorageManager - interface for managing storage connections
type StorageManager interface {
	DocumentStorage() DocumentStorage
	VectorStorage() VectorStorage

	// DB returns the underlying database connection for components that need
	// raw access, such as the queue.
	DB() interface{}

	Close() error
}
