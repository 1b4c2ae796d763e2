package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cognita/internal/interfaces"
	"github.com/ternarybob/cognita/internal/models"
)

// Manager implements VectorService over the vector storage layer. Nearest
// neighbour search is brute force over the collection's partition, which is
// the right tradeoff for per-user collections of a few thousand chunks.
type Manager struct {
	storage      interfaces.VectorStorage
	embedService interfaces.EmbeddingService
	logger       arbor.ILogger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

var _ interfaces.VectorService = (*Manager)(nil)

// NewManager creates a new vector store manager
func NewManager(storage interfaces.VectorStorage, embedService interfaces.EmbeddingService, logger arbor.ILogger) *Manager {
	return &Manager{
		storage:      storage,
		embedService: embedService,
		logger:       logger,
		locks:        make(map[int64]*sync.Mutex),
	}
}

// collectionLock returns the mutex serializing writes to one collection.
// Different collections get different mutexes and never block each other.
func (m *Manager) collectionLock(collectionID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[collectionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[collectionID] = lock
	}
	return lock
}

// AddDocuments embeds the chunks and inserts one record per chunk into the
// collection's partition. Embedding happens before the collection lock is
// taken so slow providers do not stall other writers.
func (m *Manager) AddDocuments(ctx context.Context, collectionID int64, documentID string, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := m.embedService.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}

	records := make([]*models.VectorRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = &models.VectorRecord{
			ID:           uuid.New().String(),
			CollectionID: collectionID,
			DocumentID:   documentID,
			ChunkIndex:   chunk.Index,
			Text:         chunk.Text,
			Filename:     chunk.Filename,
			Embedding:    embeddings[i],
		}
	}

	lock := m.collectionLock(collectionID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.storage.InsertVectors(records); err != nil {
		return 0, fmt.Errorf("failed to insert vectors: %w", err)
	}

	m.logger.Debug().
		Int64("collection_id", collectionID).
		Str("document_id", documentID).
		Int("count", len(records)).
		Msg("Indexed document chunks")

	return len(records), nil
}

// DeleteDocument removes every record for the document from the collection.
func (m *Manager) DeleteDocument(ctx context.Context, collectionID int64, documentID string) error {
	lock := m.collectionLock(collectionID)
	lock.Lock()
	defer lock.Unlock()

	deleted, err := m.storage.DeleteByDocument(collectionID, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete document vectors: %w", err)
	}

	if deleted > 0 {
		m.logger.Debug().
			Int64("collection_id", collectionID).
			Str("document_id", documentID).
			Int("deleted", deleted).
			Msg("Deleted document vectors")
	}

	return nil
}

// DeleteCollection removes the collection's entire partition.
func (m *Manager) DeleteCollection(ctx context.Context, collectionID int64) error {
	lock := m.collectionLock(collectionID)
	lock.Lock()
	defer lock.Unlock()

	deleted, err := m.storage.DeleteByCollection(collectionID)
	if err != nil {
		return fmt.Errorf("failed to delete collection vectors: %w", err)
	}

	m.logger.Info().
		Int64("collection_id", collectionID).
		Int("deleted", deleted).
		Msg("Purged collection vectors")

	return nil
}

// Search embeds the query and returns up to limit chunks from the collection
// ordered by ascending distance. An empty collection returns no hits.
func (m *Manager) Search(ctx context.Context, collectionID int64, query string, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}

	queryEmbedding, err := m.embedService.GenerateQueryEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	records, err := m.storage.GetByCollection(collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection vectors: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	scored := make([]models.ScoredChunk, 0, len(records))
	for _, record := range records {
		if len(record.Embedding) != len(queryEmbedding) {
			// Records written under an older embedding model. Skip rather
			// than poison the ranking.
			continue
		}
		scored = append(scored, models.ScoredChunk{
			CollectionID: record.CollectionID,
			DocumentID:   record.DocumentID,
			ChunkIndex:   record.ChunkIndex,
			Text:         record.Text,
			Filename:     record.Filename,
			Distance:     cosineDistance(queryEmbedding, record.Embedding),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})

	if limit < len(scored) {
		scored = scored[:limit]
	}

	return scored, nil
}

// CountDocumentVectors returns the number of stored records for a document.
func (m *Manager) CountDocumentVectors(ctx context.Context, collectionID int64, documentID string) (int, error) {
	return m.storage.CountByDocument(collectionID, documentID)
}

// cosineDistance is 1 minus the cosine similarity of the two vectors, so 0
// means identical direction and 2 means opposite. Zero vectors are treated as
// maximally distant.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
