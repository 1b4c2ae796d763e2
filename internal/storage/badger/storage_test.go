package badger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cognita/internal/common"
	"github.com/ternarybob/cognita/internal/interfaces"
	"github.com/ternarybob/cognita/internal/models"
)

func newTestStorage(t *testing.T) (interfaces.DocumentStorage, interfaces.VectorStorage) {
	t.Helper()

	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := arbor.NewLogger()
	return NewDocumentStorage(db, logger), NewVectorStorage(db, logger)
}

func TestDocumentStorage_SaveAndGet(t *testing.T) {
	docs, _ := newTestStorage(t)

	doc := &models.Document{
		ID:           "doc_1",
		CollectionID: 3,
		Filename:     "notes.txt",
		StoragePath:  "/tmp/doc_1.txt",
		FileType:     models.FileTypeText,
		Status:       models.StatusQueued,
		SubmittedAt:  time.Now(),
	}
	require.NoError(t, docs.SaveDocument(doc))

	got, err := docs.GetDocument("doc_1")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", got.Filename)
	assert.Equal(t, models.StatusQueued, got.Status)
	assert.Equal(t, int64(3), got.CollectionID)
}

func TestDocumentStorage_SaveRequiresID(t *testing.T) {
	docs, _ := newTestStorage(t)
	assert.Error(t, docs.SaveDocument(&models.Document{}))
}

func TestDocumentStorage_GetMissing(t *testing.T) {
	docs, _ := newTestStorage(t)

	_, err := docs.GetDocument("doc_missing")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestDocumentStorage_UpsertReplaces(t *testing.T) {
	docs, _ := newTestStorage(t)

	doc := &models.Document{ID: "doc_1", Status: models.StatusQueued, SubmittedAt: time.Now()}
	require.NoError(t, docs.SaveDocument(doc))

	doc.Status = models.StatusCompleted
	doc.ChunkCount = 5
	require.NoError(t, docs.SaveDocument(doc))

	got, err := docs.GetDocument("doc_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, 5, got.ChunkCount)
}

func TestDocumentStorage_DeleteIsIdempotent(t *testing.T) {
	docs, _ := newTestStorage(t)

	require.NoError(t, docs.SaveDocument(&models.Document{ID: "doc_1", SubmittedAt: time.Now()}))
	require.NoError(t, docs.DeleteDocument("doc_1"))
	require.NoError(t, docs.DeleteDocument("doc_1"))

	_, err := docs.GetDocument("doc_1")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestDocumentStorage_QueriesByCollectionAndStatus(t *testing.T) {
	docs, _ := newTestStorage(t)

	seed := []*models.Document{
		{ID: "doc_1", CollectionID: 1, Status: models.StatusCompleted, SubmittedAt: time.Now()},
		{ID: "doc_2", CollectionID: 1, Status: models.StatusFailed, SubmittedAt: time.Now()},
		{ID: "doc_3", CollectionID: 2, Status: models.StatusCompleted, SubmittedAt: time.Now()},
	}
	for _, doc := range seed {
		require.NoError(t, docs.SaveDocument(doc))
	}

	inCollection, err := docs.GetDocumentsByCollection(1)
	require.NoError(t, err)
	assert.Len(t, inCollection, 2)

	completed, err := docs.GetDocumentsByStatus(models.StatusCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	count, err := docs.CountDocumentsByCollection(1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	total, err := docs.CountDocuments()
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestDocumentStorage_GetStaleProcessing(t *testing.T) {
	docs, _ := newTestStorage(t)

	old := time.Now().Add(-time.Hour)
	recent := time.Now()

	require.NoError(t, docs.SaveDocument(&models.Document{ID: "doc_stale", Status: models.StatusProcessing, StartedAt: &old, SubmittedAt: old}))
	require.NoError(t, docs.SaveDocument(&models.Document{ID: "doc_fresh", Status: models.StatusProcessing, StartedAt: &recent, SubmittedAt: recent}))
	require.NoError(t, docs.SaveDocument(&models.Document{ID: "doc_done", Status: models.StatusCompleted, StartedAt: &old, SubmittedAt: old}))

	stale, err := docs.GetStaleProcessing(time.Now().Add(-30 * time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "doc_stale", stale[0].ID)
}

func TestVectorStorage_InsertAndPartition(t *testing.T) {
	_, vectors := newTestStorage(t)

	records := []*models.VectorRecord{
		{ID: "v1", CollectionID: 1, DocumentID: "doc_1", ChunkIndex: 0, Text: "a", Embedding: []float32{1, 0}},
		{ID: "v2", CollectionID: 1, DocumentID: "doc_1", ChunkIndex: 1, Text: "b", Embedding: []float32{0, 1}},
		{ID: "v3", CollectionID: 2, DocumentID: "doc_2", ChunkIndex: 0, Text: "c", Embedding: []float32{1, 1}},
	}
	require.NoError(t, vectors.InsertVectors(records))

	first, err := vectors.GetByCollection(1)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := vectors.GetByCollection(2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "doc_2", second[0].DocumentID)
	assert.Equal(t, []float32{1, 1}, second[0].Embedding)
}

func TestVectorStorage_InsertRequiresID(t *testing.T) {
	_, vectors := newTestStorage(t)
	err := vectors.InsertVectors([]*models.VectorRecord{{CollectionID: 1}})
	assert.Error(t, err)
}

func TestVectorStorage_DeleteByDocument(t *testing.T) {
	_, vectors := newTestStorage(t)

	require.NoError(t, vectors.InsertVectors([]*models.VectorRecord{
		{ID: "v1", CollectionID: 1, DocumentID: "doc_1", Embedding: []float32{1}},
		{ID: "v2", CollectionID: 1, DocumentID: "doc_2", Embedding: []float32{1}},
	}))

	deleted, err := vectors.DeleteByDocument(1, "doc_1")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	remaining, err := vectors.CountByCollection(1)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	// Deleting again is a no-op.
	deleted, err = vectors.DeleteByDocument(1, "doc_1")
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestVectorStorage_DeleteByCollection(t *testing.T) {
	_, vectors := newTestStorage(t)

	require.NoError(t, vectors.InsertVectors([]*models.VectorRecord{
		{ID: "v1", CollectionID: 1, DocumentID: "doc_1", Embedding: []float32{1}},
		{ID: "v2", CollectionID: 1, DocumentID: "doc_2", Embedding: []float32{1}},
		{ID: "v3", CollectionID: 2, DocumentID: "doc_3", Embedding: []float32{1}},
	}))

	deleted, err := vectors.DeleteByCollection(1)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	count, err := vectors.CountByCollection(1)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	kept, err := vectors.CountByCollection(2)
	require.NoError(t, err)
	assert.Equal(t, 1, kept)
}

func TestVectorStorage_CountByDocument(t *testing.T) {
	_, vectors := newTestStorage(t)

	require.NoError(t, vectors.InsertVectors([]*models.VectorRecord{
		{ID: "v1", CollectionID: 1, DocumentID: "doc_1", Embedding: []float32{1}},
		{ID: "v2", CollectionID: 1, DocumentID: "doc_1", Embedding: []float32{1}},
	}))

	count, err := vectors.CountByDocument(1, "doc_1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
