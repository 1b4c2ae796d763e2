package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cognita/internal/common"
	"github.com/ternarybob/cognita/internal/interfaces"
	"github.com/ternarybob/cognita/internal/models"
	"github.com/ternarybob/cognita/internal/queue"
)

type fakeDocumentStorage struct {
	mu   sync.Mutex
	docs map[string]*models.Document
}

func newFakeDocumentStorage() *fakeDocumentStorage {
	return &fakeDocumentStorage{docs: make(map[string]*models.Document)}
}

func (s *fakeDocumentStorage) SaveDocument(doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *doc
	s.docs[doc.ID] = &copied
	return nil
}

func (s *fakeDocumentStorage) GetDocument(id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, models.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (s *fakeDocumentStorage) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *fakeDocumentStorage) GetDocumentsByCollection(collectionID int64) ([]*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Document
	for _, doc := range s.docs {
		if doc.CollectionID == collectionID {
			copied := *doc
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *fakeDocumentStorage) GetDocumentsByStatus(status models.DocumentStatus) ([]*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Document
	for _, doc := range s.docs {
		if doc.Status == status {
			copied := *doc
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *fakeDocumentStorage) GetStaleProcessing(cutoff time.Time) ([]*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Document
	for _, doc := range s.docs {
		if doc.Status == models.StatusProcessing && doc.StartedAt != nil && doc.StartedAt.Before(cutoff) {
			copied := *doc
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *fakeDocumentStorage) CountDocuments() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs), nil
}

func (s *fakeDocumentStorage) CountDocumentsByCollection(collectionID int64) (int, error) {
	docs, _ := s.GetDocumentsByCollection(collectionID)
	return len(docs), nil
}

type fakeLoader struct {
	segments []models.Segment
	err      error
}

func (l *fakeLoader) Load(path string, fileType string) ([]models.Segment, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.segments, nil
}

type fakeChunker struct{}

// Split turns each non-empty segment into one chunk, which is enough shape
// for pipeline tests.
func (c *fakeChunker) Split(segments []models.Segment, documentID string) []models.Chunk {
	var chunks []models.Chunk
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{
			DocumentID: documentID,
			Index:      len(chunks),
			Text:       seg.Text,
			Filename:   seg.Filename,
		})
	}
	return chunks
}

type fakeVectorService struct {
	mu          sync.Mutex
	addErr      error
	addCalls    int
	deleteCalls []string
	stored      map[string]int
}

func newFakeVectorService() *fakeVectorService {
	return &fakeVectorService{stored: make(map[string]int)}
}

func (v *fakeVectorService) AddDocuments(ctx context.Context, collectionID int64, documentID string, chunks []models.Chunk) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.addCalls++
	if v.addErr != nil {
		return 0, v.addErr
	}
	v.stored[documentID] = len(chunks)
	return len(chunks), nil
}

func (v *fakeVectorService) Search(ctx context.Context, collectionID int64, query string, limit int) ([]models.ScoredChunk, error) {
	return nil, nil
}

func (v *fakeVectorService) DeleteDocument(ctx context.Context, collectionID int64, documentID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deleteCalls = append(v.deleteCalls, documentID)
	delete(v.stored, documentID)
	return nil
}

func (v *fakeVectorService) DeleteCollection(ctx context.Context, collectionID int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stored = make(map[string]int)
	return nil
}

func (v *fakeVectorService) CountDocumentVectors(ctx context.Context, collectionID int64, documentID string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stored[documentID], nil
}

type ingestFixture struct {
	service   *Service
	documents *fakeDocumentStorage
	loader    *fakeLoader
	vectors   *fakeVectorService
	queue     *queue.Manager
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	manager, err := queue.NewManager(db, "ingest-test", time.Minute, 3)
	require.NoError(t, err)

	fixture := &ingestFixture{
		documents: newFakeDocumentStorage(),
		loader:    &fakeLoader{segments: []models.Segment{{Text: "some extracted text", Filename: "file.txt"}}},
		vectors:   newFakeVectorService(),
		queue:     manager,
	}

	fixture.service = NewService(
		common.NewDefaultConfig(),
		fixture.documents,
		fixture.loader,
		&fakeChunker{},
		fixture.vectors,
		manager,
		nil,
		arbor.NewLogger(),
	)
	return fixture
}

func submitRequest(documentID string) interfaces.SubmitRequest {
	return interfaces.SubmitRequest{
		DocumentID:   documentID,
		CollectionID: 7,
		Filename:     "file.txt",
		StoragePath:  "/tmp/" + documentID + ".txt",
		FileType:     models.FileTypeText,
	}
}

func TestSubmit_SavesQueuedRecordAndEnqueues(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Submit(ctx, submitRequest("doc_1")))

	doc, err := f.documents.GetDocument("doc_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, doc.Status)
	assert.Equal(t, int64(7), doc.CollectionID)
	assert.False(t, doc.SubmittedAt.IsZero())
	assert.Nil(t, doc.StartedAt)

	env, ack, err := f.queue.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc_1", env.Body.DocumentID)
	assert.Equal(t, int64(7), env.Body.CollectionID)
	assert.Equal(t, models.FileTypeText, env.Body.FileType)
	require.NoError(t, ack())
}

func TestSubmit_Validation(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*interfaces.SubmitRequest)
		wantErr string
	}{
		{"missing document id", func(r *interfaces.SubmitRequest) { r.DocumentID = "" }, "document ID is required"},
		{"missing storage path", func(r *interfaces.SubmitRequest) { r.StoragePath = "" }, "storage path is required"},
		{"unsupported file type", func(r *interfaces.SubmitRequest) { r.FileType = "csv" }, "unsupported file type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := submitRequest("doc_invalid")
			tt.mutate(&req)
			err := f.service.Submit(ctx, req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	// Nothing reached the queue.
	_, _, err := f.queue.Receive(ctx)
	assert.ErrorIs(t, err, models.ErrNoMessage)
}

func TestProcessMessage_CompletesDocument(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	f.loader.segments = []models.Segment{
		{Text: "first segment", Filename: "file.txt"},
		{Text: "second segment", Filename: "file.txt"},
	}

	require.NoError(t, f.service.Submit(ctx, submitRequest("doc_1")))

	msg := &models.IngestMessage{DocumentID: "doc_1", CollectionID: 7, StoragePath: "/tmp/doc_1.txt", FileType: models.FileTypeText}
	require.NoError(t, f.service.ProcessMessage(ctx, msg))

	doc, err := f.documents.GetDocument("doc_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.Equal(t, 2, doc.ChunkCount)
	assert.Empty(t, doc.ErrorMessage)
	require.NotNil(t, doc.StartedAt)
	require.NotNil(t, doc.CompletedAt)
	assert.False(t, doc.CompletedAt.Before(*doc.StartedAt))

	// The previous run's vectors are purged before indexing.
	assert.Equal(t, []string{"doc_1"}, f.vectors.deleteCalls)
	assert.Equal(t, 2, f.vectors.stored["doc_1"])
}

func TestProcessMessage_EmptyDocumentCompletesWithZeroChunks(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	f.loader.segments = []models.Segment{{Text: "   \n\t ", Filename: "file.txt"}}

	require.NoError(t, f.service.Submit(ctx, submitRequest("doc_empty")))

	msg := &models.IngestMessage{DocumentID: "doc_empty", CollectionID: 7, StoragePath: "/tmp/doc_empty.txt", FileType: models.FileTypeText}
	require.NoError(t, f.service.ProcessMessage(ctx, msg))

	doc, err := f.documents.GetDocument("doc_empty")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.Equal(t, 0, doc.ChunkCount)
	assert.Equal(t, 0, f.vectors.addCalls)
}

func TestProcessMessage_LoadFailureMarksFailed(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	f.loader.err = errors.New("file is corrupt")

	require.NoError(t, f.service.Submit(ctx, submitRequest("doc_bad")))

	msg := &models.IngestMessage{DocumentID: "doc_bad", CollectionID: 7, StoragePath: "/tmp/doc_bad.txt", FileType: models.FileTypeText}
	// Failures are recorded on the record, not retried, so the handler acks.
	require.NoError(t, f.service.ProcessMessage(ctx, msg))

	doc, err := f.documents.GetDocument("doc_bad")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, doc.Status)
	assert.Equal(t, 0, doc.ChunkCount)
	assert.Contains(t, doc.ErrorMessage, "load")
	assert.Contains(t, doc.ErrorMessage, "file is corrupt")
	require.NotNil(t, doc.CompletedAt)

	// Rollback runs even when nothing was written.
	assert.Contains(t, f.vectors.deleteCalls, "doc_bad")
}

func TestProcessMessage_IndexFailureRollsBack(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	f.vectors.addErr = errors.New("embedding provider unavailable")

	require.NoError(t, f.service.Submit(ctx, submitRequest("doc_1")))

	msg := &models.IngestMessage{DocumentID: "doc_1", CollectionID: 7, StoragePath: "/tmp/doc_1.txt", FileType: models.FileTypeText}
	require.NoError(t, f.service.ProcessMessage(ctx, msg))

	doc, err := f.documents.GetDocument("doc_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, doc.Status)
	assert.Contains(t, doc.ErrorMessage, "index")
	assert.Contains(t, doc.ErrorMessage, "embedding provider unavailable")

	// Purge before indexing, then rollback after the failure.
	assert.Equal(t, []string{"doc_1", "doc_1"}, f.vectors.deleteCalls)
	assert.Equal(t, 0, f.vectors.stored["doc_1"])
}

func TestProcessMessage_TruncatesLongErrors(t *testing.T) {
	f := newIngestFixture(t)
	f.service.config.Ingest.ErrorMaxLen = 32
	ctx := context.Background()
	f.loader.err = errors.New(strings.Repeat("x", 500))

	require.NoError(t, f.service.Submit(ctx, submitRequest("doc_long")))

	msg := &models.IngestMessage{DocumentID: "doc_long", CollectionID: 7, StoragePath: "/tmp/doc_long.txt", FileType: models.FileTypeText}
	require.NoError(t, f.service.ProcessMessage(ctx, msg))

	doc, err := f.documents.GetDocument("doc_long")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, doc.Status)
	assert.Len(t, []rune(doc.ErrorMessage), 32)
}

func TestProcessMessage_MissingDocumentIsDropped(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	msg := &models.IngestMessage{DocumentID: "doc_gone", CollectionID: 7, StoragePath: "/tmp/doc_gone.txt", FileType: models.FileTypeText}
	require.NoError(t, f.service.ProcessMessage(ctx, msg))

	assert.Equal(t, 0, f.vectors.addCalls)
	assert.Empty(t, f.vectors.deleteCalls)
}

func TestProcessMessage_ResubmissionReplacesVectors(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Submit(ctx, submitRequest("doc_1")))
	msg := &models.IngestMessage{DocumentID: "doc_1", CollectionID: 7, StoragePath: "/tmp/doc_1.txt", FileType: models.FileTypeText}
	require.NoError(t, f.service.ProcessMessage(ctx, msg))

	f.loader.segments = []models.Segment{
		{Text: "revised first", Filename: "file.txt"},
		{Text: "revised second", Filename: "file.txt"},
		{Text: "revised third", Filename: "file.txt"},
	}
	require.NoError(t, f.service.Submit(ctx, submitRequest("doc_1")))
	require.NoError(t, f.service.ProcessMessage(ctx, msg))

	doc, err := f.documents.GetDocument("doc_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.Equal(t, 3, doc.ChunkCount)
	assert.Equal(t, 3, f.vectors.stored["doc_1"])
	assert.Equal(t, []string{"doc_1", "doc_1"}, f.vectors.deleteCalls)
}

func TestStatus_ReflectsDocumentRecord(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Submit(ctx, submitRequest("doc_1")))

	info, err := f.service.Status(ctx, "doc_1")
	require.NoError(t, err)
	assert.Equal(t, "doc_1", info.DocumentID)
	assert.Equal(t, models.StatusQueued, info.Status)
	assert.Equal(t, 0, info.ChunkCount)

	msg := &models.IngestMessage{DocumentID: "doc_1", CollectionID: 7, StoragePath: "/tmp/doc_1.txt", FileType: models.FileTypeText}
	require.NoError(t, f.service.ProcessMessage(ctx, msg))

	info, err = f.service.Status(ctx, "doc_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, info.Status)
	assert.Equal(t, 1, info.ChunkCount)
}

func TestStatus_UnknownDocument(t *testing.T) {
	f := newIngestFixture(t)

	_, err := f.service.Status(context.Background(), "doc_missing")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestDeleteCollectionVectors(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Submit(ctx, submitRequest("doc_1")))
	msg := &models.IngestMessage{DocumentID: "doc_1", CollectionID: 7, StoragePath: "/tmp/doc_1.txt", FileType: models.FileTypeText}
	require.NoError(t, f.service.ProcessMessage(ctx, msg))
	require.Equal(t, 1, f.vectors.stored["doc_1"])

	require.NoError(t, f.service.DeleteCollectionVectors(ctx, 7))
	assert.Equal(t, 0, f.vectors.stored["doc_1"])
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "short", truncateError("short", 32))
	assert.Equal(t, "abc", truncateError("abcdef", 3))
	assert.Equal(t, "unbounded", truncateError("unbounded", 0))
	// Truncation respects rune boundaries.
	assert.Equal(t, "héé", truncateError("hééé", 3))
}

var _ interfaces.DocumentStorage = (*fakeDocumentStorage)(nil)
var _ interfaces.DocumentLoader = (*fakeLoader)(nil)
var _ interfaces.Chunker = (*fakeChunker)(nil)
var _ interfaces.VectorService = (*fakeVectorService)(nil)

