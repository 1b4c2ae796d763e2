package queue

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/cognita/internal/models"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestManager(t *testing.T, visibility time.Duration, maxReceive int) *Manager {
	t.Helper()
	mgr, err := NewManager(newTestDB(t), "test_queue", visibility, maxReceive)
	require.NoError(t, err)
	return mgr
}

func testMessage(docID string) models.IngestMessage {
	return models.IngestMessage{
		DocumentID:   docID,
		CollectionID: 1,
		StoragePath:  "/tmp/" + docID + ".txt",
		FileType:     "txt",
	}
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(nil, "q", time.Minute, 3)
	assert.Error(t, err)

	_, err = NewManager(newTestDB(t), "", time.Minute, 3)
	assert.Error(t, err)
}

func TestEnqueueReceive_FIFO(t *testing.T) {
	mgr := newTestManager(t, time.Minute, 3)
	ctx := context.Background()

	require.NoError(t, mgr.Enqueue(ctx, testMessage("doc_a")))
	// Distinct enqueue timestamps keep index ordering unambiguous
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, mgr.Enqueue(ctx, testMessage("doc_b")))

	first, ack1, err := mgr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc_a", first.Body.DocumentID)
	require.NoError(t, ack1())

	second, ack2, err := mgr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc_b", second.Body.DocumentID)
	require.NoError(t, ack2())
}

func TestReceive_EmptyQueue(t *testing.T) {
	mgr := newTestManager(t, time.Minute, 3)

	_, _, err := mgr.Receive(context.Background())
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestReceive_AckRemovesMessage(t *testing.T) {
	mgr := newTestManager(t, 50*time.Millisecond, 3)
	ctx := context.Background()

	require.NoError(t, mgr.Enqueue(ctx, testMessage("doc_1")))

	env, ack, err := mgr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, env.ReceiveCount)
	require.NoError(t, ack())

	// Acked message never reappears, even after the visibility window
	time.Sleep(80 * time.Millisecond)
	_, _, err = mgr.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestReceive_UnackedMessageReappears(t *testing.T) {
	mgr := newTestManager(t, 50*time.Millisecond, 5)
	ctx := context.Background()

	require.NoError(t, mgr.Enqueue(ctx, testMessage("doc_1")))

	env, _, err := mgr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, env.ReceiveCount)

	// Invisible while claimed
	_, _, err = mgr.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoMessage)

	// Visible again after the timeout, with a bumped receive count
	time.Sleep(80 * time.Millisecond)
	redelivered, ack, err := mgr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, env.ID, redelivered.ID)
	assert.Equal(t, 2, redelivered.ReceiveCount)
	require.NoError(t, ack())
}

func TestReceive_PoisonMessageDropped(t *testing.T) {
	maxReceive := 2
	mgr := newTestManager(t, 10*time.Millisecond, maxReceive)
	ctx := context.Background()

	require.NoError(t, mgr.Enqueue(ctx, testMessage("doc_poison")))

	// Exhaust the delivery budget without acking
	for i := 0; i < maxReceive; i++ {
		time.Sleep(25 * time.Millisecond)
		env, _, err := mgr.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, i+1, env.ReceiveCount)
	}

	// Next receive finds the message over budget and drops it
	time.Sleep(25 * time.Millisecond)
	_, _, err := mgr.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoMessage)

	// Dropped for good
	time.Sleep(25 * time.Millisecond)
	_, _, err = mgr.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestExtend_PushesVisibilityForward(t *testing.T) {
	mgr := newTestManager(t, 50*time.Millisecond, 3)
	ctx := context.Background()

	require.NoError(t, mgr.Enqueue(ctx, testMessage("doc_long")))

	env, ack, err := mgr.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, mgr.Extend(ctx, env.ID, 10*time.Second))

	// Original timeout has passed but the extension holds the claim
	time.Sleep(80 * time.Millisecond)
	_, _, err = mgr.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoMessage)

	require.NoError(t, ack())
}

func TestAck_IdempotentAfterRedelivery(t *testing.T) {
	mgr := newTestManager(t, 30*time.Millisecond, 5)
	ctx := context.Background()

	require.NoError(t, mgr.Enqueue(ctx, testMessage("doc_1")))

	_, staleAck, err := mgr.Receive(ctx)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	_, freshAck, err := mgr.Receive(ctx)
	require.NoError(t, err)

	// The late ack from the first delivery must not error
	require.NoError(t, freshAck())
	assert.NoError(t, staleAck())
}

func TestEnqueue_RoundTripsBody(t *testing.T) {
	mgr := newTestManager(t, time.Minute, 3)
	ctx := context.Background()

	msg := models.IngestMessage{
		DocumentID:   "doc_rt",
		CollectionID: 42,
		StoragePath:  "/data/attachments/doc_rt.pdf",
		FileType:     "pdf",
	}
	require.NoError(t, mgr.Enqueue(ctx, msg))

	env, ack, err := mgr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg, env.Body)
	assert.False(t, env.EnqueuedAt.IsZero())
	require.NoError(t, ack())
}
