package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/ternarybob/cognita/internal/models"
)

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = models.ErrNoMessage

// Envelope wraps a message in the queue with delivery bookkeeping.
// Message data lives at queue:{name}:msg:{id}; a visibility index at
// queue:{name}:index:{visibleAt}:{id} gives ready messages in FIFO order.
type Envelope struct {
	ID           string               `json:"id"`
	Body         models.IngestMessage `json:"body"`
	EnqueuedAt   time.Time            `json:"enqueued_at"`
	VisibleAt    time.Time            `json:"visible_at"`
	ReceiveCount int                  `json:"receive_count"`
}

// Manager implements a persistent queue on BadgerDB with a visibility
// timeout: received messages become invisible for the timeout and reappear
// if not deleted, up to maxReceive deliveries.
type Manager struct {
	db                *badger.DB
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
}

// NewManager creates a Badger-backed queue manager
func NewManager(db *badger.DB, queueName string, visibilityTimeout time.Duration, maxReceive int) (*Manager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}

	return &Manager{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
	}, nil
}

// Enqueue adds a message to the queue, immediately visible.
func (m *Manager) Enqueue(ctx context.Context, msg models.IngestMessage) error {
	env := Envelope{
		ID:           uuid.New().String(),
		Body:         msg,
		EnqueuedAt:   time.Now(),
		VisibleAt:    time.Now(),
		ReceiveCount: 0,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(m.msgKey(env.ID), data); err != nil {
			return err
		}
		return txn.Set(m.indexKey(env.VisibleAt, env.ID), []byte{})
	})
}

// Receive pulls the next visible message. Returns the message and an ack
// function that removes it from the queue; an unacked message reappears
// after the visibility timeout. Returns ErrNoMessage when nothing is ready.
func (m *Manager) Receive(ctx context.Context) (*Envelope, func() error, error) {
	var env Envelope

	err := m.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := m.parseIndexKey(key)
			if err != nil {
				continue
			}
			if ts.After(now) {
				// Index keys sort by timestamp, nothing later is ready either
				break
			}

			msgKey := m.msgKey(id)
			item, err := txn.Get(msgKey)
			if err != nil {
				if err == badger.ErrKeyNotFound {
					// Orphaned index entry, clean it up
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &env)
			}); err != nil {
				return err
			}

			if env.ReceiveCount >= m.maxReceive {
				// Poison message, drop it rather than loop forever
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(msgKey); err != nil {
					return err
				}
				continue
			}

			// Claim: bump receive count and push visibility forward
			env.ReceiveCount++
			env.VisibleAt = time.Now().Add(m.visibilityTimeout)

			data, err := json.Marshal(env)
			if err != nil {
				return err
			}
			if err := txn.Set(msgKey, data); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
			return txn.Set(m.indexKey(env.VisibleAt, env.ID), []byte{})
		}

		return ErrNoMessage
	})

	if err != nil {
		return nil, nil, err
	}

	ack := func() error {
		return m.delete(env.ID)
	}
	return &env, ack, nil
}

// Extend pushes the visibility timeout of a claimed message further out,
// for handlers that legitimately run long.
func (m *Manager) Extend(ctx context.Context, messageID string, duration time.Duration) error {
	return m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(m.msgKey(messageID))
		if err != nil {
			return err
		}

		var env Envelope
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		}); err != nil {
			return err
		}

		oldVisibleAt := env.VisibleAt
		env.VisibleAt = time.Now().Add(duration)

		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if err := txn.Set(m.msgKey(messageID), data); err != nil {
			return err
		}

		if err := txn.Delete(m.indexKey(oldVisibleAt, messageID)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(m.indexKey(env.VisibleAt, messageID), []byte{})
	})
}

// Close is a no-op, the DB is owned by the storage manager.
func (m *Manager) Close() error {
	return nil
}

func (m *Manager) delete(id string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		msgKey := m.msgKey(id)
		item, err := txn.Get(msgKey)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil // Already deleted
			}
			return err
		}

		var env Envelope
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		}); err != nil {
			return err
		}

		if err := txn.Delete(m.indexKey(env.VisibleAt, id)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Delete(msgKey)
	})
}

func (m *Manager) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", m.queueName, id))
}

func (m *Manager) indexKey(visibleAt time.Time, id string) []byte {
	// Zero pad to 20 digits so lexicographic order matches numeric order
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", m.queueName, visibleAt.UnixNano(), id))
}

func (m *Manager) parseIndexKey(key []byte) (time.Time, string, error) {
	prefix := fmt.Sprintf("queue:%s:index:", m.queueName)
	if len(key) <= len(prefix) {
		return time.Time{}, "", fmt.Errorf("invalid key length")
	}

	suffix := string(key[len(prefix):])
	if len(suffix) < 21 { // 20 digits + 1 colon
		return time.Time{}, "", fmt.Errorf("invalid suffix length")
	}

	var ts int64
	if _, err := fmt.Sscanf(suffix[:20], "%d", &ts); err != nil {
		return time.Time{}, "", err
	}

	return time.Unix(0, ts), suffix[21:], nil
}
