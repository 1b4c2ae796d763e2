package queue

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cognita/internal/models"
)

// Handler processes one ingest message. A nil return acks the message; an
// error leaves it to reappear after the visibility timeout, up to the
// queue's max receive count.
type Handler func(ctx context.Context, msg *models.IngestMessage) error

// WorkerPool manages a pool of workers that process queue messages
type WorkerPool struct {
	queueMgr     *Manager
	handler      Handler
	concurrency  int
	pollInterval time.Duration
	logger       arbor.ILogger
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(queueMgr *Manager, handler Handler, concurrency int, pollInterval time.Duration, logger arbor.ILogger) *WorkerPool {
	if concurrency <= 0 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queueMgr:     queueMgr,
		handler:      handler,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start starts the worker pool
func (wp *WorkerPool) Start() error {
	wp.logger.Info().
		Int("concurrency", wp.concurrency).
		Msg("Starting worker pool")

	for i := 0; i < wp.concurrency; i++ {
		go wp.worker(i)
	}

	return nil
}

// Stop gracefully stops the worker pool
func (wp *WorkerPool) Stop() error {
	wp.logger.Info().Msg("Stopping worker pool")
	wp.cancel()
	return nil
}

// worker is the main worker loop that processes messages
func (wp *WorkerPool) worker(workerID int) {
	// Stagger worker starts to reduce database lock contention,
	// spread workers evenly across the poll interval
	staggerDelay := (wp.pollInterval / time.Duration(wp.concurrency)) * time.Duration(workerID)
	if staggerDelay > 0 {
		time.Sleep(staggerDelay)
	}

	wp.logger.Debug().
		Int("worker_id", workerID).
		Dur("stagger_delay", staggerDelay).
		Msg("Worker started")

	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopped")
			return

		case <-ticker.C:
			// Drain ready messages before going back to sleep
			for {
				if err := wp.processMessage(workerID); err != nil {
					if !errors.Is(err, ErrNoMessage) {
						wp.logger.Warn().
							Err(err).
							Int("worker_id", workerID).
							Msg("Error processing message")
					}
					break
				}
				if wp.ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// processMessage receives and processes a single message
func (wp *WorkerPool) processMessage(workerID int) error {
	env, ack, err := wp.queueMgr.Receive(wp.ctx)
	if err != nil {
		return err
	}

	wp.logger.Debug().
		Str("message_id", env.ID).
		Str("document_id", env.Body.DocumentID).
		Int("worker_id", workerID).
		Msg("Processing message")

	startTime := time.Now()
	handlerErr := wp.handler(wp.ctx, &env.Body)
	duration := time.Since(startTime)

	if handlerErr != nil {
		wp.logger.Error().
			Err(handlerErr).
			Str("message_id", env.ID).
			Str("document_id", env.Body.DocumentID).
			Dur("duration", duration).
			Int("worker_id", workerID).
			Msg("Ingest handler failed")

		// The handler already recorded the failure on the document, so the
		// message is done from the queue's point of view
		if delErr := ack(); delErr != nil {
			wp.logger.Warn().
				Err(delErr).
				Str("message_id", env.ID).
				Msg("Failed to delete message after failure")
			return delErr
		}
		return nil
	}

	wp.logger.Info().
		Str("message_id", env.ID).
		Str("document_id", env.Body.DocumentID).
		Dur("duration", duration).
		Int("worker_id", workerID).
		Msg("Document processed")

	if err := ack(); err != nil {
		wp.logger.Warn().
			Err(err).
			Str("message_id", env.ID).
			Msg("Failed to delete message after successful processing")
		return err
	}

	return nil
}
