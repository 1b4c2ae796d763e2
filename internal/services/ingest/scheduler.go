package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cognita/internal/common"
	"github.com/ternarybob/cognita/internal/models"
)

// Scheduler periodically re-enqueues documents stuck in processing, which
// only happens when a worker died mid-run. Disabled unless configured.
type Scheduler struct {
	service   *Service
	config    common.RequeueConfig
	olderThan time.Duration
	cron      *cron.Cron
	logger    arbor.ILogger
}

// NewScheduler creates a new requeue scheduler
func NewScheduler(service *Service, config common.RequeueConfig, logger arbor.ILogger) (*Scheduler, error) {
	olderThan, err := time.ParseDuration(config.OlderThan)
	if err != nil {
		return nil, fmt.Errorf("invalid requeue older_than: %w", err)
	}

	return &Scheduler{
		service:   service,
		config:    config,
		olderThan: olderThan,
		cron:      cron.New(),
		logger:    logger,
	}, nil
}

// Start begins the scheduled sweep. No-op when requeue is disabled.
func (s *Scheduler) Start() error {
	if !s.config.Enabled {
		s.logger.Debug().Msg("Stale document requeue disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runSweep()
	})
	if err != nil {
		return fmt.Errorf("invalid requeue schedule: %w", err)
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.config.Schedule).
		Str("older_than", s.config.OlderThan).
		Msg("Stale document requeue scheduler started")

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// runSweep re-enqueues every document that entered processing before the
// cutoff. The document keeps its processing status until the new run starts.
func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.olderThan)
	stale, err := s.service.documents.GetStaleProcessing(cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("Stale document sweep failed")
		return
	}

	if len(stale) == 0 {
		return
	}

	requeued := 0
	for _, doc := range stale {
		msg := models.IngestMessage{
			DocumentID:   doc.ID,
			CollectionID: doc.CollectionID,
			StoragePath:  doc.StoragePath,
			FileType:     doc.FileType,
		}
		if err := s.service.queueManager.Enqueue(ctx, msg); err != nil {
			s.logger.Error().
				Err(err).
				Str("document_id", doc.ID).
				Msg("Failed to requeue stale document")
			continue
		}
		requeued++
	}

	s.logger.Info().
		Int("stale", len(stale)).
		Int("requeued", requeued).
		Msg("Stale document sweep completed")
}
