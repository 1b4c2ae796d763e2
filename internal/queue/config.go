package queue

import (
	"time"

	"github.com/ternarybob/cognita/internal/common"
)

// Config holds configuration for the queue manager
type Config struct {
	// PollInterval is how often workers poll for messages
	PollInterval time.Duration

	// Concurrency is the number of concurrent workers
	Concurrency int

	// VisibilityTimeout is the message visibility timeout for redelivery
	VisibilityTimeout time.Duration

	// MaxReceive is the maximum times a message can be received before it is dropped
	MaxReceive int

	// QueueName is the key prefix in Badger
	QueueName string
}

// NewDefaultConfig creates a queue configuration with sensible defaults
func NewDefaultConfig() Config {
	return Config{
		PollInterval:      1 * time.Second,
		Concurrency:       4,
		VisibilityTimeout: 5 * time.Minute,
		MaxReceive:        3,
		QueueName:         "cognita_ingest",
	}
}

// ConfigFromCommon converts the TOML-level queue settings, falling back to
// defaults for unparseable durations.
func ConfigFromCommon(qc common.QueueConfig) Config {
	cfg := NewDefaultConfig()

	if d, err := time.ParseDuration(qc.PollInterval); err == nil && d > 0 {
		cfg.PollInterval = d
	}
	if qc.Concurrency > 0 {
		cfg.Concurrency = qc.Concurrency
	}
	if d, err := time.ParseDuration(qc.VisibilityTimeout); err == nil && d > 0 {
		cfg.VisibilityTimeout = d
	}
	if qc.MaxReceive > 0 {
		cfg.MaxReceive = qc.MaxReceive
	}
	if qc.QueueName != "" {
		cfg.QueueName = qc.QueueName
	}

	return cfg
}
