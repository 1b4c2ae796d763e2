package events

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cognita/internal/interfaces"
	"github.com/ternarybob/cognita/internal/models"
)

// NewLoggerSubscriber creates an event handler that logs all events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		// Document events carry the record itself; collection events carry
		// a small map. Pull out the identifying fields either way.
		switch payload := event.Payload.(type) {
		case *models.Document:
			logEvent = logEvent.
				Str("document_id", payload.ID).
				Int64("collection_id", payload.CollectionID).
				Str("status", string(payload.Status))
		case map[string]interface{}:
			if id, ok := payload["collection_id"].(int64); ok {
				logEvent = logEvent.Int64("collection_id", id)
			}
		}

		logEvent.Msg("Event published")
		return nil
	}
}
