package handlers

import (
	"context"

	"github.com/ternarybob/cognita/internal/interfaces"
)

// SubscribeToDocumentEvents forwards processing lifecycle events to connected
// clients so UIs can refresh document status without polling.
func (h *WebSocketHandler) SubscribeToDocumentEvents() {
	eventTypes := []interfaces.EventType{
		interfaces.EventDocumentQueued,
		interfaces.EventDocumentCompleted,
		interfaces.EventDocumentFailed,
		interfaces.EventCollectionPurged,
	}

	for _, eventType := range eventTypes {
		et := eventType
		err := h.eventService.Subscribe(et, func(ctx context.Context, event interfaces.Event) error {
			h.Broadcast(WSMessage{
				Type:    string(event.Type),
				Payload: event.Payload,
			})
			return nil
		})
		if err != nil {
			h.logger.Warn().Err(err).Str("event", string(et)).Msg("Failed to subscribe to event")
		}
	}

	h.logger.Debug().Int("events", len(eventTypes)).Msg("Subscribed to document lifecycle events")
}
