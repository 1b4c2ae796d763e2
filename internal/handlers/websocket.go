package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cognita/internal/common"
	"github.com/ternarybob/cognita/internal/interfaces"
	"github.com/ternarybob/cognita/internal/models"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope for every message in both directions.
type WSMessage struct {
	Type    string      `json:"type"`
	QueryID string      `json:"query_id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// queryPayload is the client request carried by a "query" message.
type queryPayload struct {
	CollectionIDs []int64 `json:"collection_ids"`
	Question      string  `json:"question"`
	TopK          int     `json:"top_k"`
}

type WebSocketHandler struct {
	logger           arbor.ILogger
	ragService       interfaces.RAGService
	eventService     interfaces.EventService
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	allowedEvents    map[string]bool          // Whitelist of events to broadcast (empty = allow all)
	throttlers       map[string]*rate.Limiter // Rate limiters per event type
	serverInstanceID string                   // Unique ID generated on startup - clients use to detect server restart
}

func NewWebSocketHandler(ragService interfaces.RAGService, eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		ragService:       ragService,
		eventService:     eventService,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		allowedEvents:    make(map[string]bool),
		throttlers:       make(map[string]*rate.Limiter),
		serverInstanceID: uuid.New().String(),
	}

	if config != nil && len(config.AllowedEvents) > 0 {
		for _, eventType := range config.AllowedEvents {
			h.allowedEvents[eventType] = true
		}
		logger.Debug().
			Int("allowed_events", len(h.allowedEvents)).
			Msg("Initialized event whitelist for WebSocketHandler")
	}

	// Throttlers only exist for configured event types. Nil throttler means
	// no throttling for that event.
	if config != nil {
		for eventType, intervalStr := range config.ThrottleIntervals {
			duration, err := time.ParseDuration(intervalStr)
			if err != nil {
				logger.Warn().
					Err(err).
					Str("event_type", eventType).
					Str("interval", intervalStr).
					Msg("Failed to parse throttle interval - throttler disabled")
				continue
			}
			h.throttlers[eventType] = rate.NewLimiter(rate.Every(duration), 1)
			logger.Debug().
				Str("event_type", eventType).
				Str("interval", intervalStr).
				Msg("Throttler initialized")
		}
	}

	if eventService != nil {
		h.SubscribeToDocumentEvents()
	}

	return h
}

// HandleWebSocket upgrades the connection and serves it until the client
// disconnects. Clients send "query" messages and receive the streamed
// events for each, interleaved with broadcast document events.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	h.sendToConn(conn, WSMessage{
		Type:    "hello",
		Payload: map[string]string{"server_instance_id": h.serverInstanceID},
	})

	// Queries started by this connection stop when it goes away.
	connCtx, cancel := context.WithCancel(r.Context())

	defer func() {
		cancel()

		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendToConn(conn, WSMessage{Type: "error", Payload: map[string]string{"error": "invalid message"}})
			continue
		}

		switch msg.Type {
		case "query":
			h.handleQueryMessage(connCtx, conn, msg)
		case "ping":
			h.sendToConn(conn, WSMessage{Type: "pong"})
		default:
			h.sendToConn(conn, WSMessage{Type: "error", Payload: map[string]string{"error": "unknown message type"}})
		}
	}
}

// handleQueryMessage starts a streaming query and forwards its events to the
// client tagged with the query ID, so a client can run queries concurrently.
func (h *WebSocketHandler) handleQueryMessage(ctx context.Context, conn *websocket.Conn, msg WSMessage) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		h.sendToConn(conn, WSMessage{Type: "error", QueryID: msg.QueryID, Payload: map[string]string{"error": "invalid query payload"}})
		return
	}

	var payload queryPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendToConn(conn, WSMessage{Type: "error", QueryID: msg.QueryID, Payload: map[string]string{"error": "invalid query payload"}})
		return
	}

	queryID := msg.QueryID
	if queryID == "" {
		queryID = uuid.New().String()
	}

	req := interfaces.QueryRequest{
		CollectionIDs: payload.CollectionIDs,
		Question:      payload.Question,
		TopK:          payload.TopK,
	}

	events, err := h.ragService.StreamQuery(ctx, req)
	if err != nil {
		h.sendToConn(conn, WSMessage{
			Type:    string(models.EventError),
			QueryID: queryID,
			Payload: map[string]string{"error": err.Error()},
		})
		return
	}

	common.SafeGo(h.logger, "ws-query-stream", func() {
		for event := range events {
			h.sendToConn(conn, WSMessage{
				Type:    string(event.Type),
				QueryID: queryID,
				Payload: event,
			})
		}
	})
}

// sendToConn writes one message to a single client, serialized per
// connection since gorilla connections do not allow concurrent writes.
func (h *WebSocketHandler) sendToConn(conn *websocket.Conn, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	mutex, ok := h.clientMutex[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	mutex.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	mutex.Unlock()

	if err != nil {
		h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send WebSocket message")
	}
}

// Broadcast sends a message to every connected client, honoring the event
// whitelist and per-type throttling.
func (h *WebSocketHandler) Broadcast(msg WSMessage) {
	if len(h.allowedEvents) > 0 && !h.allowedEvents[msg.Type] {
		return
	}

	if throttler, ok := h.throttlers[msg.Type]; ok && throttler != nil {
		if !throttler.Allow() {
			return
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal broadcast message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to broadcast to client")
		}
	}
}
