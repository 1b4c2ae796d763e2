package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cognita/internal/interfaces"
)

type QueryHandler struct {
	ragService interfaces.RAGService
	logger     arbor.ILogger
}

func NewQueryHandler(ragService interfaces.RAGService, logger arbor.ILogger) *QueryHandler {
	return &QueryHandler{
		ragService: ragService,
		logger:     logger,
	}
}

// QueryHandler answers a question over one or more collections with buffered
// generation. Streaming clients use the WebSocket endpoint instead.
func (h *QueryHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req interfaces.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Question == "" {
		WriteError(w, http.StatusBadRequest, "Question is required")
		return
	}
	if len(req.CollectionIDs) == 0 {
		WriteError(w, http.StatusBadRequest, "At least one collection_id is required")
		return
	}

	answer, err := h.ragService.Query(r.Context(), req)
	if err != nil {
		h.logger.Error().Err(err).Msg("Query failed")
		WriteError(w, http.StatusInternalServerError, "Query failed")
		return
	}

	WriteJSON(w, http.StatusOK, answer)
}
