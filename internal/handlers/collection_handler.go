package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cognita/internal/interfaces"
)

type CollectionHandler struct {
	ingestService   interfaces.IngestService
	documentHandler *DocumentHandler
	logger          arbor.ILogger
}

func NewCollectionHandler(ingestService interfaces.IngestService, documentHandler *DocumentHandler, logger arbor.ILogger) *CollectionHandler {
	return &CollectionHandler{
		ingestService:   ingestService,
		documentHandler: documentHandler,
		logger:          logger,
	}
}

// HandleCollectionRoutes dispatches /api/collections/{id}/... subroutes.
func (h *CollectionHandler) HandleCollectionRoutes(w http.ResponseWriter, r *http.Request) {
	idSegment := PathSegment(r.URL.Path, "/api/collections/", 0)
	collectionID, err := ParseCollectionID(idSegment)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid collection ID")
		return
	}

	switch PathSegment(r.URL.Path, "/api/collections/", 1) {
	case "vectors":
		h.deleteVectors(w, r, collectionID)
	case "documents":
		if !RequireMethod(w, r, http.MethodGet) {
			return
		}
		h.documentHandler.ListByCollectionHandler(w, r, collectionID)
	default:
		WriteError(w, http.StatusNotFound, "Unknown collection route")
	}
}

// deleteVectors purges every vector in the collection. Idempotent, called
// when the collection itself is deleted upstream.
func (h *CollectionHandler) deleteVectors(w http.ResponseWriter, r *http.Request, collectionID int64) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	if err := h.ingestService.DeleteCollectionVectors(r.Context(), collectionID); err != nil {
		h.logger.Error().Err(err).Int64("collection_id", collectionID).Msg("Failed to purge collection vectors")
		WriteError(w, http.StatusInternalServerError, "Failed to purge collection vectors")
		return
	}

	WriteSuccess(w, "Collection vectors deleted")
}
