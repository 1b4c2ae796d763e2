package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route: streaming queries and document lifecycle events
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Documents
	mux.HandleFunc("/api/documents", s.app.DocumentHandler.UploadHandler) // POST - upload and submit
	mux.HandleFunc("/api/documents/", s.handleDocumentRoutes)             // GET /{id}/status

	// API routes - Collections
	mux.HandleFunc("/api/collections/", s.app.CollectionHandler.HandleCollectionRoutes) // DELETE /{id}/vectors, GET /{id}/documents

	// API routes - Query (buffered RAG)
	mux.HandleFunc("/api/query", s.app.QueryHandler.QueryHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// Catch-all for unknown API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleDocumentRoutes dispatches /api/documents/{id}/... subroutes.
func (s *Server) handleDocumentRoutes(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/status") {
		s.app.DocumentHandler.StatusHandler(w, r)
		return
	}
	s.app.APIHandler.NotFoundHandler(w, r)
}
