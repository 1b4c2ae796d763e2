package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cognita/internal/common"
	"github.com/ternarybob/cognita/internal/interfaces"
	"github.com/ternarybob/cognita/internal/models"
)

type DocumentHandler struct {
	ingestService   interfaces.IngestService
	documentStorage interfaces.DocumentStorage
	attachmentsDir  string
	maxFileSize     int64
	logger          arbor.ILogger
}

func NewDocumentHandler(ingestService interfaces.IngestService, documentStorage interfaces.DocumentStorage, config *common.Config, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		ingestService:   ingestService,
		documentStorage: documentStorage,
		attachmentsDir:  config.Storage.Filesystem.Attachments,
		maxFileSize:     config.Ingest.MaxFileSize,
		logger:          logger,
	}
}

// UploadHandler accepts a multipart upload and submits the document for
// background processing. Fields: collection_id, file.
func (h *DocumentHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		WriteError(w, http.StatusRequestEntityTooLarge, "Upload exceeds size limit")
		return
	}

	collectionID, err := ParseCollectionID(r.FormValue("collection_id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid collection_id")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	if !models.IsSupportedFileType(fileType) {
		WriteError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("Unsupported file type: %s", fileType))
		return
	}

	documentID := common.NewDocumentID()
	storagePath, err := h.saveUpload(file, documentID, fileType)
	if err != nil {
		h.logger.Error().Err(err).Str("filename", header.Filename).Msg("Failed to store upload")
		WriteError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}

	req := interfaces.SubmitRequest{
		DocumentID:   documentID,
		CollectionID: collectionID,
		Filename:     header.Filename,
		StoragePath:  storagePath,
		FileType:     fileType,
	}

	if err := h.ingestService.Submit(r.Context(), req); err != nil {
		os.Remove(storagePath)
		if errors.Is(err, models.ErrUnsupportedFileType) {
			WriteError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("document_id", documentID).Msg("Failed to submit document")
		WriteError(w, http.StatusInternalServerError, "Failed to submit document")
		return
	}

	WriteAccepted(w, map[string]interface{}{
		"document_id":   documentID,
		"collection_id": collectionID,
		"status":        string(models.StatusQueued),
	})
}

// StatusHandler returns the processing state of one document.
// Route: GET /api/documents/{id}/status
func (h *DocumentHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	documentID := PathSegment(r.URL.Path, "/api/documents/", 0)
	if documentID == "" {
		WriteError(w, http.StatusBadRequest, "Missing document ID")
		return
	}

	info, err := h.ingestService.Status(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			WriteError(w, http.StatusNotFound, "Document not found")
			return
		}
		h.logger.Error().Err(err).Str("document_id", documentID).Msg("Failed to get document status")
		WriteError(w, http.StatusInternalServerError, "Failed to get document status")
		return
	}

	WriteJSON(w, http.StatusOK, info)
}

// ListByCollectionHandler returns every document record in a collection.
// Route: GET /api/collections/{id}/documents
func (h *DocumentHandler) ListByCollectionHandler(w http.ResponseWriter, r *http.Request, collectionID int64) {
	docs, err := h.documentStorage.GetDocumentsByCollection(collectionID)
	if err != nil {
		h.logger.Error().Err(err).Int64("collection_id", collectionID).Msg("Failed to list documents")
		WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"collection_id": collectionID,
		"count":         len(docs),
		"documents":     docs,
	})
}

// saveUpload streams the uploaded file to the attachments directory, keyed by
// document ID so re-uploads never collide.
func (h *DocumentHandler) saveUpload(file io.Reader, documentID, fileType string) (string, error) {
	if err := os.MkdirAll(h.attachmentsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create attachments directory: %w", err)
	}

	storagePath := filepath.Join(h.attachmentsDir, fmt.Sprintf("%s.%s", documentID, fileType))
	dst, err := os.Create(storagePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(storagePath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return storagePath, nil
}
