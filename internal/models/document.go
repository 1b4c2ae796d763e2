package models

import (
	"fmt"
	"time"
)

// DocumentStatus is the lifecycle state of a submitted document. The set is
// closed and every value is lowercase; storage, logs and API responses all
// carry the same representation.
type DocumentStatus string

const (
	StatusQueued     DocumentStatus = "queued"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// ParseDocumentStatus rejects anything outside the canonical set, including
// casing variants.
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	switch DocumentStatus(s) {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return DocumentStatus(s), nil
	}
	return "", fmt.Errorf("unknown document status %q", s)
}

// IsTerminal reports whether no further transitions are expected without a
// new submission.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Supported file type tags. The loader trusts these, it never sniffs.
const (
	FileTypeText     = "txt"
	FileTypeMarkdown = "md"
	FileTypePDF      = "pdf"
	FileTypeDOCX     = "docx"
)

// SupportedFileTypes lists the accepted declared type tags in a stable order.
var SupportedFileTypes = []string{FileTypeText, FileTypeMarkdown, FileTypePDF, FileTypeDOCX}

// IsSupportedFileType checks a declared type tag against the fixed set.
func IsSupportedFileType(fileType string) bool {
	switch fileType {
	case FileTypeText, FileTypeMarkdown, FileTypePDF, FileTypeDOCX:
		return true
	}
	return false
}

// Document tracks one uploaded file through the ingestion pipeline. Status,
// ChunkCount and ErrorMessage are owned by the ingest worker; everything else
// is fixed at submission.
type Document struct {
	ID           string `badgerhold:"key" json:"id"` // doc_{uuid}
	CollectionID int64  `badgerhold:"index" json:"collection_id"`
	Filename     string `json:"filename"`
	StoragePath  string `json:"storage_path"`
	FileType     string `json:"file_type"` // txt, md, pdf, docx

	Status       DocumentStatus `json:"status"`
	ChunkCount   int            `json:"chunk_count"`
	ErrorMessage string         `json:"error_message,omitempty"`

	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
