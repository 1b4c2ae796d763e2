package models

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFileType is returned when a declared type tag is outside the
// fixed txt/md/pdf/docx set.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// ErrDocumentNotFound is returned by status lookups for unknown document IDs.
var ErrDocumentNotFound = errors.New("document not found")

// ProcessingError wraps a per-document pipeline failure with the stage it
// happened in. The rendered message is what ends up on the document record.
type ProcessingError struct {
	Stage string // load, chunk, embed, index
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// NewProcessingError tags an error with the pipeline stage it came from.
func NewProcessingError(stage string, err error) *ProcessingError {
	return &ProcessingError{Stage: stage, Err: err}
}

// EmbeddingError marks a provider failure that survived retry exhaustion.
type EmbeddingError struct {
	Provider string
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding via %s failed: %v", e.Provider, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }
