package models

import "errors"

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = errors.New("no messages in queue")

// IngestMessage is the queue payload for one document processing job.
// Keep it simple - just enough for the worker to run the pipeline.
type IngestMessage struct {
	DocumentID   string `json:"document_id"`
	CollectionID int64  `json:"collection_id"`
	StoragePath  string `json:"storage_path"`
	FileType     string `json:"file_type"`
}
