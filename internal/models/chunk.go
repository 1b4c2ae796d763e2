package models

// Segment is a unit of extracted text as the loader produced it: the whole
// file for txt/md, one page for pdf, the joined paragraphs for docx.
type Segment struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
	Part     string `json:"part,omitempty"` // e.g. "page 3"
}

// Chunk is a retrieval-sized slice of a document. Index is 0-based and
// contiguous across the whole document, in source order.
type Chunk struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Filename   string `json:"filename"`
}

// VectorRecord is the persisted form of an embedded chunk. Records are never
// mutated; re-indexing a document deletes its records and inserts fresh ones.
type VectorRecord struct {
	ID           string    `badgerhold:"key" json:"id"`
	CollectionID int64     `badgerhold:"index" json:"collection_id"`
	DocumentID   string    `badgerhold:"index" json:"document_id"`
	ChunkIndex   int       `json:"chunk_index"`
	Text         string    `json:"text"`
	Filename     string    `json:"filename"`
	Embedding    []float32 `json:"embedding"`
}

// ScoredChunk is a search hit with the backend's raw distance, where smaller
// means more similar.
type ScoredChunk struct {
	CollectionID int64   `json:"collection_id"`
	DocumentID   string  `json:"document_id"`
	ChunkIndex   int     `json:"chunk_index"`
	Text         string  `json:"text"`
	Filename     string  `json:"filename"`
	Distance     float64 `json:"distance"`
}

// SourceChunk is a retrieved passage as presented to callers, with distance
// already normalized to a similarity in (0, 1].
type SourceChunk struct {
	Text       string  `json:"text"`
	Document   string  `json:"document"`
	Similarity float64 `json:"similarity"`
}
