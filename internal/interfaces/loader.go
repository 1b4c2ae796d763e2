package interfaces

import "github.com/ternarybob/cognita/internal/models"

// DocumentLoader extracts plain text from stored files. Implementations
// trust the declared type tag and never sniff content to pick a parser.
type DocumentLoader interface {
	// Load reads the file at path and extracts its text as one or more
	// segments. Returns models.ErrUnsupportedFileType for tags outside the
	// fixed txt/md/pdf/docx set.
	Load(path string, fileType string) ([]models.Segment, error)
}
