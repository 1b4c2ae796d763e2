package loader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"golang.org/x/text/encoding/charmap"

	"github.com/ternarybob/cognita/internal/interfaces"
	"github.com/ternarybob/cognita/internal/models"
)

// Service extracts text from stored files. The declared type tag picks the
// parser; content is never sniffed to choose a different one.
type Service struct {
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.DocumentLoader = (*Service)(nil)

// NewService creates a new document loader
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// Load reads the file at path and extracts its text according to fileType.
func (s *Service) Load(path string, fileType string) ([]models.Segment, error) {
	filename := filepath.Base(path)

	switch fileType {
	case models.FileTypeText:
		return s.loadText(path, filename)
	case models.FileTypeMarkdown:
		return s.loadMarkdown(path, filename)
	case models.FileTypePDF:
		return s.loadPDF(path, filename)
	case models.FileTypeDOCX:
		return s.loadDOCX(path, filename)
	}

	return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedFileType, fileType)
}

func (s *Service) loadText(path, filename string) ([]models.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewProcessingError("load", err)
	}

	// Plain text must actually be text. Markdown gets a best-effort decode
	// instead, see loadMarkdown.
	text, err := decodeText(data, true)
	if err != nil {
		return nil, models.NewProcessingError("load", err)
	}

	return []models.Segment{{Text: text, Filename: filename}}, nil
}

// decodeText turns raw bytes into a UTF-8 string. Valid UTF-8 passes
// through; anything else falls back to Windows-1252. In strict mode content
// that looks binary is rejected, otherwise invalid sequences are substituted.
func decodeText(data []byte, strict bool) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}

	if bytes.IndexByte(data, 0) >= 0 {
		if strict {
			return "", errors.New("content is not valid text")
		}
		return strings.ToValidUTF8(string(data), "�"), nil
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		if strict {
			return "", fmt.Errorf("failed to decode text: %w", err)
		}
		return strings.ToValidUTF8(string(data), "�"), nil
	}
	return string(decoded), nil
}
