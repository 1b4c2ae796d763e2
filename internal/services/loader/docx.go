package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/ternarybob/cognita/internal/models"
)

// loadDOCX extracts paragraph and table text from a docx archive.
func (s *Service) loadDOCX(path, filename string) ([]models.Segment, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, models.NewProcessingError("load", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, models.NewProcessingError("load", err)
	}

	doc, err := docx.Parse(file, info.Size())
	if err != nil {
		return nil, models.NewProcessingError("load", fmt.Errorf("failed to parse docx: %w", err))
	}

	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch item.(type) {
		case *docx.Paragraph, *docx.Table:
			text := strings.TrimSpace(fmt.Sprint(item))
			if text != "" {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return []models.Segment{}, nil
	}

	return []models.Segment{{Text: text, Filename: filename}}, nil
}
