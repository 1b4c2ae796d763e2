package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/ternarybob/cognita/internal/models"
)

// loadPDF extracts text per page with pdfcpu. A file that does not parse as
// a PDF, whatever its declared tag says, fails the load stage.
func (s *Service) loadPDF(path, filename string) ([]models.Segment, error) {
	conf := model.NewDefaultConfiguration()

	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, models.NewProcessingError("load", fmt.Errorf("failed to read PDF: %w", err))
	}
	pageCount := pdfCtx.PageCount

	// pdfcpu extracts page content to files, so work in a scratch directory
	outDir := filepath.Join(os.TempDir(), "cognita-pdf", uuid.New().String())
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, models.NewProcessingError("load", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return nil, models.NewProcessingError("load", fmt.Errorf("failed to extract PDF content: %w", err))
	}

	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}

		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err != nil {
				continue
			}
		}
		pageTexts[pageNum] = string(content)
	}

	segments := make([]models.Segment, 0, pageCount)
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := strings.TrimSpace(pageTexts[pageNum])
		if text == "" {
			continue
		}
		segments = append(segments, models.Segment{
			Text:     text,
			Filename: filename,
			Part:     fmt.Sprintf("page %d", pageNum),
		})
	}

	return segments, nil
}
