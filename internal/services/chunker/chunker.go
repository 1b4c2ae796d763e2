package chunker

import (
	"strings"
	"unicode"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cognita/internal/interfaces"
	"github.com/ternarybob/cognita/internal/models"
)

// Service splits extracted text into retrieval-sized chunks. Cut points
// prefer sentence and line breaks inside the window; when none falls there
// the chunk is cut hard at the size limit. Consecutive chunks within a
// segment share exactly the configured number of trailing runes, so the
// segment text can be reconstructed by dropping each chunk's shared prefix.
type Service struct {
	size    int // max chunk size in runes
	overlap int // runes shared between consecutive chunks, smaller than size
	logger  arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.Chunker = (*Service)(nil)

// NewService creates a chunker with the given size and overlap in runes.
func NewService(size, overlap int, logger arbor.ILogger) *Service {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Service{size: size, overlap: overlap, logger: logger}
}

// Split produces ordered chunks with contiguous 0-based indexes across all
// segments of the document. Splitting is pure text work: same input, same
// output.
func (s *Service) Split(segments []models.Segment, documentID string) []models.Chunk {
	chunks := make([]models.Chunk, 0)

	for _, seg := range segments {
		for _, text := range s.splitSegment(seg.Text) {
			chunks = append(chunks, models.Chunk{
				DocumentID: documentID,
				Index:      len(chunks),
				Text:       text,
				Filename:   seg.Filename,
			})
		}
	}

	return chunks
}

// splitSegment cuts one segment's text into windows of at most size runes.
// Each window after the first starts exactly overlap runes before the
// previous window's end, whether the cut landed on a break or mid-sentence.
func (s *Service) splitSegment(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	breaks := breakPoints(runes)

	out := make([]string, 0)
	start := 0
	for {
		if start+s.size >= len(runes) {
			out = append(out, string(runes[start:]))
			return out
		}

		// Prefer the last break inside the window, as long as it lands past
		// the overlap region so every chunk still advances.
		end := start + s.size
		for i := len(breaks) - 1; i >= 0; i-- {
			if breaks[i] > end {
				continue
			}
			if breaks[i] > start+s.overlap {
				end = breaks[i]
			}
			break
		}

		out = append(out, string(runes[start:end]))
		start = end - s.overlap
	}
}

// breakPoints returns the rune indexes just after each sentence terminator
// or newline, ascending. A terminator counts only when followed by
// whitespace or the end of the text, which skips abbreviations glued to the
// next word.
func breakPoints(runes []rune) []int {
	points := make([]int, 0)
	for i, r := range runes {
		switch r {
		case '.', '!', '?':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				points = append(points, i+1)
			}
		case '\n':
			points = append(points, i+1)
		}
	}
	return points
}
