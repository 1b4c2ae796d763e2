package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cognita/internal/models"
)

func TestSplit_SmallTextSingleChunk(t *testing.T) {
	service := NewService(1000, 200, arbor.NewLogger())

	segments := []models.Segment{
		{Text: "Hello world. This is a test of chunking.", Filename: "test.txt"},
	}

	chunks := service.Split(segments, "doc_1")

	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello world. This is a test of chunking.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "doc_1", chunks[0].DocumentID)
	assert.Equal(t, "test.txt", chunks[0].Filename)
}

func TestSplit_Deterministic(t *testing.T) {
	service := NewService(80, 20, arbor.NewLogger())

	segments := []models.Segment{
		{Text: strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20), Filename: "fox.txt"},
	}

	first := service.Split(segments, "doc_1")
	second := service.Split(segments, "doc_1")

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
}

func TestSplit_ChunkSizeLimit(t *testing.T) {
	size := 100
	service := NewService(size, 25, arbor.NewLogger())

	segments := []models.Segment{
		{Text: strings.Repeat("Sentence number one here. Another sentence follows. ", 15), Filename: "a.txt"},
	}

	chunks := service.Split(segments, "doc_1")

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk.Text)), size, "chunk %d exceeds size", chunk.Index)
		assert.NotEmpty(t, strings.TrimSpace(chunk.Text))
	}
}

func TestSplit_ContiguousIndexesAcrossSegments(t *testing.T) {
	service := NewService(60, 0, arbor.NewLogger())

	segments := []models.Segment{
		{Text: "First page sentence one. First page sentence two goes here.", Filename: "doc.pdf", Part: "page 1"},
		{Text: "Second page sentence one. Second page sentence two goes here.", Filename: "doc.pdf", Part: "page 2"},
	}

	chunks := service.Split(segments, "doc_1")

	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
	}
}

// assertOverlappedReconstruction checks that every chunk after the first
// starts with the last overlap runes of its predecessor, and that dropping
// those shared prefixes reassembles the original text.
func assertOverlappedReconstruction(t *testing.T, text string, chunks []models.Chunk, overlap int) {
	t.Helper()

	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0].Text)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		require.GreaterOrEqual(t, len(prev), overlap)
		tail := string(prev[len(prev)-overlap:])
		require.True(t, strings.HasPrefix(chunks[i].Text, tail),
			"chunk %d %q should start with tail of chunk %d %q", i, chunks[i].Text, i-1, tail)
		rebuilt.WriteString(string([]rune(chunks[i].Text)[overlap:]))
	}
	assert.Equal(t, strings.TrimSpace(text), rebuilt.String())
}

func TestSplit_OverlapReconstructsText(t *testing.T) {
	size := 20
	overlap := 5
	service := NewService(size, overlap, arbor.NewLogger())

	text := "Hello world. This is a test of chunking."
	chunks := service.Split([]models.Segment{{Text: text, Filename: "o.txt"}}, "doc_1")

	require.GreaterOrEqual(t, len(chunks), 2)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk.Text)), size, "chunk %d exceeds size", chunk.Index)
	}
	assertOverlappedReconstruction(t, text, chunks, overlap)
}

func TestSplit_OverlapPrefersSentenceBreaks(t *testing.T) {
	// Three sentences of ~30 runes with size 70 force a cut after the second
	// sentence; the shared runes land on the tail of that sentence.
	overlap := 35
	service := NewService(70, overlap, arbor.NewLogger())

	text := "Alpha sentence padding here one. Beta sentence padding here two. Gamma sentence padding three."
	chunks := service.Split([]models.Segment{{Text: text, Filename: "o.txt"}}, "doc_1")

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "Beta sentence padding here two."),
		"chunk 0 %q should end on a sentence break", chunks[0].Text)
	assertOverlappedReconstruction(t, text, chunks, overlap)
}

func TestSplit_OversizedSentenceHardCut(t *testing.T) {
	size := 50
	overlap := 10
	service := NewService(size, overlap, arbor.NewLogger())

	long := strings.Repeat("x", 130) + "."
	chunks := service.Split([]models.Segment{{Text: long, Filename: "x.txt"}}, "doc_1")

	require.GreaterOrEqual(t, len(chunks), 3)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk.Text)), size)
	}
	assertOverlappedReconstruction(t, long, chunks, overlap)
}

func TestSplit_CoverageNoTextLost(t *testing.T) {
	service := NewService(60, 15, arbor.NewLogger())

	sentences := []string{
		"One sentence sits right here.",
		"Two sentences sit right here.",
		"Three sentences sit over here.",
		"Four sentences finish the text.",
	}
	text := strings.Join(sentences, " ")
	chunks := service.Split([]models.Segment{{Text: text, Filename: "c.txt"}}, "doc_1")

	all := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		all = append(all, chunk.Text)
	}
	combined := strings.Join(all, " ")
	for _, sentence := range sentences {
		assert.Contains(t, combined, sentence)
	}
}

func TestSplit_EmptyAndWhitespaceSegments(t *testing.T) {
	service := NewService(100, 20, arbor.NewLogger())

	chunks := service.Split([]models.Segment{
		{Text: "", Filename: "e.txt"},
		{Text: "   \n\t  ", Filename: "w.txt"},
	}, "doc_1")

	assert.Empty(t, chunks)
}

func TestNewService_InvalidConfigFallsBack(t *testing.T) {
	service := NewService(0, -1, arbor.NewLogger())
	assert.Equal(t, 1000, service.size)
	assert.Equal(t, 200, service.overlap)

	service = NewService(100, 100, arbor.NewLogger())
	assert.Equal(t, 20, service.overlap)
}

func TestBreakPoints(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []int
	}{
		{
			name: "terminators followed by space or end",
			text: "First one. Second one! Third?",
			want: []int{10, 22, 29},
		},
		{
			name: "dot glued to next word is not a break",
			text: "v1.2 shipped. done",
			want: []int{13},
		},
		{
			name: "newline is a break",
			text: "line one\nline two",
			want: []int{9},
		},
		{
			name: "no breaks",
			text: "just a fragment",
			want: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, breakPoints([]rune(tt.text)))
		})
	}
}
