package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fumiama/go-docx"
	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cognita/internal/models"
)

func newTestService() *Service {
	return NewService(arbor.NewLogger())
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoad_PlainText(t *testing.T) {
	service := newTestService()
	path := writeFile(t, "notes.txt", []byte("Hello world. This is a test."))

	segments, err := service.Load(path, models.FileTypeText)

	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "Hello world. This is a test.", segments[0].Text)
	assert.Equal(t, "notes.txt", segments[0].Filename)
}

func TestLoad_TextRejectsBinaryContent(t *testing.T) {
	service := newTestService()
	path := writeFile(t, "blob.txt", []byte{0x00, 0x01, 0xFF, 0xFE, 0x00, 0x42})

	_, err := service.Load(path, models.FileTypeText)

	require.Error(t, err)
	var procErr *models.ProcessingError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "load", procErr.Stage)
}

func TestLoad_TextDecodesWindows1252(t *testing.T) {
	service := newTestService()
	// "café" with a Windows-1252 e-acute, invalid as UTF-8
	path := writeFile(t, "latin.txt", []byte{'c', 'a', 'f', 0xE9})

	segments, err := service.Load(path, models.FileTypeText)

	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "café", segments[0].Text)
}

func TestLoad_MarkdownStripsMarkup(t *testing.T) {
	service := newTestService()
	md := "# Title\n\nSome *emphasized* paragraph text.\n\n- item one\n- item two\n\n```\ncode line\n```\n"
	path := writeFile(t, "readme.md", []byte(md))

	segments, err := service.Load(path, models.FileTypeMarkdown)

	require.NoError(t, err)
	require.Len(t, segments, 1)

	text := segments[0].Text
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "Some emphasized paragraph text.")
	assert.Contains(t, text, "item one")
	assert.Contains(t, text, "code line")
	assert.NotContains(t, text, "#")
	assert.NotContains(t, text, "*")
	assert.NotContains(t, text, "```")
}

func TestLoad_MarkdownToleratesInvalidBytes(t *testing.T) {
	service := newTestService()
	data := append([]byte("# Heading\n\nvalid text "), 0x00, 0xFF)
	path := writeFile(t, "dirty.md", data)

	segments, err := service.Load(path, models.FileTypeMarkdown)

	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Contains(t, segments[0].Text, "valid text")
}

func TestLoad_PDFPerPageSegments(t *testing.T) {
	service := newTestService()

	path := filepath.Join(t.TempDir(), "report.pdf")
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(40, 10, "First page content")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(40, 10, "Second page content")
	require.NoError(t, pdf.OutputFileAndClose(path))

	segments, err := service.Load(path, models.FileTypePDF)

	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "page 1", segments[0].Part)
	assert.Equal(t, "page 2", segments[1].Part)
	for _, seg := range segments {
		assert.Equal(t, "report.pdf", seg.Filename)
		assert.NotEmpty(t, seg.Text)
	}
}

func TestLoad_PDFRejectsNonPDFContent(t *testing.T) {
	service := newTestService()
	// Declared tag wins over content: a text file tagged pdf fails the load
	path := writeFile(t, "fake.pdf", []byte("just some text, not a pdf"))

	_, err := service.Load(path, models.FileTypePDF)

	require.Error(t, err)
	var procErr *models.ProcessingError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "load", procErr.Stage)
}

func TestLoad_DOCXExtractsParagraphs(t *testing.T) {
	service := newTestService()

	path := filepath.Join(t.TempDir(), "memo.docx")
	w := docx.New().WithDefaultTheme()
	w.AddParagraph().AddText("First paragraph of the memo.")
	w.AddParagraph().AddText("Second paragraph with more detail.")

	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = w.WriteTo(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	segments, err := service.Load(path, models.FileTypeDOCX)

	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Contains(t, segments[0].Text, "First paragraph of the memo.")
	assert.Contains(t, segments[0].Text, "Second paragraph with more detail.")
}

func TestLoad_UnsupportedType(t *testing.T) {
	service := newTestService()
	path := writeFile(t, "data.csv", []byte("a,b,c"))

	_, err := service.Load(path, "csv")

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnsupportedFileType)
}

func TestLoad_MissingFile(t *testing.T) {
	service := newTestService()

	_, err := service.Load(filepath.Join(t.TempDir(), "absent.txt"), models.FileTypeText)

	require.Error(t, err)
}
