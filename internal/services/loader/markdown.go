package loader

import (
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/cognita/internal/models"
)

func (s *Service) loadMarkdown(path, filename string) ([]models.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewProcessingError("load", err)
	}

	// Markdown is decoded best-effort: a stray binary byte degrades to a
	// substitution rune instead of failing the document
	content, _ := decodeText(data, false)

	plain, err := markdownToPlainText([]byte(content))
	if err != nil {
		return nil, models.NewProcessingError("load", err)
	}

	return []models.Segment{{Text: plain, Filename: filename}}, nil
}

// markdownToPlainText walks the goldmark AST and collects the text of
// headings, paragraphs, lists and code blocks, dropping markup.
func markdownToPlainText(source []byte) (string, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var sb strings.Builder

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			// Block boundaries become newlines so sentences from different
			// blocks never run together
			switch n.(type) {
			case *ast.Heading, *ast.Paragraph, *ast.ListItem, *ast.Blockquote:
				sb.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteString("\n")
			}
		case *ast.String:
			sb.Write(node.Value)
		case *ast.CodeSpan:
			// Children are Text nodes, handled above
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			block := n.(interface{ Lines() *text.Segments })
			lines := block.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(source))
			}
		case *ast.AutoLink:
			sb.Write(node.URL(source))
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(sb.String()), nil
}
