package rag

import (
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/cognita/internal/interfaces"
	"github.com/ternarybob/cognita/internal/models"
)

const systemPrompt = `You are a helpful assistant that answers questions using only the provided context passages.
If the context does not contain the answer, say so plainly instead of guessing.
Cite passages by their number, for example [1], when they support your answer.`

// passageHeader is the metadata block rendered above each passage so the
// model can attribute answers to documents.
type passageHeader struct {
	Passage    int     `yaml:"passage"`
	Document   string  `yaml:"document"`
	Similarity float64 `yaml:"similarity"`
}

// buildMessages assembles the conversation for generation: a system
// instruction, then one user message holding the numbered context passages
// and the question.
func buildMessages(question string, sources []models.SourceChunk, maxContextChars int) []interfaces.Message {
	var sb strings.Builder

	if len(sources) == 0 {
		sb.WriteString("No context passages were retrieved for this question.\n\n")
	} else {
		sb.WriteString("Context passages:\n\n")
		for i, source := range sources {
			header := passageHeader{
				Passage:    i + 1,
				Document:   source.Document,
				Similarity: round3(source.Similarity),
			}
			meta, err := yaml.Marshal(header)
			if err == nil {
				sb.WriteString("---\n")
				sb.Write(meta)
				sb.WriteString("---\n")
			}
			sb.WriteString(truncateRunes(source.Text, maxContextChars))
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("Question: ")
	sb.WriteString(question)

	return []interfaces.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: sb.String()},
	}
}

func truncateRunes(text string, maxLen int) string {
	if maxLen <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
