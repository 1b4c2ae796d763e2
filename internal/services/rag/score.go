package rag

import (
	"sort"

	"github.com/ternarybob/cognita/internal/models"
)

// NormalizeSimilarity maps a raw backend distance to a similarity score.
// Distance 0 maps to 1.0 and the score decays toward zero but never reaches
// it, so every retrieved passage keeps a positive, comparable score.
func NormalizeSimilarity(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1.0 / (1.0 + distance)
}

// mergeResults combines per-collection hits into one list ordered by
// ascending distance and trims it to limit. Ties keep the earlier
// collection's hit first, which makes multi-collection queries stable.
func mergeResults(perCollection [][]models.ScoredChunk, limit int) []models.ScoredChunk {
	total := 0
	for _, hits := range perCollection {
		total += len(hits)
	}
	merged := make([]models.ScoredChunk, 0, total)
	for _, hits := range perCollection {
		merged = append(merged, hits...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Distance < merged[j].Distance
	})

	if limit > 0 && limit < len(merged) {
		merged = merged[:limit]
	}
	return merged
}

// toSources converts scored chunks to caller-facing sources with normalized
// similarity, preserving order.
func toSources(chunks []models.ScoredChunk) []models.SourceChunk {
	sources := make([]models.SourceChunk, len(chunks))
	for i, chunk := range chunks {
		sources[i] = models.SourceChunk{
			Text:       chunk.Text,
			Document:   chunk.Filename,
			Similarity: NormalizeSimilarity(chunk.Distance),
		}
	}
	return sources
}
