package llm

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cognita/internal/interfaces"
)

// OfflineService implements LLMService without network access. Embeddings
// are derived from hashes of the input text so identical text always maps to
// the identical vector; chat assembles a deterministic answer from the
// conversation. Used when no real API credential is configured, which keeps
// the full pipeline runnable in development and in tests.
type OfflineService struct {
	dimension int
	logger    arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.LLMService = (*OfflineService)(nil)

// NewOfflineService creates a deterministic offline LLM service
func NewOfflineService(dimension int, logger arbor.ILogger) *OfflineService {
	if dimension <= 0 {
		dimension = 768
	}
	return &OfflineService{
		dimension: dimension,
		logger:    logger,
	}
}

// Embed derives a unit-length vector from the text. Each lane hashes the
// text with its lane index so lanes vary independently.
func (s *OfflineService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, s.dimension)
	var norm float64
	for i := range vec {
		h := xxhash.Sum64String(strconv.Itoa(i) + "\x00" + text)
		// Map the hash onto [-1, 1)
		v := float64(h%200000)/100000.0 - 1.0
		vec[i] = float32(v)
		norm += v * v
	}

	if norm > 0 {
		scale := float32(1.0 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return vec, nil
}

// EmbedBatch embeds each text in order.
func (s *OfflineService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimension returns the embedding vector size.
func (s *OfflineService) Dimension() int {
	return s.dimension
}

// Chat produces a deterministic answer built from the last user message and
// the presence of system context.
func (s *OfflineService) Chat(ctx context.Context, messages []interfaces.Message) (*interfaces.ChatResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty")
	}

	question := ""
	contextChars := 0
	for _, msg := range messages {
		switch msg.Role {
		case "user":
			question = msg.Content
		case "system":
			contextChars += len(msg.Content)
		}
	}
	if question == "" {
		return nil, fmt.Errorf("at least one message must have role 'user'")
	}

	summary := question
	if r := []rune(summary); len(r) > 120 {
		summary = string(r[:120]) + "..."
	}

	text := fmt.Sprintf(
		"Offline mode response. No generation provider is configured, so this answer is synthesized locally. Question received: %s (context size: %d characters)",
		summary, contextChars)

	return &interfaces.ChatResult{
		Text:             text,
		PromptTokens:     estimateTokens(messages),
		CompletionTokens: len(text) / 4,
	}, nil
}

// SupportsStreaming is true: offline mode streams by word so the streaming
// code path stays exercised without a provider.
func (s *OfflineService) SupportsStreaming() bool {
	return true
}

// ChatStream emits the offline answer word by word, then the final result.
func (s *OfflineService) ChatStream(ctx context.Context, messages []interfaces.Message) (<-chan interfaces.StreamEvent, error) {
	result, err := s.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	events := make(chan interfaces.StreamEvent)
	go func() {
		defer close(events)

		words := strings.SplitAfter(result.Text, " ")
		for _, word := range words {
			if word == "" {
				continue
			}
			select {
			case events <- interfaces.StreamEvent{Delta: word}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case events <- interfaces.StreamEvent{Result: result}:
		case <-ctx.Done():
		}
	}()

	return events, nil
}

// GetMode returns LLMModeOffline.
func (s *OfflineService) GetMode() interfaces.LLMMode {
	return interfaces.LLMModeOffline
}

// HealthCheck always succeeds offline.
func (s *OfflineService) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *OfflineService) Close() error {
	return nil
}

func estimateTokens(messages []interfaces.Message) int {
	total := 0
	for _, msg := range messages {
		total += len(msg.Content)
	}
	return total / 4
}
