package interfaces

import (
	"context"
)

// LLMMode represents the operational mode of the LLM service
type LLMMode string

const (
	// LLMModeCloud indicates the service uses cloud-based LLM APIs
	LLMModeCloud LLMMode = "cloud"

	// LLMModeOffline indicates the service runs deterministically without
	// network access, used when no real API credential is configured
	LLMModeOffline LLMMode = "offline"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// ChatResult is a completed generation with provider-reported token usage.
// Token counts are zero when the provider does not report them.
type ChatResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens returns the combined prompt and completion token count.
func (r *ChatResult) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// StreamEvent is one element of a streaming generation. Delta carries
// incremental text; the final event carries either Result or Err and the
// channel closes after it.
type StreamEvent struct {
	Delta  string
	Result *ChatResult
	Err    error
}

// LLMService defines the interface for language model operations: embeddings
// and chat completions, buffered or streamed. Implementations are either
// cloud-backed (Gemini, Claude) or offline deterministic.
type LLMService interface {
	// Embed generates an embedding vector for the given text. The dimension
	// is fixed per service instance, see Dimension.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	// Result[i] always corresponds to texts[i].
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector size.
	Dimension() int

	// Chat generates a buffered completion from the conversation history.
	Chat(ctx context.Context, messages []Message) (*ChatResult, error)

	// SupportsStreaming reports whether ChatStream is backed by a native
	// provider stream. Callers use this to choose between the streaming and
	// buffered generation paths.
	SupportsStreaming() bool

	// ChatStream generates a completion incrementally. A non-nil error from
	// the call itself means the stream never started; after a successful
	// return the channel carries zero or more Delta events followed by
	// exactly one event holding Result or Err.
	ChatStream(ctx context.Context, messages []Message) (<-chan StreamEvent, error)

	// GetMode returns the current operational mode of the LLM service.
	GetMode() LLMMode

	// HealthCheck verifies the service can handle requests.
	HealthCheck(ctx context.Context) error

	// Close releases resources and performs cleanup operations.
	Close() error
}
