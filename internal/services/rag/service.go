package rag

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cognita/internal/common"
	"github.com/ternarybob/cognita/internal/interfaces"
	"github.com/ternarybob/cognita/internal/models"
)

// Service implements retrieval-augmented question answering over one or more
// collections.
type Service struct {
	config      *common.Config
	vectorStore interfaces.VectorService
	llmService  interfaces.LLMService
	logger      arbor.ILogger
}

var _ interfaces.RAGService = (*Service)(nil)

// streamErrorMessage is the only error text a terminal stream event carries.
// The underlying failure goes to the log, not to the wire.
const streamErrorMessage = "query failed"

// NewService creates a new RAG service
func NewService(config *common.Config, vectorStore interfaces.VectorService, llmService interfaces.LLMService, logger arbor.ILogger) *Service {
	return &Service{
		config:      config,
		vectorStore: vectorStore,
		llmService:  llmService,
		logger:      logger,
	}
}

// Query runs retrieval and buffered generation.
func (s *Service) Query(ctx context.Context, req interfaces.QueryRequest) (*models.Answer, error) {
	sources, err := s.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	messages := buildMessages(req.Question, sources, s.config.RAG.MaxContextChars)

	result, err := s.llmService.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	return s.buildAnswer(result, sources), nil
}

// StreamQuery runs the same pipeline incrementally. Sources are emitted
// first, then tokens, then exactly one terminal event. When the provider has
// no native stream, or its stream fails before producing any text, the answer
// is generated buffered and replayed as a single token.
func (s *Service) StreamQuery(ctx context.Context, req interfaces.QueryRequest) (<-chan models.QueryEvent, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	events := make(chan models.QueryEvent)

	common.SafeGo(s.logger, "rag-stream", func() {
		defer close(events)
		s.runStream(ctx, req, events)
	})

	return events, nil
}

func (s *Service) runStream(ctx context.Context, req interfaces.QueryRequest, events chan<- models.QueryEvent) {
	sources, err := s.retrieve(ctx, req)
	if err != nil {
		s.emitError(ctx, events, "retrieve", err)
		return
	}

	if !s.emit(ctx, events, models.QueryEvent{Type: models.EventSources, Sources: sources}) {
		return
	}

	messages := buildMessages(req.Question, sources, s.config.RAG.MaxContextChars)

	if !s.llmService.SupportsStreaming() {
		s.streamBuffered(ctx, messages, sources, events)
		return
	}

	stream, err := s.llmService.ChatStream(ctx, messages)
	if err != nil {
		// Stream never started, fall back to buffered generation.
		s.logger.Warn().Err(err).Msg("Streaming unavailable, falling back to buffered generation")
		s.streamBuffered(ctx, messages, sources, events)
		return
	}

	var answerText string
	tokensEmitted := false

	for event := range stream {
		switch {
		case event.Err != nil:
			if !tokensEmitted {
				// Failed before producing text, the buffered path can still
				// answer without the client seeing a partial answer.
				s.logger.Warn().Err(event.Err).Msg("Stream failed before first token, falling back to buffered generation")
				s.streamBuffered(ctx, messages, sources, events)
				return
			}
			s.emitError(ctx, events, "stream", event.Err)
			return

		case event.Result != nil:
			answer := s.buildAnswer(event.Result, sources)
			if answer.Text == "" {
				answer.Text = answerText
			}
			s.emit(ctx, events, models.QueryEvent{Type: models.EventDone, Answer: answer})
			return

		case event.Delta != "":
			answerText += event.Delta
			if !s.emit(ctx, events, models.QueryEvent{Type: models.EventToken, Token: event.Delta}) {
				return
			}
			tokensEmitted = true
		}
	}

	// Provider closed the stream without a terminal event. Surface what we
	// have rather than leaving the client hanging.
	s.emit(ctx, events, models.QueryEvent{
		Type:   models.EventDone,
		Answer: &models.Answer{Text: answerText, Sources: sources, TokensUsed: estimateTokens(answerText)},
	})
}

// streamBuffered generates the full answer and replays it as one token event
// followed by done, preserving the streaming envelope.
func (s *Service) streamBuffered(ctx context.Context, messages []interfaces.Message, sources []models.SourceChunk, events chan<- models.QueryEvent) {
	result, err := s.llmService.Chat(ctx, messages)
	if err != nil {
		s.emitError(ctx, events, "generate", err)
		return
	}

	if result.Text != "" {
		if !s.emit(ctx, events, models.QueryEvent{Type: models.EventToken, Token: result.Text}) {
			return
		}
	}

	s.emit(ctx, events, models.QueryEvent{Type: models.EventDone, Answer: s.buildAnswer(result, sources)})
}

// retrieve searches every requested collection and merges the hits into one
// ranked list of sources. Collections the caller cannot see are the handler's
// concern; by this point the IDs are trusted.
func (s *Service) retrieve(ctx context.Context, req interfaces.QueryRequest) ([]models.SourceChunk, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.config.RAG.TopK
	}

	perCollection := make([][]models.ScoredChunk, 0, len(req.CollectionIDs))
	for _, collectionID := range req.CollectionIDs {
		hits, err := s.vectorStore.Search(ctx, collectionID, req.Question, topK)
		if err != nil {
			return nil, fmt.Errorf("search failed for collection %d: %w", collectionID, err)
		}
		perCollection = append(perCollection, hits)
	}

	merged := mergeResults(perCollection, topK)

	s.logger.Debug().
		Int("collections", len(req.CollectionIDs)).
		Int("sources", len(merged)).
		Msg("Retrieved context passages")

	return toSources(merged), nil
}

func (s *Service) buildAnswer(result *interfaces.ChatResult, sources []models.SourceChunk) *models.Answer {
	tokens := result.TotalTokens()
	if tokens == 0 {
		tokens = estimateTokens(result.Text)
	}
	return &models.Answer{
		Text:       result.Text,
		Sources:    sources,
		TokensUsed: tokens,
	}
}

// emitError logs the detailed failure and terminates the stream with the
// generic error message.
func (s *Service) emitError(ctx context.Context, events chan<- models.QueryEvent, stage string, err error) {
	s.logger.Error().Err(err).Str("stage", stage).Msg("Streaming query failed")
	s.emit(ctx, events, models.QueryEvent{Type: models.EventError, Error: streamErrorMessage})
}

// emit sends an event unless the context is already cancelled. Returns false
// when the send was abandoned.
func (s *Service) emit(ctx context.Context, events chan<- models.QueryEvent, event models.QueryEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func validateRequest(req interfaces.QueryRequest) error {
	if req.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if len(req.CollectionIDs) == 0 {
		return fmt.Errorf("at least one collection is required")
	}
	return nil
}

// estimateTokens approximates usage when the provider reports none.
func estimateTokens(text string) int {
	return len(text) / 4
}
