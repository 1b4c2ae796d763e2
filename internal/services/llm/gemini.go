package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/ternarybob/cognita/internal/interfaces"
)

// convertMessagesToGemini maps chat messages to Gemini contents, pulling the
// first system message out as the system instruction.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		var geminiRole string
		switch msg.Role {
		case "assistant":
			geminiRole = genai.RoleModel
		default:
			geminiRole = genai.RoleUser
		}

		contents = append(contents, genai.NewContentFromText(msg.Content, genai.Role(geminiRole)))
	}

	return contents, systemText, nil
}

func (f *ProviderFactory) buildGeminiConfig(request *ContentRequest, systemText string) *genai.GenerateContentConfig {
	temp := request.Temperature
	if temp <= 0 {
		temp = f.geminiConfig.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}
	return config
}

// generateWithGemini generates content using Gemini API
func (f *ProviderFactory) generateWithGemini(ctx context.Context, request *ContentRequest, model string) (*ContentResponse, error) {
	client, err := f.GetGeminiClient(ctx)
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = f.geminiConfig.Model
	}

	contents, systemText, err := convertMessagesToGemini(request.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}
	if request.SystemInstruction != "" {
		systemText = request.SystemInstruction
	}

	config := f.buildGeminiConfig(request, systemText)

	var resp *genai.GenerateContentResponse
	var apiErr error
	retryConfig := NewDefaultRetryConfig()

	for attempt := 0; attempt <= retryConfig.MaxRetries; attempt++ {
		resp, apiErr = client.Models.GenerateContent(ctx, model, contents, config)
		if apiErr == nil {
			break
		}
		if attempt == retryConfig.MaxRetries {
			break
		}

		var backoff time.Duration
		if IsRateLimitError(apiErr) {
			backoff = retryConfig.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		} else {
			backoff = time.Duration(attempt+1) * 2 * time.Second
		}

		f.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Gemini API call")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return nil, fmt.Errorf("Gemini API call failed after %d retries: %w", retryConfig.MaxRetries, apiErr)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}
	responseText := resp.Text()
	if responseText == "" {
		return nil, fmt.Errorf("empty text in Gemini response")
	}

	result := &ContentResponse{
		Text:     responseText,
		Provider: ProviderGemini,
		Model:    model,
	}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}

// streamWithGemini streams content from the Gemini API, forwarding text
// deltas to fn. Streaming is not retried: a failure surfaces immediately so
// callers can decide between erroring out and falling back to buffered mode.
func (f *ProviderFactory) streamWithGemini(ctx context.Context, request *ContentRequest, model string, fn StreamFunc) (*ContentResponse, error) {
	client, err := f.GetGeminiClient(ctx)
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = f.geminiConfig.Model
	}

	contents, systemText, err := convertMessagesToGemini(request.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}
	if request.SystemInstruction != "" {
		systemText = request.SystemInstruction
	}

	config := f.buildGeminiConfig(request, systemText)

	result := &ContentResponse{
		Provider: ProviderGemini,
		Model:    model,
	}

	var full string
	for resp, err := range client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			return nil, fmt.Errorf("Gemini stream failed: %w", err)
		}
		if resp == nil {
			continue
		}
		if resp.UsageMetadata != nil {
			result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
			result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}

		delta := resp.Text()
		if delta == "" {
			continue
		}
		full += delta
		if err := fn(delta); err != nil {
			return nil, err
		}
	}

	if full == "" {
		return nil, fmt.Errorf("empty response from Gemini stream")
	}

	result.Text = full
	return result, nil
}

// embedWithGemini generates embeddings for the texts in order, with the
// same bounded retry as generation. Dimension is enforced server-side via
// OutputDimensionality.
func (f *ProviderFactory) embedWithGemini(ctx context.Context, model string, dimension int, texts []string) ([][]float32, error) {
	client, err := f.GetGeminiClient(ctx)
	if err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	outputDim := int32(dimension)
	embeddingConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	var result *genai.EmbedContentResponse
	var apiErr error
	retryConfig := NewDefaultRetryConfig()

	for attempt := 0; attempt <= retryConfig.MaxRetries; attempt++ {
		result, apiErr = client.Models.EmbedContent(ctx, model, contents, embeddingConfig)
		if apiErr == nil {
			break
		}
		if attempt == retryConfig.MaxRetries {
			break
		}

		var backoff time.Duration
		if IsRateLimitError(apiErr) {
			backoff = retryConfig.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		} else {
			backoff = time.Duration(attempt+1) * 2 * time.Second
		}

		f.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Gemini embedding call")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return nil, fmt.Errorf("Gemini embedding call failed after %d retries: %w", retryConfig.MaxRetries, apiErr)
	}

	return flattenEmbedResponse(result, len(texts))
}

// flattenEmbedResponse turns the API response into one vector per input
// text, rejecting nil or partial responses.
func flattenEmbedResponse(result *genai.EmbedContentResponse, count int) ([][]float32, error) {
	if result == nil {
		return nil, fmt.Errorf("empty embedding response for %d texts", count)
	}
	if len(result.Embeddings) != count {
		return nil, fmt.Errorf("embedding count mismatch: requested %d, got %d", count, len(result.Embeddings))
	}

	embeddings := make([][]float32, count)
	for i, emb := range result.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}
