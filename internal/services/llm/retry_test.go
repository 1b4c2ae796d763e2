package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429 status", errors.New("Error 429, Message: quota exceeded"), true},
		{"resource exhausted", errors.New("rpc error: code = RESOURCE_EXHAUSTED"), true},
		{"claude rate limit", errors.New("rate_limit_error: Number of requests has exceeded your rate limit"), true},
		{"quota", errors.New("quota exceeded for metric"), true},
		{"other error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimitError(tt.err))
		})
	}
}

func TestExtractRetryDelay(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{
			name: "gemini please retry",
			err:  errors.New("Error 429, Message: You exceeded your quota. Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED"),
			want: time.Duration(45.387061394 * float64(time.Second)),
		},
		{
			name: "retryDelay field",
			err:  errors.New("details: retryDelay: 30s"),
			want: 30 * time.Second,
		},
		{
			name: "no delay in message",
			err:  errors.New("Error 429"),
			want: 0,
		},
		{
			name: "nil error",
			err:  nil,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractRetryDelay(tt.err))
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	config := NewDefaultRetryConfig()

	// First attempt uses the initial backoff
	assert.Equal(t, 45*time.Second, config.CalculateBackoff(0, 0))

	// Growth is capped at the max backoff
	assert.Equal(t, 67500*time.Millisecond, config.CalculateBackoff(1, 0))
	assert.Equal(t, 90*time.Second, config.CalculateBackoff(2, 0))
	assert.Equal(t, 90*time.Second, config.CalculateBackoff(10, 0))

	// API-provided delay replaces the base, plus a small buffer
	assert.Equal(t, 25*time.Second, config.CalculateBackoff(0, 20*time.Second))
}

func TestNewDefaultRetryConfig(t *testing.T) {
	config := NewDefaultRetryConfig()

	assert.Equal(t, DefaultMaxRetries, config.MaxRetries)
	assert.Equal(t, DefaultInitialBackoff, config.InitialBackoff)
	assert.Equal(t, DefaultMaxBackoff, config.MaxBackoff)
	assert.Equal(t, DefaultBackoffMultiplier, config.BackoffMultiplier)
}
