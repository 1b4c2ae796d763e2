package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Queue       QueueConfig     `toml:"queue"`
	Storage     StorageConfig   `toml:"storage"`
	Ingest      IngestConfig    `toml:"ingest"`
	Embedding   EmbeddingConfig `toml:"embedding"`
	RAG         RAGConfig       `toml:"rag"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Logging     LoggingConfig   `toml:"logging"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host" validate:"required"`
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g., "1s" - how often workers poll for messages
	Concurrency       int    `toml:"concurrency" validate:"min=1"`
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g., "5m" - message visibility timeout for redelivery
	MaxReceive        int    `toml:"max_receive" validate:"min=1"`
	QueueName         string `toml:"queue_name" validate:"required"`
}

type StorageConfig struct {
	Badger     BadgerConfig     `toml:"badger"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type FilesystemConfig struct {
	Attachments string `toml:"attachments"` // Directory for uploaded document files
}

// IngestConfig controls the document processing pipeline
type IngestConfig struct {
	ChunkSize    int           `toml:"chunk_size" validate:"min=1"`    // Max chunk size in runes
	ChunkOverlap int           `toml:"chunk_overlap" validate:"min=0"` // Overlap between consecutive chunks in runes
	MaxFileSize  int64         `toml:"max_file_size"`                  // Max upload size in bytes
	ErrorMaxLen  int           `toml:"error_max_len"`                  // Truncation length for stored error messages
	Requeue      RequeueConfig `toml:"requeue"`
}

// RequeueConfig gates the sweep that re-enqueues documents stuck in
// processing after a crash. Off by default.
type RequeueConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"`  // Cron schedule format
	OlderThan string `toml:"older_than"` // e.g. "30m" - minimum age before a processing doc is considered stuck
}

// EmbeddingConfig contains embedding provider configuration
type EmbeddingConfig struct {
	Model     string `toml:"model"`                          // Embedding model (default: "gemini-embedding-001")
	Dimension int    `toml:"dimension" validate:"min=1"`     // Vector dimension
	BatchSize int    `toml:"batch_size" validate:"min=1"`    // Max texts per embedding request
}

// RAGConfig contains retrieval and generation defaults
type RAGConfig struct {
	TopK            int `toml:"top_k" validate:"min=1"`      // Default passages per query
	MaxContextChars int `toml:"max_context_chars"`           // Truncation length per passage in the prompt
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Generation model (default: "gemini-3-flash-preview")
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between requests (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Generation model (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 8192)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between requests (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=gemini claude"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// WebSocketConfig contains configuration for event streaming sockets
type WebSocketConfig struct {
	// Whitelist of event types to broadcast. Empty list allows all events.
	AllowedEvents []string `toml:"allowed_events"`
	// Throttle intervals for high-frequency events, event type -> duration string.
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in cognita.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Queue: QueueConfig{
			PollInterval:      "1s",
			Concurrency:       4,
			VisibilityTimeout: "5m",
			MaxReceive:        3,
			QueueName:         "cognita_ingest",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
			Filesystem: FilesystemConfig{
				Attachments: "./data/attachments",
			},
		},
		Ingest: IngestConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			MaxFileSize:  25 * 1024 * 1024, // 25MB
			ErrorMaxLen:  256,
			Requeue: RequeueConfig{
				Enabled:   false, // User must explicitly opt-in
				Schedule:  "*/10 * * * *",
				OlderThan: "30m",
			},
		},
		Embedding: EmbeddingConfig{
			Model:     "gemini-embedding-001",
			Dimension: 768,
			BatchSize: 32,
		},
		RAG: RAGConfig{
			TopK:            5,
			MaxContextChars: 1500,
		},
		Gemini: GeminiConfig{
			APIKey:      "", // User must provide API key (no fallback)
			Model:       "gemini-3-flash-preview",
			Timeout:     "5m",
			RateLimit:   "4s", // Default to 4s (15 RPM) for free tier
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   8192,
			Timeout:     "5m",
			RateLimit:   "1s",
			Temperature: 0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		WebSocket: WebSocketConfig{
			// Empty AllowedEvents allows all events
			AllowedEvents: []string{},
			ThrottleIntervals: map[string]string{
				"document.progress": "1s",
			},
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files, later files override
// earlier files. Priority: CLI flags > environment > last file > ... > defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks structural constraints on the loaded configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("invalid configuration: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("COGNITA_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("COGNITA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("COGNITA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Queue configuration
	if pollInterval := os.Getenv("COGNITA_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		config.Queue.PollInterval = pollInterval
	}
	if concurrency := os.Getenv("COGNITA_QUEUE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.Concurrency = c
		}
	}
	if visibilityTimeout := os.Getenv("COGNITA_QUEUE_VISIBILITY_TIMEOUT"); visibilityTimeout != "" {
		config.Queue.VisibilityTimeout = visibilityTimeout
	}
	if maxReceive := os.Getenv("COGNITA_QUEUE_MAX_RECEIVE"); maxReceive != "" {
		if mr, err := strconv.Atoi(maxReceive); err == nil {
			config.Queue.MaxReceive = mr
		}
	}
	if queueName := os.Getenv("COGNITA_QUEUE_NAME"); queueName != "" {
		config.Queue.QueueName = queueName
	}

	// Storage configuration
	if badgerPath := os.Getenv("COGNITA_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if attachments := os.Getenv("COGNITA_ATTACHMENTS_DIR"); attachments != "" {
		config.Storage.Filesystem.Attachments = attachments
	}

	// Ingest configuration
	if chunkSize := os.Getenv("COGNITA_INGEST_CHUNK_SIZE"); chunkSize != "" {
		if cs, err := strconv.Atoi(chunkSize); err == nil {
			config.Ingest.ChunkSize = cs
		}
	}
	if chunkOverlap := os.Getenv("COGNITA_INGEST_CHUNK_OVERLAP"); chunkOverlap != "" {
		if co, err := strconv.Atoi(chunkOverlap); err == nil {
			config.Ingest.ChunkOverlap = co
		}
	}
	if maxFileSize := os.Getenv("COGNITA_INGEST_MAX_FILE_SIZE"); maxFileSize != "" {
		if mfs, err := strconv.ParseInt(maxFileSize, 10, 64); err == nil {
			config.Ingest.MaxFileSize = mfs
		}
	}
	if enabled := os.Getenv("COGNITA_INGEST_REQUEUE_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Ingest.Requeue.Enabled = e
		}
	}

	// Embedding configuration
	if model := os.Getenv("COGNITA_EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}
	if dimension := os.Getenv("COGNITA_EMBEDDING_DIMENSION"); dimension != "" {
		if d, err := strconv.Atoi(dimension); err == nil {
			config.Embedding.Dimension = d
		}
	}

	// RAG configuration
	if topK := os.Getenv("COGNITA_RAG_TOP_K"); topK != "" {
		if k, err := strconv.Atoi(topK); err == nil {
			config.RAG.TopK = k
		}
	}

	// Logging configuration
	if level := os.Getenv("COGNITA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("COGNITA_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("COGNITA_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("COGNITA_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("COGNITA_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if timeout := os.Getenv("COGNITA_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if rateLimit := os.Getenv("COGNITA_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}
	if temperature := os.Getenv("COGNITA_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("COGNITA_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // COGNITA_ prefix takes priority
	}
	if model := os.Getenv("COGNITA_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("COGNITA_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("COGNITA_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}
	if rateLimit := os.Getenv("COGNITA_CLAUDE_RATE_LIMIT"); rateLimit != "" {
		config.Claude.RateLimit = rateLimit
	}
	if temperature := os.Getenv("COGNITA_CLAUDE_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Claude.Temperature = float32(t)
		}
	}

	// LLM provider configuration
	if provider := os.Getenv("COGNITA_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	// WebSocket configuration
	if allowedEvents := os.Getenv("COGNITA_WEBSOCKET_ALLOWED_EVENTS"); allowedEvents != "" {
		events := []string{}
		for _, e := range strings.Split(allowedEvents, ",") {
			if trimmed := strings.TrimSpace(e); trimmed != "" {
				events = append(events, trimmed)
			}
		}
		if len(events) > 0 {
			config.WebSocket.AllowedEvents = events
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
