package config

import "fmt"

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	LogRequests   bool // Log inbound message metadata
	LogResponses  bool // Log rendered document metadata
	LogPIIChanges bool // Log PII detection decisions
	LogVerbose    bool // Log detailed pipeline stage transitions
}

// DatabaseConfig holds Postgres configuration for templates and the usage ledger
type DatabaseConfig struct {
	Enabled      bool   // Whether to use Postgres; in-memory stores otherwise
	Host         string // Database host
	Port         int    // Database port
	Database     string // Database name
	Username     string // Database username
	Password     string // Database password
	SSLMode      string // SSL mode (disable, require, etc.)
	MaxOpenConns int    // Maximum open connections
	MaxIdleConns int    // Maximum idle connections
	MaxLifetime  int    // Connection max lifetime in seconds
}

// DSN builds the lib/pq connection string
func (dc DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		dc.Host, dc.Port, dc.Database, dc.Username, dc.Password, dc.SSLMode)
}

// ProviderConfig holds one generation provider's connection settings
type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// GenerationConfig selects and tunes the generation provider
type GenerationConfig struct {
	Provider          string // "openai" or "anthropic"
	OpenAI            ProviderConfig
	Anthropic         ProviderConfig
	TimeoutSeconds    int
	RequestsPerSecond float64
	Temperature       float64
	MaxTokens         int
}

// RetrievalConfig holds the vector search service connection settings
type RetrievalConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// TranscriptionConfig holds the speech-to-text service connection settings
type TranscriptionConfig struct {
	BaseURL string
}

// Config holds all configuration for the message processing service
type Config struct {
	ServerPort    string
	DetectorName  string
	ModelBaseURL  string
	ONNXModelPath string
	TokenizerPath string
	AuditDBPath   string
	SentryDSN     string
	Database      DatabaseConfig
	Generation    GenerationConfig
	Retrieval     RetrievalConfig
	Transcription TranscriptionConfig
	Logging       LoggingConfig
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ServerPort:    ":8080",
		DetectorName:  "rule_detector",
		ModelBaseURL:  "http://localhost:8000",
		ONNXModelPath: "model/quantized/model_quantized.onnx",
		TokenizerPath: "model/quantized/tokenizer.json",
		AuditDBPath:   "audit.db",
		Database: DatabaseConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         5432,
			Database:     "medscribe",
			Username:     "postgres",
			Password:     "",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 25,
			MaxLifetime:  300,
		},
		Generation: GenerationConfig{
			Provider: "openai",
			OpenAI: ProviderConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o",
			},
			Anthropic: ProviderConfig{
				BaseURL: "https://api.anthropic.com/v1",
				Model:   "claude-sonnet-4-20250514",
			},
			TimeoutSeconds:    120,
			RequestsPerSecond: 5,
			Temperature:       0.2,
			MaxTokens:         4096,
		},
		Retrieval: RetrievalConfig{
			BaseURL:        "",
			TimeoutSeconds: 10,
		},
		Transcription: TranscriptionConfig{
			BaseURL: "",
		},
		Logging: LoggingConfig{
			LogRequests:   true,
			LogResponses:  true,
			LogPIIChanges: true,
			LogVerbose:    false,
		},
	}
}

// ActiveProvider returns the connection settings for the selected provider
func (gc GenerationConfig) ActiveProvider() ProviderConfig {
	if gc.Provider == "anthropic" {
		return gc.Anthropic
	}
	return gc.OpenAI
}
