package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/medscribe/medscribe/config"
	"github.com/medscribe/medscribe/server"
)

const TRUE = "true"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file from current directory")
	} else {
		log.Printf("Note: .env file not found or could not be loaded: %v", err)
	}

	cfg := config.DefaultConfig()

	configPath := flag.String("config", "", "Path to JSON config file")
	flag.Parse()

	if *configPath != "" {
		loadConfigFromFile(*configPath, cfg)
	}

	// Override configuration with environment variables
	loadConfigFromEnv(cfg)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Printf("Warning: Failed to initialize Sentry: %v", err)
		} else {
			log.Println("Sentry error reporting enabled")
		}
	}

	srv, err := server.NewServer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Printf("Failed to close server: %v", err)
		}
	}()

	srv.StartWithErrorHandling()
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(path string, cfg *config.Config) {
	// #nosec G304 - Config file path is controlled by application, not user input
	file, err := os.Open(path)
	if err != nil {
		log.Printf("Failed to open config file: %v", err)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("Failed to close config file: %v", err)
		}
	}()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		log.Printf("Failed to decode config file: %v", err)
	}
}

// loadConfigFromEnv loads configuration from environment variables
func loadConfigFromEnv(cfg *config.Config) {
	loadApplicationConfig(cfg)
	loadDatabaseConfig(cfg)
	loadDetectorConfig(cfg)
	loadGenerationConfig(cfg)
	loadLoggingConfig(cfg)
}

// loadApplicationConfig loads application configuration from environment variables
func loadApplicationConfig(cfg *config.Config) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.ServerPort = port
	}
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		cfg.SentryDSN = dsn
	}
	if path := os.Getenv("AUDIT_DB_PATH"); path != "" {
		cfg.AuditDBPath = path
	}
	if baseURL := os.Getenv("RETRIEVAL_BASE_URL"); baseURL != "" {
		cfg.Retrieval.BaseURL = baseURL
	}
	if baseURL := os.Getenv("TRANSCRIPTION_BASE_URL"); baseURL != "" {
		cfg.Transcription.BaseURL = baseURL
	}
}

// loadDatabaseConfig loads database configuration from environment variables
func loadDatabaseConfig(cfg *config.Config) {
	if dbEnabled := os.Getenv("DB_ENABLED"); dbEnabled != "" {
		cfg.Database.Enabled = dbEnabled == TRUE
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Database.Port = p
		}
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.Database.Database = dbName
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.Username = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if sslMode := os.Getenv("DB_SSL_MODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}
}

// loadDetectorConfig loads PII detector configuration from environment variables
func loadDetectorConfig(cfg *config.Config) {
	if detectorName := os.Getenv("DETECTOR_NAME"); detectorName != "" {
		cfg.DetectorName = detectorName
	}
	if modelBaseURL := os.Getenv("MODEL_BASE_URL"); modelBaseURL != "" {
		cfg.ModelBaseURL = modelBaseURL
	}
	if modelPath := os.Getenv("ONNX_MODEL_PATH"); modelPath != "" {
		cfg.ONNXModelPath = modelPath
	}
	if tokenizerPath := os.Getenv("TOKENIZER_PATH"); tokenizerPath != "" {
		cfg.TokenizerPath = tokenizerPath
	}
}

// loadGenerationConfig loads generation provider configuration from environment variables
func loadGenerationConfig(cfg *config.Config) {
	if provider := os.Getenv("GENERATION_PROVIDER"); provider != "" {
		cfg.Generation.Provider = provider
	}

	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.Generation.OpenAI.BaseURL = baseURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.Generation.OpenAI.APIKey = apiKey
		log.Printf("Loaded OPENAI_API_KEY from environment (length: %d)", len(apiKey))
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.Generation.OpenAI.Model = model
	}

	if baseURL := os.Getenv("ANTHROPIC_BASE_URL"); baseURL != "" {
		cfg.Generation.Anthropic.BaseURL = baseURL
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		cfg.Generation.Anthropic.APIKey = apiKey
		log.Printf("Loaded ANTHROPIC_API_KEY from environment (length: %d)", len(apiKey))
	}
	if model := os.Getenv("ANTHROPIC_MODEL"); model != "" {
		cfg.Generation.Anthropic.Model = model
	}

	if timeout := os.Getenv("GENERATION_TIMEOUT_SECONDS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			cfg.Generation.TimeoutSeconds = t
		}
	}
}

// loadLoggingConfig loads logging configuration from environment variables
func loadLoggingConfig(cfg *config.Config) {
	if logRequests := os.Getenv("LOG_REQUESTS"); logRequests != "" {
		cfg.Logging.LogRequests = logRequests == TRUE
	}
	if logResponses := os.Getenv("LOG_RESPONSES"); logResponses != "" {
		cfg.Logging.LogResponses = logResponses == TRUE
	}
	if logPIIChanges := os.Getenv("LOG_PII_CHANGES"); logPIIChanges != "" {
		cfg.Logging.LogPIIChanges = logPIIChanges == TRUE
	}
	if logVerbose := os.Getenv("LOG_VERBOSE"); logVerbose != "" {
		cfg.Logging.LogVerbose = logVerbose == TRUE
	}
}
