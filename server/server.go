// Package server exposes the message processing pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/medscribe/medscribe/config"
	"github.com/medscribe/medscribe/generation"
	"github.com/medscribe/medscribe/pii"
	detectors "github.com/medscribe/medscribe/pii/detectors"
	"github.com/medscribe/medscribe/pipeline"
	"github.com/medscribe/medscribe/retrieval"
	"github.com/medscribe/medscribe/template"
	"github.com/medscribe/medscribe/transcript"
	"github.com/medscribe/medscribe/usage"
)

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	handler  *Handler
	detector detectors.Detector
	audit    pii.AuditLog
}

// NewServer wires the pipeline from configuration and creates the server
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	if err := cfg.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	detector, err := buildDetector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	redactor := pii.NewService(detector)

	store, ledger, err := buildStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	resolver := template.NewResolver(store, time.Minute)
	accountant := usage.NewAccountant(ledger)

	var audit pii.AuditLog
	if cfg.AuditDBPath != "" {
		audit, err = pii.NewSQLiteAuditLog(ctx, cfg.AuditDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	var searcher retrieval.Searcher
	if cfg.Retrieval.BaseURL != "" {
		searcher = retrieval.NewHTTPSearcher(cfg.Retrieval.BaseURL,
			time.Duration(cfg.Retrieval.TimeoutSeconds)*time.Second)
	}
	retriever := retrieval.NewRetriever(searcher, time.Duration(cfg.Retrieval.TimeoutSeconds)*time.Second)

	providerCfg := cfg.Generation.ActiveProvider()
	provider, err := generation.NewProvider(cfg.Generation.Provider, providerCfg.BaseURL, providerCfg.APIKey, providerCfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation provider: %w", err)
	}
	generator := generation.NewClient(provider,
		time.Duration(cfg.Generation.TimeoutSeconds)*time.Second, cfg.Generation.RequestsPerSecond)

	profile := generation.Profile{
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
	}

	var transcriber transcript.Transcriber
	if cfg.Transcription.BaseURL != "" {
		transcriber = transcript.NewHTTPTranscriber(cfg.Transcription.BaseURL, 0)
	}

	p := pipeline.New(redactor, resolver, retriever, generator, accountant, audit, profile)

	return &Server{
		config:   cfg,
		handler:  NewHandler(p, transcriber, cfg.Logging.LogRequests),
		detector: detector,
		audit:    audit,
	}, nil
}

// buildDetector creates the configured PII detector
func buildDetector(cfg *config.Config) (detectors.Detector, error) {
	detectorConfig := make(map[string]interface{})
	switch cfg.DetectorName {
	case detectors.DetectorNameModel:
		detectorConfig["base_url"] = cfg.ModelBaseURL
	case detectors.DetectorNameONNXModel:
		detectorConfig["model_path"] = cfg.ONNXModelPath
		detectorConfig["tokenizer_path"] = cfg.TokenizerPath
	case detectors.DetectorNameRule:
		// Rule detector carries its built-in pattern set
	default:
		return nil, fmt.Errorf("invalid detector name: %s", cfg.DetectorName)
	}
	return detectors.NewDetector(cfg.DetectorName, detectorConfig)
}

// buildStores creates the template store and usage ledger, backed by Postgres
// when the database is enabled and in-memory otherwise
func buildStores(ctx context.Context, cfg *config.Config) (template.Store, usage.Ledger, error) {
	if cfg.Database.Enabled {
		store, err := template.NewPostgresStore(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open template store: %w", err)
		}
		ledger, err := usage.NewPostgresLedger(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open usage ledger: %w", err)
		}
		return store, ledger, nil
	}

	store := template.NewMemoryStore()
	store.SeedDefaults()
	return store, usage.NewMemoryLedger(), nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting message processing service on port %s", s.config.ServerPort)
	log.Printf("PII detection enabled with detector: %s", s.detector.GetName())
	log.Printf("Generation provider: %s", s.config.Generation.Provider)

	if s.config.Database.Enabled {
		log.Println("Database storage enabled")
	} else {
		log.Println("Using in-memory storage")
	}
	if s.config.Retrieval.BaseURL != "" {
		log.Printf("Context retrieval enabled via %s", s.config.Retrieval.BaseURL)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthCheck)
	mux.Handle("/v1/messages", s.handler)

	// Write timeout must outlast the generation call
	server := &http.Server{
		Addr:         s.config.ServerPort,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(s.config.Generation.TimeoutSeconds+60) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// StartWithErrorHandling starts the server with proper error handling
func (s *Server) StartWithErrorHandling() {
	if err := s.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// healthCheck provides a simple health check endpoint
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"healthy","service":"Medscribe Pipeline"}`)); err != nil {
		log.Printf("Failed to write health check response: %v", err)
	}
}

// Close releases the server's resources
func (s *Server) Close() error {
	if s.detector != nil {
		if err := s.detector.Close(); err != nil {
			return err
		}
	}
	if s.audit != nil {
		return s.audit.Close()
	}
	return nil
}
