// Package retrieval fetches knowledge snippets relevant to the reconciled
// input. Retrieval is an accuracy enhancement: every failure here degrades to
// an empty chunk list instead of failing the pipeline.
package retrieval

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/medscribe/medscribe/template"
)

const (
	// DefaultScoreThreshold filters weakly related chunks.
	DefaultScoreThreshold = 0.7
	// DefaultMaxChunks bounds how much context joins the prompt.
	DefaultMaxChunks = 5
	// DefaultTimeout bounds the vector service call.
	DefaultTimeout = 10 * time.Second
)

// Chunk is one retrieved knowledge snippet. Produced transiently per request
// and never persisted by the pipeline.
type Chunk struct {
	Text            string  `json:"text"`
	Source          string  `json:"source"`
	Title           string  `json:"title,omitempty"`
	SimilarityScore float64 `json:"similarity_score"`
}

// Searcher is the vector search collaborator.
type Searcher interface {
	Search(ctx context.Context, query string, collection string, threshold float64, limit int) ([]Chunk, error)
}

// Retriever applies the template's retrieval config on top of a Searcher
type Retriever struct {
	searcher Searcher
	timeout  time.Duration
}

func NewRetriever(searcher Searcher, timeout time.Duration) *Retriever {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Retriever{searcher: searcher, timeout: timeout}
}

// Retrieve fetches context chunks for queryText according to cfg. A nil or
// disabled config yields no chunks; a searcher failure is logged and yields
// no chunks.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, cfg *template.RetrievalConfig) []Chunk {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	if r.searcher == nil {
		log.Printf("[Retrieval] ⚠️  Template %q requests context but no search service is configured", cfg.Collection)
		return nil
	}

	threshold := cfg.ScoreThreshold
	if threshold <= 0 {
		threshold = DefaultScoreThreshold
	}
	maxChunks := cfg.MaxChunks
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	chunks, err := r.searcher.Search(ctx, queryText, cfg.Collection, threshold, maxChunks)
	if err != nil {
		log.Printf("[Retrieval] ⚠️  Vector search unavailable, continuing without context: %v", err)
		sentry.CaptureException(err)
		return nil
	}

	// The searcher may ignore the threshold or limit; enforce both here.
	filtered := make([]Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.SimilarityScore >= threshold {
			filtered = append(filtered, chunk)
		}
		if len(filtered) == maxChunks {
			break
		}
	}
	return filtered
}
