package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPSearcher implements Searcher against a vector search service over HTTP
type HTTPSearcher struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSearcher(baseURL string, timeout time.Duration) *HTTPSearcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPSearcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Search implements Searcher
func (s *HTTPSearcher) Search(ctx context.Context, query string, collection string, threshold float64, limit int) ([]Chunk, error) {
	requestBody := map[string]interface{}{
		"query":      query,
		"collection": collection,
		"threshold":  threshold,
		"limit":      limit,
	}
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/search", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	response, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vector search returned status %d", response.StatusCode)
	}

	var responseBody struct {
		Results []struct {
			Text   string  `json:"text"`
			Source string  `json:"source"`
			Title  string  `json:"title"`
			Score  float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(response.Body).Decode(&responseBody); err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(responseBody.Results))
	for _, result := range responseBody.Results {
		chunks = append(chunks, Chunk{
			Text:            result.Text,
			Source:          result.Source,
			Title:           result.Title,
			SimilarityScore: result.Score,
		})
	}
	return chunks, nil
}
