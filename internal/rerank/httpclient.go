package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// HTTPReranker calls a cross-encoder rerank endpoint. The endpoint accepts a
// query plus documents and returns per-document relevance scores.
type HTTPReranker struct {
	endpoint string
	model    string
	client   *http.Client
	logger   *zap.Logger
}

// HTTPOption configures an HTTPReranker.
type HTTPOption func(*HTTPReranker)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(r *HTTPReranker) { r.client = client }
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) HTTPOption {
	return func(r *HTTPReranker) { r.logger = l }
}

// NewHTTPReranker creates a reranker that posts to endpoint using model.
func NewHTTPReranker(endpoint, model string, opts ...HTTPOption) *HTTPReranker {
	r := &HTTPReranker{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: defaultTimeout},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores candidates against query. Results are sorted by score
// descending.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Result, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Text
	}
	body, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: docs})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank endpoint returned status %d", resp.StatusCode)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(candidates) {
			r.logger.Warn("rerank result index out of range", zap.Int("index", res.Index))
			continue
		}
		results = append(results, Result{ID: candidates[res.Index].ID, Score: res.Score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// ModelName returns the configured cross-encoder model identifier.
func (r *HTTPReranker) ModelName() string {
	return r.model
}
