// Package rerank scores retrieved chunks against the query with a
// cross-encoder model served over HTTP.
package rerank

import "context"

// Candidate is a chunk to be scored against the query. Score carries the
// first-stage retrieval score for logging.
type Candidate struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Result is a reranked candidate. Higher scores are more relevant.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Reranker scores candidates against a query. Results come back sorted by
// score descending. Callers fall back to the first-stage order on error.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Result, error)
	ModelName() string
}
