// Package retrieval turns a question into a bounded context block: embed,
// search the vector index, optionally rerank, then assemble.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rerank"
	"github.com/hyperjump/kotae/internal/vector"
)

// Engine retrieves context for a question. The reranker is optional; when
// nil, or when the top first-stage score is already confident, the
// first-stage order stands.
type Engine struct {
	index    vector.Index
	embedder embedding.Embedder
	reranker rerank.Reranker
	cfg      config.RetrievalConfig
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithReranker enables second-stage cross-encoder reranking.
func WithReranker(r rerank.Reranker) Option {
	return func(e *Engine) { e.reranker = r }
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a retrieval engine over the given index and embedder.
func NewEngine(index vector.Index, embedder embedding.Embedder, cfg config.RetrievalConfig, opts ...Option) *Engine {
	e := &Engine{
		index:    index,
		embedder: embedder,
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve returns the assembled context for query, restricted to category
// when non-empty. An empty or missing index yields an empty context and no
// error; the caller decides how to answer without one.
func (e *Engine) Retrieve(ctx context.Context, query, category string) (string, error) {
	if e.index == nil || e.index.Size() == 0 {
		return "", nil
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	var filter map[string]string
	if category != "" {
		filter = map[string]string{"category": category}
	}
	scored, err := e.index.Search(ctx, queryVec, e.cfg.TopK, filter)
	if err != nil {
		return "", fmt.Errorf("vector search: %w", err)
	}
	// A category filter that matches nothing falls back to the full corpus.
	if len(scored) == 0 && filter != nil {
		scored, err = e.index.Search(ctx, queryVec, e.cfg.TopK, nil)
		if err != nil {
			return "", fmt.Errorf("vector search: %w", err)
		}
	}
	if len(scored) == 0 {
		return "", nil
	}

	selected := e.selectChunks(ctx, query, scored)
	return BuildContext(selected, e.cfg.MaxContextChars), nil
}

// selectChunks applies the confidence gate: a confident top hit keeps the
// first-stage order trimmed to ConfidentKeep, otherwise the candidates go
// through the reranker and the top RerankKeep survive. Rerank failures fall
// back to the first-stage order.
func (e *Engine) selectChunks(ctx context.Context, query string, scored []*models.ScoredChunk) []*models.ScoredChunk {
	if scored[0].Score >= e.cfg.ConfidenceThreshold {
		e.logger.Debug("confident retrieval, skipping rerank",
			zap.Float64("top_score", scored[0].Score))
		return head(scored, e.cfg.ConfidentKeep)
	}
	if e.reranker == nil {
		return head(scored, e.cfg.RerankKeep)
	}

	candidates := make([]rerank.Candidate, len(scored))
	byID := make(map[string]*models.ScoredChunk, len(scored))
	for i, sc := range scored {
		candidates[i] = rerank.Candidate{ID: sc.Chunk.ID, Text: sc.Chunk.Text, Score: sc.Score}
		byID[sc.Chunk.ID] = sc
	}

	results, err := e.reranker.Rerank(ctx, query, candidates)
	if err != nil {
		e.logger.Warn("rerank failed, using retrieval order",
			zap.String("model", e.reranker.ModelName()), zap.Error(err))
		return head(scored, e.cfg.RerankKeep)
	}

	reordered := make([]*models.ScoredChunk, 0, len(results))
	for _, res := range results {
		if sc, ok := byID[res.ID]; ok {
			reordered = append(reordered, &models.ScoredChunk{Chunk: sc.Chunk, Score: res.Score})
		}
	}
	if len(reordered) == 0 {
		return head(scored, e.cfg.RerankKeep)
	}
	return head(reordered, e.cfg.RerankKeep)
}

func head(chunks []*models.ScoredChunk, n int) []*models.ScoredChunk {
	if n > 0 && len(chunks) > n {
		return chunks[:n]
	}
	return chunks
}
