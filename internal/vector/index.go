// Package vector provides the similarity-search capability consumed by the
// retrieval engine. The index itself is built offline by the ingestion
// pipeline; this package only loads and queries it.
package vector

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Index defines filtered similarity search over document chunks.
type Index interface {
	// Add inserts chunks with their embeddings. Used by tests and by the
	// offline snapshot builder; the serving path only searches.
	Add(ctx context.Context, chunks []*models.Chunk, vectors [][]float32) error

	// Search returns the top-k chunks by cosine similarity, restricted to
	// chunks whose metadata matches every key/value in filter (nil filter
	// means unrestricted).
	Search(ctx context.Context, query []float32, k int, filter map[string]string) ([]*models.ScoredChunk, error)

	// Save persists the index to path.
	Save(path string) error

	// Load replaces the index contents from path. A missing file is not an
	// error; the index stays empty.
	Load(path string) error

	// Size returns the number of indexed chunks.
	Size() int

	Close() error
}
