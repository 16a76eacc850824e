// Package embedding provides query embedding via ONNX with caching.
package embedding

import "context"

// Embedder produces a vector embedding for a query string. Vectors are
// L2-normalized so inner product equals cosine similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
