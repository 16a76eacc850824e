package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
)

// MemoryIndex is an in-memory vector index using brute-force inner product
// search. Assumes L2-normalized vectors, so inner product equals cosine
// similarity. Suitable for corpora in the tens of thousands of chunks.
type MemoryIndex struct {
	dimensions int
	chunks     []*models.Chunk
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{dimensions: dimensions}, nil
}

// Add inserts chunks with their embeddings.
func (m *MemoryIndex) Add(ctx context.Context, chunks []*models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, chunk := range chunks {
		if len(vectors[i]) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		m.chunks = append(m.chunks, chunk)
		m.vectors = append(m.vectors, vec)
	}
	return nil
}

// Search returns the top-k chunks by cosine similarity matching the filter.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int, filter map[string]string) ([]*models.ScoredChunk, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.chunks) == 0 {
		return nil, nil
	}
	scored := make([]*models.ScoredChunk, 0, len(m.chunks))
	for i, chunk := range m.chunks {
		if !matchesFilter(chunk, filter) {
			continue
		}
		var dot float64
		vec := m.vectors[i]
		for j := 0; j < m.dimensions; j++ {
			dot += float64(query[j] * vec[j])
		}
		scored = append(scored, &models.ScoredChunk{Chunk: chunk, Score: dot})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func matchesFilter(chunk *models.Chunk, filter map[string]string) bool {
	for key, want := range filter {
		if chunk.Metadata == nil || chunk.Metadata[key] != want {
			return false
		}
	}
	return true
}

// snapshot is the on-disk index format. Written offline by the ingestion
// pipeline and loaded here at startup.
type snapshot struct {
	Dimensions int              `json:"dimensions"`
	Chunks     []*models.Chunk  `json:"chunks"`
	Vectors    [][]float32      `json:"vectors"`
}

// Save persists the index to path. Parent directories are created if needed.
func (m *MemoryIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	snap := snapshot{Dimensions: m.dimensions, Chunks: m.chunks, Vectors: m.vectors}
	m.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(&snap); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents.
// Dimensions must match. A missing file leaves the index unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("decode index: %w", err)
	}
	if snap.Dimensions != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", snap.Dimensions, m.dimensions)
	}
	if len(snap.Chunks) != len(snap.Vectors) {
		return fmt.Errorf("corrupt index: %d chunks but %d vectors", len(snap.Chunks), len(snap.Vectors))
	}
	for i, vec := range snap.Vectors {
		if len(vec) != snap.Dimensions {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vec), snap.Dimensions)
		}
	}
	m.mu.Lock()
	m.chunks = snap.Chunks
	m.vectors = snap.Vectors
	m.mu.Unlock()
	return nil
}

// Size returns the number of indexed chunks.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
