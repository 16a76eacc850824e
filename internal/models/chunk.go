package models

// Chunk is a read-only document fragment owned by the offline ingestion
// pipeline. Metadata carries at least "source" and "category" when set.
type Chunk struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Category returns the chunk's category tag, or "" when untagged.
func (c *Chunk) Category() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata["category"]
}

// ScoredChunk pairs a chunk with its similarity score from the vector index.
// Score is cosine similarity in [0, 1]; higher is better.
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}
