package retrieval

import (
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// chunkSeparator visually divides chunks inside the prompt context.
const chunkSeparator = "\n\n---\n\n"

// BuildContext joins chunk texts up to maxChars. Chunks are taken in order
// and never truncated mid-chunk: one that would push the total over the
// budget is dropped along with everything after it.
func BuildContext(chunks []*models.ScoredChunk, maxChars int) string {
	var b strings.Builder
	for _, sc := range chunks {
		text := strings.TrimSpace(sc.Chunk.Text)
		if text == "" {
			continue
		}
		addition := len(text)
		if b.Len() > 0 {
			addition += len(chunkSeparator)
		}
		if maxChars > 0 && b.Len()+addition > maxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteString(chunkSeparator)
		}
		b.WriteString(text)
	}
	return b.String()
}
