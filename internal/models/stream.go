package models

// ChunkKind discriminates the variants of a StreamChunk.
type ChunkKind int

const (
	// ChunkText carries a piece of generated answer text.
	ChunkText ChunkKind = iota
	// ChunkDone marks the end of a stream. Always the last chunk.
	ChunkDone
	// ChunkError carries a failure. Followed by exactly one ChunkDone.
	ChunkError
)

// StreamChunk is one element of a streamed answer. Consumers must handle all
// three kinds; Text is set only for ChunkText, Message only for ChunkError.
type StreamChunk struct {
	Kind    ChunkKind
	Text    string
	Message string
}

// TextChunk returns a ChunkText chunk.
func TextChunk(text string) StreamChunk {
	return StreamChunk{Kind: ChunkText, Text: text}
}

// DoneChunk returns the stream terminator.
func DoneChunk() StreamChunk {
	return StreamChunk{Kind: ChunkDone}
}

// ErrorChunk returns a ChunkError chunk with the given message.
func ErrorChunk(message string) StreamChunk {
	return StreamChunk{Kind: ChunkError, Message: message}
}
