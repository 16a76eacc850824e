package stream

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

// fakeStream yields its tokens then terminates with err (io.EOF for a
// clean end).
type fakeStream struct {
	tokens []string
	err    error
	pos    int
	closed bool
}

func (f *fakeStream) Next() (string, error) {
	if f.pos >= len(f.tokens) {
		if f.err != nil {
			return "", f.err
		}
		return "", io.EOF
	}
	token := f.tokens[f.pos]
	f.pos++
	return token, nil
}

func (f *fakeStream) Close() error {
	f.closed = true
	return nil
}

func collect(t *testing.T, ch <-chan models.StreamChunk) []models.StreamChunk {
	t.Helper()
	var chunks []models.StreamChunk
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return chunks
			}
			chunks = append(chunks, chunk)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for chunks")
		}
	}
}

func TestBridgeCleanStream(t *testing.T) {
	fs := &fakeStream{tokens: []string{"Hello", " ", "world"}}
	chunks := collect(t, Bridge(context.Background(), fs, Options{}))

	if len(chunks) != 4 {
		t.Fatalf("expected 3 text chunks plus done, got %d", len(chunks))
	}
	var text string
	for _, c := range chunks[:3] {
		if c.Kind != models.ChunkText {
			t.Fatalf("expected text chunk, got %v", c.Kind)
		}
		text += c.Text
	}
	if text != "Hello world" {
		t.Errorf("unexpected text %q", text)
	}
	if chunks[3].Kind != models.ChunkDone {
		t.Errorf("stream must end with a done chunk, got %v", chunks[3].Kind)
	}
	if !fs.closed {
		t.Error("bridge must close the underlying stream")
	}
}

func TestBridgeErrorStream(t *testing.T) {
	fs := &fakeStream{tokens: []string{"partial"}, err: errors.New("connection reset")}
	chunks := collect(t, Bridge(context.Background(), fs, Options{}))

	if len(chunks) != 3 {
		t.Fatalf("expected text, error, done; got %d chunks", len(chunks))
	}
	if chunks[1].Kind != models.ChunkError || chunks[1].Message == "" {
		t.Errorf("expected error chunk with message, got %+v", chunks[1])
	}
	if chunks[2].Kind != models.ChunkDone {
		t.Errorf("error stream must still terminate with done, got %v", chunks[2].Kind)
	}
}

func TestBridgeSkipsEmptyTokens(t *testing.T) {
	fs := &fakeStream{tokens: []string{"", "a", ""}}
	chunks := collect(t, Bridge(context.Background(), fs, Options{}))
	if len(chunks) != 2 || chunks[0].Text != "a" {
		t.Errorf("empty tokens should be dropped, got %+v", chunks)
	}
}

func TestBridgeContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	// Unbuffered channel and no consumer: the worker blocks on send until
	// the context is cancelled, then must exit and close the stream.
	fs := &fakeStream{tokens: []string{"a", "b", "c"}}
	ch := Bridge(ctx, fs, Options{Buffer: 1})

	<-ch // let the worker get ahead
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if !fs.closed {
					t.Error("abandoned stream must be closed")
				}
				return
			}
		case <-deadline:
			t.Fatal("bridge did not shut down after cancel")
		}
	}
}

func TestBridgeSlowConsumerTimeout(t *testing.T) {
	fs := &fakeStream{tokens: []string{"a", "b", "c", "d"}}
	ch := Bridge(context.Background(), fs, Options{Buffer: 1, SendTimeout: 50 * time.Millisecond})

	// Never read: the worker fills the buffer, stalls, times out, and
	// closes both the channel and the stream.
	time.Sleep(300 * time.Millisecond)
	if !fs.closed {
		t.Error("worker should abandon a stalled consumer")
	}
	// Drain whatever was buffered; the channel must be closed.
	for range ch {
	}
}
