// Package provider implements the text generation backends and the router
// that binds the first reachable one.
package provider

import (
	"context"
	"io"
	"strings"
)

// TokenStream is a blocking token iterator over a streaming generation.
// Next returns io.EOF after the final token. Close releases the underlying
// connection and is safe to call at any point.
type TokenStream interface {
	Next() (string, error)
	Close() error
}

// Generator produces text from a prompt.
type Generator interface {
	// Name identifies the backend in logs.
	Name() string
	// Generate returns the complete response.
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateStream returns a token stream the caller must Close.
	GenerateStream(ctx context.Context, prompt string) (TokenStream, error)
}

// collectStream drains a token stream into one string. Used by backends
// whose non-streaming path is just the streaming path concatenated.
func collectStream(stream TokenStream) (string, error) {
	defer stream.Close()
	var b strings.Builder
	for {
		token, err := stream.Next()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		b.WriteString(token)
	}
}
