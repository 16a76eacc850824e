package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaGenerateStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"response":"Hello","done":false}` + "\n"))
		w.Write([]byte(`{"response":" world","done":false}` + "\n"))
		w.Write([]byte(`{"response":"","done":true}` + "\n"))
	}))
	defer server.Close()

	g := NewOllamaGenerator(server.URL, "test-model")
	stream, err := g.GenerateStream(context.Background(), "greet")
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	var tokens []string
	for {
		token, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		tokens = append(tokens, token)
	}
	if len(tokens) != 2 || tokens[0] != "Hello" || tokens[1] != " world" {
		t.Errorf("unexpected tokens %v", tokens)
	}
}

func TestOllamaGenerateCollects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"The library ","done":false}` + "\n"))
		w.Write([]byte(`{"response":"opens at 8.","done":true}` + "\n"))
	}))
	defer server.Close()

	g := NewOllamaGenerator(server.URL, "test-model")
	got, err := g.Generate(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if got != "The library opens at 8." {
		t.Errorf("unexpected answer %q", got)
	}
}

func TestOllamaStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	g := NewOllamaGenerator(server.URL, "test-model")
	if _, err := g.GenerateStream(context.Background(), "q"); err == nil {
		t.Error("expected status error")
	}
}
