package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// GeminiGenerator talks to the Gemini REST API. Keys come from a rotating
// pool: every call acquires the current key, and quota failures retire it
// until the pool self-heals.
type GeminiGenerator struct {
	endpoint string
	model    string
	pool     *KeyPool
	client   *http.Client
	logger   *zap.Logger

	mu        sync.Mutex
	lastIndex int
}

// NewGeminiGenerator creates a cloud backend over the given key pool.
func NewGeminiGenerator(endpoint, model string, pool *KeyPool, logger *zap.Logger) *GeminiGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiGenerator{
		endpoint:  strings.TrimRight(endpoint, "/"),
		model:     model,
		pool:      pool,
		client:    &http.Client{Timeout: 120 * time.Second},
		logger:    logger,
		lastIndex: -1,
	}
}

// Name identifies the backend in logs.
func (g *GeminiGenerator) Name() string { return "gemini" }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiGenerator) post(ctx context.Context, prompt, action, query string) (*http.Response, error) {
	key, index, ok := g.pool.Get()
	if !ok {
		return nil, fmt.Errorf("%s: %w", g.Name(), ErrNoProvider)
	}
	g.mu.Lock()
	g.lastIndex = index
	g.mu.Unlock()

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:%s?key=%s%s", g.endpoint, g.model, action, key, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", g.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := readErrorBody(resp.Body)
		resp.Body.Close()
		statusErr := &StatusError{Provider: g.Name(), StatusCode: resp.StatusCode, Body: msg}
		if IsQuota(statusErr) {
			g.MarkKeyFailed()
			return nil, fmt.Errorf("%w: %s", ErrQuotaExhausted, statusErr.Error())
		}
		return nil, statusErr
	}
	return resp, nil
}

// Generate returns the complete response for prompt.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.post(ctx, prompt, "generateContent", "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	return flattenGemini(parsed), nil
}

// GenerateStream starts a streaming generation over server-sent events.
func (g *GeminiGenerator) GenerateStream(ctx context.Context, prompt string) (TokenStream, error) {
	resp, err := g.post(ctx, prompt, "streamGenerateContent", "&alt=sse")
	if err != nil {
		return nil, err
	}
	return &geminiStream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

// MarkKeyFailed retires the key used by the most recent call.
func (g *GeminiGenerator) MarkKeyFailed() {
	g.mu.Lock()
	index := g.lastIndex
	g.mu.Unlock()
	if index >= 0 {
		g.pool.MarkFailed(index)
	}
}

func flattenGemini(resp geminiResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// geminiStream reads the SSE form of streamGenerateContent: each data line
// is a full response object carrying one text delta.
type geminiStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *geminiStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		var chunk geminiResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if text := flattenGemini(chunk); text != "" {
			return text, nil
		}
	}
	s.done = true
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("reading gemini stream: %w", err)
	}
	return "", io.EOF
}

func (s *geminiStream) Close() error {
	s.done = true
	return s.body.Close()
}
