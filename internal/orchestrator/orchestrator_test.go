package orchestrator

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/intent"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/provider"
	"github.com/hyperjump/kotae/internal/session"
)

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (f *fakeCache) Get(query string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	answer, ok := f.entries[query]
	return answer, ok
}

func (f *fakeCache) Set(query, answer string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[query] = answer
	f.sets++
}

func (f *fakeCache) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

type fakeRetriever struct {
	contextText string
	err         error
	calls       int
	category    string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query, category string) (string, error) {
	f.calls++
	f.category = category
	return f.contextText, f.err
}

// fakeGenerator fails with errs in order, then succeeds with answer.
type fakeGenerator struct {
	answer string
	errs   []error
	calls  int
	tokens []string
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return "", err
	}
	return f.answer, nil
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, prompt string) (provider.TokenStream, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &sliceStream{tokens: f.tokens}, nil
}

type sliceStream struct {
	tokens []string
	pos    int
}

func (s *sliceStream) Next() (string, error) {
	if s.pos >= len(s.tokens) {
		return "", io.EOF
	}
	token := s.tokens[s.pos]
	s.pos++
	return token, nil
}

func (s *sliceStream) Close() error { return nil }

type fakeGenSource struct {
	gen         *fakeGenerator
	quotaMarked int
}

func (f *fakeGenSource) Generator() (provider.Generator, error) { return f.gen, nil }
func (f *fakeGenSource) MarkQuotaExhausted()                    { f.quotaMarked++ }

type fakeStore struct {
	session.Store
	timetable *models.Timetable
}

func (f *fakeStore) GetTimetable(ctx context.Context, studentID string) (*models.Timetable, error) {
	if f.timetable == nil {
		return nil, session.ErrNotFound
	}
	return f.timetable, nil
}

func newTestOrchestrator(cache *fakeCache, retriever *fakeRetriever, source GeneratorSource, opts ...Option) *Orchestrator {
	return New(cache, intent.NewClassifier(intent.DefaultRules()), retriever, source, opts...)
}

func TestAnswerFullFlow(t *testing.T) {
	cache := newFakeCache()
	retriever := &fakeRetriever{contextText: "The library is in Block A."}
	source := &fakeGenSource{gen: &fakeGenerator{answer: "It's in Block A."}}
	o := newTestOrchestrator(cache, retriever, source)

	resp, err := o.Answer(context.Background(), models.AskRequest{Question: "Where is the library?"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "It's in Block A." || resp.Cached {
		t.Errorf("unexpected response %+v", resp)
	}
	if retriever.category != "map" {
		t.Errorf("location question should classify as map, got %q", retriever.category)
	}
	if cache.setCount() != 1 {
		t.Errorf("generated answer should be cached once, sets=%d", cache.setCount())
	}
}

func TestAnswerCacheHitShortCircuits(t *testing.T) {
	cache := newFakeCache()
	cache.Set("Where is the library?", "Block A.")
	cache.sets = 0
	retriever := &fakeRetriever{contextText: "unused"}
	source := &fakeGenSource{gen: &fakeGenerator{answer: "unused"}}
	o := newTestOrchestrator(cache, retriever, source)

	resp, err := o.Answer(context.Background(), models.AskRequest{Question: "Where is the library?"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Cached || resp.Answer != "Block A." {
		t.Errorf("expected cached response, got %+v", resp)
	}
	if retriever.calls != 0 || source.gen.calls != 0 {
		t.Error("cache hit must not touch retrieval or generation")
	}
	if cache.setCount() != 0 {
		t.Error("cache hit must not rewrite the cache")
	}
}

func TestAnswerNotFound(t *testing.T) {
	cache := newFakeCache()
	retriever := &fakeRetriever{contextText: ""}
	source := &fakeGenSource{gen: &fakeGenerator{answer: "unused"}}
	o := newTestOrchestrator(cache, retriever, source)

	resp, _ := o.Answer(context.Background(), models.AskRequest{Question: "Something obscure?"})
	if resp.Answer != NotFoundMessage {
		t.Errorf("expected not-found message, got %q", resp.Answer)
	}
	if source.gen.calls != 0 {
		t.Error("empty context must skip generation")
	}
	if cache.setCount() != 0 {
		t.Error("fixed messages must not be cached")
	}
}

func TestAnswerRetrievalFailure(t *testing.T) {
	cache := newFakeCache()
	retriever := &fakeRetriever{err: errors.New("index corrupted")}
	source := &fakeGenSource{gen: &fakeGenerator{}}
	o := newTestOrchestrator(cache, retriever, source)

	resp, _ := o.Answer(context.Background(), models.AskRequest{Question: "Anything?"})
	if resp.Answer != SearchIssueMessage {
		t.Errorf("expected search-issue message, got %q", resp.Answer)
	}
	if cache.setCount() != 0 {
		t.Error("failure messages must not be cached")
	}
}

func TestAnswerQuotaRetriesThenRecovers(t *testing.T) {
	cache := newFakeCache()
	retriever := &fakeRetriever{contextText: "context"}
	source := &fakeGenSource{gen: &fakeGenerator{
		answer: "recovered answer",
		errs:   []error{provider.ErrQuotaExhausted},
	}}
	o := newTestOrchestrator(cache, retriever, source)

	resp, _ := o.Answer(context.Background(), models.AskRequest{Question: "q"})
	if resp.Answer != "recovered answer" {
		t.Errorf("expected recovery after rotation, got %q", resp.Answer)
	}
	if source.quotaMarked != 1 {
		t.Errorf("expected one quota mark, got %d", source.quotaMarked)
	}
	if cache.setCount() != 1 {
		t.Error("recovered answer should be cached")
	}
}

func TestAnswerQuotaExhaustedAfterRetries(t *testing.T) {
	cache := newFakeCache()
	retriever := &fakeRetriever{contextText: "context"}
	source := &fakeGenSource{gen: &fakeGenerator{
		errs: []error{provider.ErrQuotaExhausted, provider.ErrQuotaExhausted, provider.ErrQuotaExhausted},
	}}
	o := newTestOrchestrator(cache, retriever, source)

	resp, _ := o.Answer(context.Background(), models.AskRequest{Question: "q"})
	if resp.Answer != HighTrafficMessage {
		t.Errorf("expected high-traffic message, got %q", resp.Answer)
	}
	if source.gen.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", source.gen.calls)
	}
	if cache.setCount() != 0 {
		t.Error("failure messages must not be cached")
	}
}

func TestAnswerNonQuotaFailureNoRetry(t *testing.T) {
	cache := newFakeCache()
	retriever := &fakeRetriever{contextText: "context"}
	source := &fakeGenSource{gen: &fakeGenerator{errs: []error{errors.New("model crashed")}}}
	o := newTestOrchestrator(cache, retriever, source)

	resp, _ := o.Answer(context.Background(), models.AskRequest{Question: "q"})
	if resp.Answer != SearchIssueMessage {
		t.Errorf("expected search-issue message, got %q", resp.Answer)
	}
	if source.gen.calls != 1 {
		t.Errorf("non-quota failure must not retry, attempts=%d", source.gen.calls)
	}
}

func TestAnswerPersonalTimetable(t *testing.T) {
	cache := newFakeCache()
	retriever := &fakeRetriever{contextText: "unused"}
	source := &fakeGenSource{gen: &fakeGenerator{answer: "unused"}}
	store := &fakeStore{timetable: &models.Timetable{
		StudentID: "s1",
		Schedule:  map[string][]models.Slot{"monday": {{Time: "09:00", Subject: "Math"}}},
	}}
	o := newTestOrchestrator(cache, retriever, source, WithSessionStore(store))

	resp, err := o.Answer(context.Background(), models.AskRequest{Question: "my schedule for monday", StudentID: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Answer, "Math") {
		t.Errorf("expected timetable answer, got %q", resp.Answer)
	}
	if retriever.calls != 0 || source.gen.calls != 0 {
		t.Error("personal answers must bypass retrieval and generation")
	}
	if cache.setCount() != 0 {
		t.Error("personal answers must not be cached")
	}
}

func TestAnswerPersonalWithoutStudentIDFallsThrough(t *testing.T) {
	cache := newFakeCache()
	retriever := &fakeRetriever{contextText: "context"}
	source := &fakeGenSource{gen: &fakeGenerator{answer: "generated"}}
	store := &fakeStore{}
	o := newTestOrchestrator(cache, retriever, source, WithSessionStore(store))

	resp, _ := o.Answer(context.Background(), models.AskRequest{Question: "what is my schedule today"})
	if resp.Answer != "generated" {
		t.Errorf("anonymous personal question should use the normal flow, got %q", resp.Answer)
	}
}

func TestAnswerValidatesRequest(t *testing.T) {
	o := newTestOrchestrator(newFakeCache(), &fakeRetriever{}, &fakeGenSource{gen: &fakeGenerator{}})
	if _, err := o.Answer(context.Background(), models.AskRequest{Question: "  "}); err == nil {
		t.Error("blank question must fail validation")
	}
}

func TestAnswerStreamGeneratesAndCaches(t *testing.T) {
	cache := newFakeCache()
	retriever := &fakeRetriever{contextText: "context"}
	source := &fakeGenSource{gen: &fakeGenerator{tokens: []string{"Block", " A."}}}
	o := newTestOrchestrator(cache, retriever, source)

	ch, err := o.AnswerStream(context.Background(), models.AskRequest{Question: "Where is the library?"})
	if err != nil {
		t.Fatal(err)
	}

	var text string
	sawDone := false
	for chunk := range ch {
		switch chunk.Kind {
		case models.ChunkText:
			text += chunk.Text
		case models.ChunkDone:
			sawDone = true
		case models.ChunkError:
			t.Fatalf("unexpected error chunk %q", chunk.Message)
		}
	}
	if text != "Block A." || !sawDone {
		t.Errorf("unexpected stream text=%q done=%v", text, sawDone)
	}
	if answer, ok := cache.Get("Where is the library?"); !ok || answer != "Block A." {
		t.Errorf("streamed answer should be cached, got %q ok=%v", answer, ok)
	}
}

func TestAnswerStreamCacheHit(t *testing.T) {
	cache := newFakeCache()
	cache.Set("q", "cached answer")
	o := newTestOrchestrator(cache, &fakeRetriever{}, &fakeGenSource{gen: &fakeGenerator{}})

	ch, err := o.AnswerStream(context.Background(), models.AskRequest{Question: "q"})
	if err != nil {
		t.Fatal(err)
	}
	first := <-ch
	if first.Kind != models.ChunkText || first.Text != "cached answer" {
		t.Errorf("unexpected first chunk %+v", first)
	}
	second := <-ch
	if second.Kind != models.ChunkDone {
		t.Errorf("expected done chunk, got %+v", second)
	}
}

func TestAnswerStreamNotFound(t *testing.T) {
	o := newTestOrchestrator(newFakeCache(), &fakeRetriever{contextText: ""}, &fakeGenSource{gen: &fakeGenerator{}})
	ch, err := o.AnswerStream(context.Background(), models.AskRequest{Question: "q"})
	if err != nil {
		t.Fatal(err)
	}
	first := <-ch
	if first.Text != NotFoundMessage {
		t.Errorf("expected not-found message, got %q", first.Text)
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("some context", "some question")
	if !strings.Contains(prompt, "some context") || !strings.Contains(prompt, "some question") {
		t.Error("prompt must embed context and question")
	}
	if !strings.Contains(prompt, "ONLY") {
		t.Error("prompt must restrict the model to the context")
	}
}

func TestAnswerReportsQueryTime(t *testing.T) {
	cache := newFakeCache()
	cache.Set("q", "a")
	o := newTestOrchestrator(cache, &fakeRetriever{}, &fakeGenSource{gen: &fakeGenerator{}})

	resp, _ := o.Answer(context.Background(), models.AskRequest{Question: "q"})
	if resp.QueryTime < 0 || resp.QueryTime > time.Minute.Milliseconds() {
		t.Errorf("implausible query time %d", resp.QueryTime)
	}
}

type errorStream struct {
	tokens []string
	pos    int
	err    error
}

func (s *errorStream) Next() (string, error) {
	if s.pos >= len(s.tokens) {
		return "", s.err
	}
	token := s.tokens[s.pos]
	s.pos++
	return token, nil
}

func (s *errorStream) Close() error { return nil }

type errorStreamGenerator struct {
	tokens []string
	err    error
}

func (g *errorStreamGenerator) Name() string { return "fake" }

func (g *errorStreamGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", g.err
}

func (g *errorStreamGenerator) GenerateStream(ctx context.Context, prompt string) (provider.TokenStream, error) {
	return &errorStream{tokens: g.tokens, err: g.err}, nil
}

type staticGenSource struct {
	gen         provider.Generator
	quotaMarked int
}

func (s *staticGenSource) Generator() (provider.Generator, error) { return s.gen, nil }
func (s *staticGenSource) MarkQuotaExhausted()                    { s.quotaMarked++ }

func TestAnswerStreamFailureUsesFixedMessage(t *testing.T) {
	cache := newFakeCache()
	gen := &errorStreamGenerator{tokens: []string{"partial"}, err: errors.New("connection reset by peer")}
	o := newTestOrchestrator(cache, &fakeRetriever{contextText: "context"}, &staticGenSource{gen: gen})

	ch, err := o.AnswerStream(context.Background(), models.AskRequest{Question: "q"})
	if err != nil {
		t.Fatal(err)
	}
	var errMsg string
	sawDone := false
	for chunk := range ch {
		switch chunk.Kind {
		case models.ChunkError:
			errMsg = chunk.Message
		case models.ChunkDone:
			sawDone = true
		}
	}
	if errMsg != SearchIssueMessage {
		t.Errorf("stream failures must surface the fixed message, got %q", errMsg)
	}
	if strings.Contains(errMsg, "connection reset") {
		t.Error("raw error text must not reach the client")
	}
	if !sawDone {
		t.Error("failed stream must still terminate with done")
	}
	if cache.setCount() != 0 {
		t.Error("failed stream must not be cached")
	}
}

func TestAnswerStreamQuotaFailureMarksKey(t *testing.T) {
	cache := newFakeCache()
	gen := &errorStreamGenerator{tokens: []string{"partial"}, err: errors.New("resource exhausted: quota exceeded")}
	source := &staticGenSource{gen: gen}
	o := newTestOrchestrator(cache, &fakeRetriever{contextText: "context"}, source)

	ch, err := o.AnswerStream(context.Background(), models.AskRequest{Question: "q"})
	if err != nil {
		t.Fatal(err)
	}
	var errMsg string
	for chunk := range ch {
		if chunk.Kind == models.ChunkError {
			errMsg = chunk.Message
		}
	}
	if errMsg != HighTrafficMessage {
		t.Errorf("mid-stream quota failure must surface the traffic message, got %q", errMsg)
	}
	if source.quotaMarked != 1 {
		t.Errorf("mid-stream quota failure must retire the credential, marked=%d", source.quotaMarked)
	}
	if cache.setCount() != 0 {
		t.Error("failed stream must not be cached")
	}
}
