// Package orchestrator runs a question through the full answer flow:
// cache, personal timetable shortcut, retrieval, generation, cache write.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/intent"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/provider"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/stream"
)

// AnswerCache is the cache surface the orchestrator needs.
type AnswerCache interface {
	Get(query string) (string, bool)
	Set(query, answer string)
}

// Retriever assembles context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query, category string) (string, error)
}

// GeneratorSource hands out the bound generation backend.
type GeneratorSource interface {
	Generator() (provider.Generator, error)
	MarkQuotaExhausted()
}

const (
	maxGenerateRetries = 2
	retryBaseDelay     = 200 * time.Millisecond
)

// Orchestrator answers student questions.
type Orchestrator struct {
	cache      AnswerCache
	classifier *intent.Classifier
	retriever  Retriever
	generators GeneratorSource
	store      session.Store
	streamOpts stream.Options
	logger     *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSessionStore enables the personal timetable shortcut.
func WithSessionStore(store session.Store) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithStreamOptions tunes the streaming bridge.
func WithStreamOptions(opts stream.Options) Option {
	return func(o *Orchestrator) { o.streamOpts = opts }
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator over the given collaborators.
func New(cache AnswerCache, classifier *intent.Classifier, retriever Retriever, generators GeneratorSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cache:      cache,
		classifier: classifier,
		retriever:  retriever,
		generators: generators,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Answer resolves req synchronously. User-facing failures come back as
// fixed messages in the response, not as errors; only request validation
// fails hard.
func (o *Orchestrator) Answer(ctx context.Context, req models.AskRequest) (models.AskResponse, error) {
	if err := req.Validate(); err != nil {
		return models.AskResponse{}, err
	}
	start := time.Now()

	if answer, ok := o.cache.Get(req.Question); ok {
		o.logger.Debug("cache hit", zap.String("question", req.Question))
		return models.AskResponse{Answer: answer, Cached: true, QueryTime: time.Since(start).Milliseconds()}, nil
	}

	if answer, ok := o.personalAnswer(ctx, req); ok {
		return models.AskResponse{Answer: answer, QueryTime: time.Since(start).Milliseconds()}, nil
	}

	answer, cacheable := o.resolve(ctx, req.Question)
	if cacheable {
		o.cache.Set(req.Question, answer)
	}
	return models.AskResponse{Answer: answer, QueryTime: time.Since(start).Milliseconds()}, nil
}

// AnswerStream resolves req as a chunk stream. Short-circuit answers
// (cache hits, timetable answers, fixed messages) arrive as a single text
// chunk followed by done. Generated answers stream token by token and are
// cached once the stream ends cleanly.
func (o *Orchestrator) AnswerStream(ctx context.Context, req models.AskRequest) (<-chan models.StreamChunk, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if answer, ok := o.cache.Get(req.Question); ok {
		return singleChunk(answer), nil
	}
	if answer, ok := o.personalAnswer(ctx, req); ok {
		return singleChunk(answer), nil
	}

	category, _ := o.classifier.Classify(req.Question)
	contextText, err := o.retriever.Retrieve(ctx, req.Question, category)
	if err != nil {
		o.logger.Error("retrieval failed", zap.Error(err))
		return singleChunk(SearchIssueMessage), nil
	}
	if contextText == "" {
		return singleChunk(NotFoundMessage), nil
	}

	ts, err := o.openStream(ctx, BuildPrompt(contextText, req.Question))
	if err != nil {
		return singleChunk(o.failureMessage(err)), nil
	}
	return o.cacheOnDone(ctx, req.Question, stream.Bridge(ctx, ts, o.streamOpts)), nil
}

// resolve runs classification, retrieval, and generation. The bool reports
// whether the answer is a real generation worth caching.
func (o *Orchestrator) resolve(ctx context.Context, question string) (string, bool) {
	category, matched := o.classifier.Classify(question)
	if matched {
		o.logger.Debug("intent classified", zap.String("category", category))
	}

	contextText, err := o.retriever.Retrieve(ctx, question, category)
	if err != nil {
		o.logger.Error("retrieval failed", zap.Error(err))
		return SearchIssueMessage, false
	}
	if contextText == "" {
		return NotFoundMessage, false
	}

	answer, err := o.generate(ctx, BuildPrompt(contextText, question))
	if err != nil {
		return o.failureMessage(err), false
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return NotFoundMessage, false
	}
	return answer, true
}

// personalAnswer handles questions about the student's own timetable. The
// answer is never cached: it is specific to one student.
func (o *Orchestrator) personalAnswer(ctx context.Context, req models.AskRequest) (string, bool) {
	if o.store == nil || req.StudentID == "" || !session.IsPersonalQuery(req.Question) {
		return "", false
	}
	timetable, err := o.store.GetTimetable(ctx, req.StudentID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		o.logger.Warn("timetable lookup failed", zap.String("student_id", req.StudentID), zap.Error(err))
		return "", false
	}
	return session.AnswerFromTimetable(timetable, req.Question, time.Now()), true
}

// generate calls the bound backend with bounded retries. Quota failures
// retire the credential and retry after a short backoff; anything else
// fails immediately.
func (o *Orchestrator) generate(ctx context.Context, prompt string) (string, error) {
	gen, err := o.generators.Generator()
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= maxGenerateRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		answer, err := gen.Generate(ctx, prompt)
		if err == nil {
			return answer, nil
		}
		lastErr = err
		if !provider.IsQuota(err) {
			return "", err
		}
		o.logger.Warn("generation hit quota, rotating",
			zap.String("provider", gen.Name()), zap.Int("attempt", attempt+1))
		o.generators.MarkQuotaExhausted()
	}
	return "", lastErr
}

// openStream starts a streaming generation with the same retry policy as
// generate.
func (o *Orchestrator) openStream(ctx context.Context, prompt string) (provider.TokenStream, error) {
	gen, err := o.generators.Generator()
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= maxGenerateRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		ts, err := gen.GenerateStream(ctx, prompt)
		if err == nil {
			return ts, nil
		}
		lastErr = err
		if !provider.IsQuota(err) {
			return nil, err
		}
		o.generators.MarkQuotaExhausted()
	}
	return nil, lastErr
}

// cacheOnDone mirrors the chunk stream to the caller while accumulating
// text, and writes the cache entry when the stream ends without an error
// chunk.
func (o *Orchestrator) cacheOnDone(ctx context.Context, question string, in <-chan models.StreamChunk) <-chan models.StreamChunk {
	out := make(chan models.StreamChunk, cap(in))
	go func() {
		defer close(out)
		var b strings.Builder
		clean := true
		for chunk := range in {
			switch chunk.Kind {
			case models.ChunkText:
				b.WriteString(chunk.Text)
			case models.ChunkError:
				clean = false
				o.logger.Error("stream failed mid-generation", zap.String("detail", chunk.Message))
				if provider.IsQuotaMessage(chunk.Message) {
					o.generators.MarkQuotaExhausted()
					chunk = models.ErrorChunk(HighTrafficMessage)
				} else {
					chunk = models.ErrorChunk(SearchIssueMessage)
				}
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if answer := strings.TrimSpace(b.String()); clean && answer != "" {
			o.cache.Set(question, answer)
		}
	}()
	return out
}

func (o *Orchestrator) failureMessage(err error) string {
	if provider.IsQuota(err) {
		return HighTrafficMessage
	}
	o.logger.Error("generation failed", zap.Error(err))
	return SearchIssueMessage
}

func singleChunk(answer string) <-chan models.StreamChunk {
	ch := make(chan models.StreamChunk, 2)
	ch <- models.TextChunk(answer)
	ch <- models.DoneChunk()
	close(ch)
	return ch
}
