package rag

import (
	"context"
	"errors"
	"io"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/adl-legal/legald/internal/drafting"
	"github.com/adl-legal/legald/internal/llm"
	"github.com/adl-legal/legald/internal/retrieval"
)

var tracer = otel.Tracer("github.com/adl-legal/legald/internal/rag")

// apologyText is the only answer users see when generation fails outright.
const apologyText = "I apologize, but I am unable to process your request at this moment."

// User-facing notices for degraded retrieval; embedded verbatim into the
// system message.
const (
	noticeStoreUnavailable = "Legal database is temporarily unavailable."
	noticeSearchFailed     = "Failed to retrieve legal context."
	noticeStreamFailed     = "The response stream was interrupted."
)

// Rewriter turns user phrasing into legal search terms. It never fails.
type Rewriter interface {
	Rewrite(ctx context.Context, query string) string
}

// Embedder produces a query vector, consulting its cache first.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever searches the legal corpus.
type Retriever interface {
	Search(ctx context.Context, vector []float32, limit int) ([]retrieval.Chunk, error)
}

// Service runs the full answering pipeline. Every downstream outage below
// the generator degrades the answer rather than failing the request.
type Service struct {
	rewriter  Rewriter
	embedder  Embedder
	retriever Retriever
	generator *Generator
	evaluator *Evaluator
	logger    *zap.Logger
}

// NewService wires the pipeline stages together.
func NewService(rewriter Rewriter, embedder Embedder, retriever Retriever, generator *Generator, evaluator *Evaluator, logger *zap.Logger) (*Service, error) {
	if rewriter == nil || embedder == nil || retriever == nil || generator == nil {
		return nil, errors.New("rag: all pipeline stages are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		rewriter:  rewriter,
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		evaluator: evaluator,
		logger:    logger,
	}, nil
}

// prepared is everything the generator needs, plus what the response and the
// evaluator need.
type prepared struct {
	messages    []llm.Message
	sources     []retrieval.Chunk
	contextText string
}

// prepare runs rewrite, embed, retrieve, and classify, then assembles the
// model conversation. It cannot fail: each stage degrades independently.
func (s *Service) prepare(ctx context.Context, q Query) prepared {
	ctx, span := tracer.Start(ctx, "rag.prepare")
	defer span.End()

	searchText := s.rewriter.Rewrite(ctx, q.Text)

	var (
		sources     []retrieval.Chunk
		contextText string
		notice      string
	)

	vector, err := s.embedder.EmbedQuery(ctx, searchText)
	if err != nil {
		s.logger.Error("embedding failed", zap.Error(err))
	}

	if len(vector) > 0 {
		chunks, err := s.retriever.Search(ctx, vector, retrieval.DefaultLimit)
		switch {
		case errors.Is(err, retrieval.ErrUnavailable):
			notice = noticeStoreUnavailable
		case err != nil:
			notice = noticeSearchFailed
		default:
			sources = chunks
			contextText = ContextText(chunks)
		}
	}

	// Drafting intent is detected on the user's original words; the rewrite
	// targets retrieval vocabulary and can lose the drafting cue.
	var tmpl *drafting.Template
	if key, ok := drafting.Classify(q.Text); ok {
		if t, found := drafting.Lookup(key); found {
			tmpl = &t
			s.logger.Info("drafting request detected", zap.String("template", key))
		}
	}

	messages := assembleMessages(q, contextText, notice, tmpl)
	return prepared{messages: messages, sources: sources, contextText: contextText}
}

// Answer runs the pipeline to completion and returns the full answer.
//
// On generation failure the Result carries the apology text, the sources
// that were retrieved, and the underlying error; callers decide how to
// surface it.
func (s *Service) Answer(ctx context.Context, q Query) Result {
	ctx, span := tracer.Start(ctx, "rag.answer")
	defer span.End()

	prep := s.prepare(ctx, q)

	answer, err := s.generator.Generate(ctx, prep.messages)
	if err != nil {
		return Result{Text: apologyText, Sources: prep.sources, Err: err}
	}

	s.maybeEvaluate(ctx, q.Text, prep.contextText, answer)
	return Result{Text: answer, Sources: prep.sources}
}

// AnswerStream runs the pipeline and emits the answer incrementally. The
// returned channel always delivers a sources event first, then content
// deltas in order; an error event is terminal. The channel is closed when
// the answer is complete, an error was emitted, or ctx is done.
func (s *Service) AnswerStream(ctx context.Context, q Query) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go func() {
		defer close(out)

		ctx, span := tracer.Start(ctx, "rag.answer_stream")
		defer span.End()

		prep := s.prepare(ctx, q)

		if !s.emit(ctx, out, StreamEvent{Type: EventSources, Sources: prep.sources}) {
			return
		}

		stream, err := s.generator.GenerateStream(ctx, prep.messages)
		if err != nil {
			s.emit(ctx, out, StreamEvent{Type: EventError, Content: apologyText})
			return
		}
		defer stream.Close()

		var full []byte
		for {
			delta, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				s.logger.Error("stream interrupted", zap.Error(err))
				s.emit(ctx, out, StreamEvent{Type: EventError, Content: noticeStreamFailed})
				return
			}
			if delta == "" {
				continue
			}
			full = append(full, delta...)
			if !s.emit(ctx, out, StreamEvent{Type: EventContent, Content: delta}) {
				return
			}
		}

		s.maybeEvaluate(ctx, q.Text, prep.contextText, string(full))
	}()
	return out
}

// emit reports false when the consumer has gone away.
func (s *Service) emit(ctx context.Context, out chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// maybeEvaluate fires the judge only when there is both grounding context
// and an answer to judge.
func (s *Service) maybeEvaluate(ctx context.Context, query, contextText, answer string) {
	if s.evaluator == nil || contextText == "" || answer == "" {
		return
	}
	s.evaluator.EvaluateAsync(ctx, query, contextText, answer)
}
