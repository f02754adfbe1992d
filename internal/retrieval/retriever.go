// Package retrieval performs similarity search against the legal vector
// index, isolated behind a circuit breaker so a degraded index cannot drag
// the whole pipeline down with it.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/adl-legal/legald/internal/retrieval")

var (
	// ErrUnavailable indicates the circuit is open; the index was not called.
	ErrUnavailable = errors.New("legal database temporarily unavailable")

	// ErrSearchFailed indicates the underlying search errored.
	ErrSearchFailed = errors.New("legal context retrieval failed")
)

// Chunk is one retrieved piece of statute or ruling text. Results are ordered
// by descending relevance as ranked by the index; the service never re-sorts.
type Chunk struct {
	ID         int64          `json:"id"`
	Score      float32        `json:"score"`
	Text       string         `json:"text"`
	SourceType string         `json:"source_type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Index is the downstream vector index.
type Index interface {
	Search(ctx context.Context, vector []float32, limit int) ([]Chunk, error)
}

// DefaultLimit is how many chunks a search returns unless overridden.
const DefaultLimit = 3

// Config holds retriever configuration.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int

	// Cooldown is how long the open circuit rejects calls before a probe.
	Cooldown time.Duration
}

func (c *Config) applyDefaults() {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 3
	}
	if c.Cooldown == 0 {
		c.Cooldown = 60 * time.Second
	}
}

// Service searches the index through the circuit breaker. One Service (and
// therefore one breaker) exists per downstream index for the process lifetime.
type Service struct {
	index   Index
	breaker *Breaker
	logger  *zap.Logger
}

// NewService creates a retrieval service.
func NewService(index Index, cfg Config, logger *zap.Logger) (*Service, error) {
	if index == nil {
		return nil, errors.New("index is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	return &Service{
		index:   index,
		breaker: NewBreaker(cfg.FailureThreshold, cfg.Cooldown),
		logger:  logger,
	}, nil
}

// Search returns up to limit chunks ranked by the index. It fails fast with
// ErrUnavailable while the circuit is open and wraps index errors in
// ErrSearchFailed.
func (s *Service) Search(ctx context.Context, vector []float32, limit int) ([]Chunk, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Search")
	defer span.End()

	if limit <= 0 {
		limit = DefaultLimit
	}

	if !s.breaker.Allow() {
		s.logger.Warn("vector search rejected, circuit open")
		span.SetStatus(codes.Error, "circuit open")
		return nil, ErrUnavailable
	}

	chunks, err := s.index.Search(ctx, vector, limit)
	if err != nil {
		s.breaker.Failure()
		s.logger.Error("vector search failed",
			zap.Error(err),
			zap.String("breaker_state", s.breaker.State()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	s.breaker.Success()
	span.SetAttributes(attribute.Int("retrieval.hits", len(chunks)))
	return chunks, nil
}
