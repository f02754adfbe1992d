// Package embeddings turns query text into vectors, with content-addressed
// caching and bounded retry against the embedding provider.
package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adl-legal/legald/internal/cache"
	"github.com/adl-legal/legald/internal/retry"
)

// ErrUnavailable indicates the provider kept failing after all retries.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Provider generates an embedding vector for a text.
type Provider interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Config holds embedding service configuration.
type Config struct {
	// Model is the provider-side embedding model name.
	Model string

	// CacheTTL is how long computed vectors stay cached.
	CacheTTL time.Duration

	// Retry is the provider call retry schedule.
	Retry retry.Policy
}

// applyDefaults fills the schedule the pipeline runs with in production.
func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 24 * time.Hour
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = retry.Policy{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     10 * time.Second,
		}
	}
}

// Service embeds query text, consulting the cache first.
type Service struct {
	provider Provider
	cache    cache.Store
	config   Config
	logger   *zap.Logger
	metrics  *Metrics
}

// NewService creates an embedding service.
func NewService(provider Provider, store cache.Store, cfg Config, logger *zap.Logger) (*Service, error) {
	if provider == nil {
		return nil, errors.New("provider is required")
	}
	if store == nil {
		return nil, errors.New("cache store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	return &Service{
		provider: provider,
		cache:    store,
		config:   cfg,
		logger:   logger,
		metrics:  NewMetrics(logger),
	}, nil
}

// EmbedQuery returns the embedding vector for text. The cache is consulted
// first; cache errors count as misses and are only logged. On a miss the
// provider is called under the retry policy and the result is written back
// best-effort. Returns ErrUnavailable once retries are exhausted.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()

	normalized := Normalize(text)
	key := cacheKey(normalized)

	if vector, ok := s.cacheGet(ctx, key); ok {
		s.metrics.RecordLookup(ctx, s.config.Model, true, time.Since(start), nil)
		return vector, nil
	}

	var vector []float32
	err := retry.Do(ctx, s.config.Retry, func(ctx context.Context) error {
		v, err := s.provider.Embed(ctx, s.config.Model, normalized)
		if err != nil {
			s.logger.Warn("embedding call failed", zap.Error(err))
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		s.metrics.RecordLookup(ctx, s.config.Model, false, time.Since(start), err)
		s.logger.Error("embedding generation failed after retries", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.cacheSet(ctx, key, vector)
	s.metrics.RecordLookup(ctx, s.config.Model, false, time.Since(start), nil)
	return vector, nil
}

// cacheGet reads a vector from the cache. Any failure is a miss.
func (s *Service) cacheGet(ctx context.Context, key string) ([]float32, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("embedding cache read error", zap.Error(err))
		}
		return nil, false
	}

	var vector []float32
	if err := json.Unmarshal([]byte(raw), &vector); err != nil {
		s.logger.Warn("corrupt embedding cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	s.logger.Debug("embedding cache hit", zap.String("key", key))
	return vector, true
}

// cacheSet writes a vector through to the cache, best-effort.
func (s *Service) cacheSet(ctx context.Context, key string, vector []float32) {
	encoded, err := json.Marshal(vector)
	if err != nil {
		s.logger.Warn("encoding embedding for cache failed", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, string(encoded), s.config.CacheTTL); err != nil {
		s.logger.Warn("embedding cache write error", zap.Error(err))
	}
}

// Normalize collapses whitespace runs to single spaces and trims. The
// normalized text is what gets fingerprinted and sent to the provider, so two
// queries differing only in whitespace share one cache entry.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// cacheKey returns the content-addressed cache key for normalized text.
func cacheKey(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return "embedding:" + hex.EncodeToString(sum[:])
}
