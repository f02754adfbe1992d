package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/adl-legal/legald/internal/embeddings"

// Metrics holds embedding-related metrics.
type Metrics struct {
	meter    metric.Meter
	logger   *zap.Logger
	duration metric.Float64Histogram
	lookups  metric.Int64Counter
	errors   metric.Int64Counter
}

// NewMetrics creates a Metrics instance for the embedding service.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"legald.embedding.lookup_duration_seconds",
		metric.WithDescription("Duration of embedding lookups in seconds, labeled by model and cache outcome (hit, miss)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.lookups, err = m.meter.Int64Counter(
		"legald.embedding.lookups_total",
		metric.WithDescription("Total embedding lookups labeled by model and cache outcome. hit/miss ratio shows cache effectiveness."),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		m.logger.Warn("failed to create lookups counter", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"legald.embedding.errors_total",
		metric.WithDescription("Total embedding failures after retry exhaustion, labeled by model."),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// RecordLookup records one embedding lookup.
func (m *Metrics) RecordLookup(ctx context.Context, model string, cacheHit bool, duration time.Duration, err error) {
	outcome := "miss"
	if cacheHit {
		outcome = "hit"
	}
	attrs := []attribute.KeyValue{
		attribute.String("model", model),
		attribute.String("cache", outcome),
	}

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
	if m.lookups != nil {
		m.lookups.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("model", model)))
	}
}
