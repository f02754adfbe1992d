package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adl-legal/legald/internal/llm"
	"github.com/adl-legal/legald/internal/retry"
)

// ErrGenerationFailed indicates the model produced no usable answer after
// all attempts.
var ErrGenerationFailed = errors.New("answer generation failed")

const generationTemperature = 0.2

// GeneratorConfig tunes answer generation.
type GeneratorConfig struct {
	Model string
	Retry retry.Policy
}

func (c *GeneratorConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = retry.Policy{
			MaxAttempts:    3,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     10 * time.Second,
		}
	}
}

// Generator produces answers from an assembled conversation.
type Generator struct {
	client ModelClient
	config GeneratorConfig
	logger *zap.Logger
}

// NewGenerator creates a Generator backed by the given provider.
func NewGenerator(client ModelClient, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: client, config: cfg, logger: logger}
}

// Generate returns the complete answer text. Transient provider failures are
// retried with backoff; exhaustion surfaces as ErrGenerationFailed.
func (g *Generator) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	var answer string
	err := retry.Do(ctx, g.config.Retry, func(ctx context.Context) error {
		text, err := g.client.Complete(ctx, llm.ChatRequest{
			Model:       g.config.Model,
			Messages:    messages,
			Temperature: generationTemperature,
		})
		if err != nil {
			return err
		}
		answer = text
		return nil
	})
	if err != nil {
		g.logger.Error("generation failed", zap.String("model", g.config.Model), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return answer, nil
}

// GenerateStream opens a streaming generation. Failing to open the stream is
// wrapped as ErrGenerationFailed; once open, fragments and any mid-stream
// failure flow through the returned TokenStream without retry, since partial
// output may already have reached the caller.
func (g *Generator) GenerateStream(ctx context.Context, messages []llm.Message) (TokenStream, error) {
	stream, err := g.client.CompleteStream(ctx, llm.ChatRequest{
		Model:       g.config.Model,
		Messages:    messages,
		Temperature: generationTemperature,
	})
	if err != nil {
		g.logger.Error("stream open failed", zap.String("model", g.config.Model), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return stream, nil
}
