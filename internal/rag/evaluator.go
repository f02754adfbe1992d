package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adl-legal/legald/internal/llm"
)

const judgeSystemPrompt = `You are a strict evaluator of legal question answering.
Judge the assistant's answer against the retrieved legal context.
Question to answer: Is the answer legally accurate and helpful based on the context provided?
Respond with a single JSON object and nothing else:
{"score": <float between 0 and 1>, "reasoning": "<one or two sentences>"}`

const defaultEvalTimeout = 30 * time.Second

// EvaluatorConfig tunes the LLM-as-judge pass.
type EvaluatorConfig struct {
	Model   string
	Timeout time.Duration
}

func (c *EvaluatorConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultEvalTimeout
	}
}

// Evaluator scores finished answers with a judge model. It is strictly
// fire-and-forget: results land in the logs and failures never propagate.
type Evaluator struct {
	client ModelClient
	config EvaluatorConfig
	logger *zap.Logger
}

// NewEvaluator creates an Evaluator backed by the given provider.
func NewEvaluator(client ModelClient, cfg EvaluatorConfig, logger *zap.Logger) *Evaluator {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{client: client, config: cfg, logger: logger}
}

type evalVerdict struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// EvaluateAsync kicks off a background evaluation of the answer. The
// evaluation survives cancellation of the request context but is bounded by
// its own timeout.
func (e *Evaluator) EvaluateAsync(ctx context.Context, query, contextText, answer string) {
	evalID := uuid.NewString()
	go func() {
		detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.Timeout)
		defer cancel()
		e.evaluate(detached, evalID, query, contextText, answer)
	}()
}

func (e *Evaluator) evaluate(ctx context.Context, evalID, query, contextText, answer string) {
	input := fmt.Sprintf("### QUERY:\n%s\n\n### CONTEXT:\n%s\n\n### ANSWER:\n%s", query, contextText, answer)
	raw, err := e.client.Complete(ctx, llm.ChatRequest{
		Model: e.config.Model,
		Messages: []llm.Message{
			{Role: "system", Content: judgeSystemPrompt},
			{Role: "user", Content: input},
		},
	})
	if err != nil {
		e.logger.Warn("online evaluation skipped",
			zap.String("evaluation_id", evalID),
			zap.Error(err))
		return
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		e.logger.Warn("online evaluation produced unparseable verdict",
			zap.String("evaluation_id", evalID),
			zap.Error(err))
		return
	}

	e.logger.Info("online evaluation result",
		zap.String("evaluation_id", evalID),
		zap.Float64("score", verdict.Score),
		zap.String("reasoning", verdict.Reasoning))
}

// parseVerdict tolerates judges that wrap the JSON in code fences.
func parseVerdict(raw string) (evalVerdict, error) {
	trimmed := strings.TrimSpace(raw)
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			trimmed = trimmed[start : end+1]
		}
	}
	var v evalVerdict
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return evalVerdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	return v, nil
}
