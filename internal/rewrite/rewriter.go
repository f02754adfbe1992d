// Package rewrite translates colloquial legal questions into formal search
// terminology before retrieval. It never fails: on any error the original
// query passes through unchanged.
package rewrite

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adl-legal/legald/internal/llm"
	"github.com/adl-legal/legald/internal/retry"
)

// systemPrompt instructs the model to rewrite queries into formal Lebanese
// legal search terms without inventing facts.
const systemPrompt = `You are a Lebanese legal terminology expert. Your only task is to rewrite the user's question or scenario into formal Lebanese legal search terms, using vocabulary that would appear in Lebanese law articles, legislative decrees, or court rulings.

Rules:
- Output ONLY the rewritten query. No explanations, no preamble, no labels.
- Preserve the language of the query (Arabic stays Arabic, French stays French, English stays English). You may naturally blend formal Arabic, French, or English legal terms the way Lebanese courts do.
- Replace colloquial phrases with their formal legal equivalents.
- If a legal domain is identifiable, add the relevant Lebanese law reference context, for example: "قانون الموجبات والعقود", "مرسوم اشتراعي 17386 - قانون العمل", "قانون الأحوال الشخصية", "قانون العقوبات اللبناني", "قانون التجارة", "قانون أصول المحاكمات المدنية", "Code of Obligations and Contracts", "Labor Law Decree 17386", "Personal Status Law", "Penal Code", "Commercial Code", "Code of Civil Procedure".
- Do NOT invent article numbers or rulings. Only rephrase toward known Lebanese legal vocabulary.
- Keep the output concise (1-3 sentences maximum).`

const maxOutputTokens = 256

// Completer performs a blocking chat completion.
type Completer interface {
	Complete(ctx context.Context, req llm.ChatRequest) (string, error)
}

// Config holds rewriter configuration.
type Config struct {
	Model string
	Retry retry.Policy
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = retry.Policy{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     8 * time.Second,
		}
	}
}

// Rewriter rewrites queries via a language-model call.
type Rewriter struct {
	completer Completer
	config    Config
	logger    *zap.Logger
}

// New creates a Rewriter.
func New(completer Completer, cfg Config, logger *zap.Logger) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Rewriter{
		completer: completer,
		config:    cfg,
		logger:    logger,
	}
}

// Rewrite returns the formal search-term rendition of query. The downstream
// pipeline must never see a rewrite failure, so exhausted retries or an empty
// model output both fall back to the original query.
func (r *Rewriter) Rewrite(ctx context.Context, query string) string {
	var rewritten string
	err := retry.Do(ctx, r.config.Retry, func(ctx context.Context) error {
		out, err := r.completer.Complete(ctx, llm.ChatRequest{
			Model: r.config.Model,
			Messages: []llm.Message{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: query},
			},
			Temperature: 0, // deterministic legal terminology
			MaxTokens:   maxOutputTokens,
		})
		if err != nil {
			return err
		}
		rewritten = out
		return nil
	})
	if err != nil {
		r.logger.Warn("query rewrite failed, using original query",
			zap.Error(err),
			zap.String("query", query))
		return query
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return query
	}
	return rewritten
}
