// Command legald runs the ADL legal assistant API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/adl-legal/legald/internal/cache"
	"github.com/adl-legal/legald/internal/config"
	"github.com/adl-legal/legald/internal/embeddings"
	"github.com/adl-legal/legald/internal/httpapi"
	"github.com/adl-legal/legald/internal/llm"
	"github.com/adl-legal/legald/internal/logging"
	"github.com/adl-legal/legald/internal/rag"
	"github.com/adl-legal/legald/internal/retrieval"
	"github.com/adl-legal/legald/internal/rewrite"
	"github.com/adl-legal/legald/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "legald: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// Local development convenience; the file is optional.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.Observability.Enabled,
		ServiceName: cfg.Observability.ServiceName,
		Endpoint:    cfg.Observability.OTLPEndpoint,
		Insecure:    cfg.Observability.Insecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	provider, err := llm.NewClient(llm.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("initializing llm client: %w", err)
	}

	var store cache.Store
	if cfg.Redis.URL != "" {
		redisStore, err := cache.NewRedis(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("initializing redis cache: %w", err)
		}
		defer redisStore.Close() //nolint:errcheck
		store = redisStore
	} else {
		logger.Warn("redis not configured, using in-process embedding cache")
		store = cache.NewMemory()
	}

	embedder, err := embeddings.NewService(provider, store, embeddings.Config{
		Model:    cfg.OpenAI.EmbeddingModel,
		CacheTTL: cfg.Redis.EmbeddingTTL,
	}, logger.Named("embeddings"))
	if err != nil {
		return fmt.Errorf("initializing embedding service: %w", err)
	}

	index, err := retrieval.NewMilvusIndex(ctx, retrieval.MilvusConfig{
		Address:    cfg.Milvus.Address,
		Token:      cfg.Milvus.Token,
		Collection: cfg.Milvus.Collection,
		Dimension:  cfg.Milvus.Dimension,
	}, logger.Named("milvus"))
	if err != nil {
		return fmt.Errorf("initializing milvus index: %w", err)
	}
	defer func() {
		if err := index.Close(context.Background()); err != nil {
			logger.Warn("milvus close", zap.Error(err))
		}
	}()

	retriever, err := retrieval.NewService(index, retrieval.Config{}, logger.Named("retrieval"))
	if err != nil {
		return fmt.Errorf("initializing retriever: %w", err)
	}

	model := rag.NewModelClient(provider)
	rewriter := rewrite.New(provider, rewrite.Config{Model: cfg.OpenAI.ChatModel}, logger.Named("rewrite"))
	generator := rag.NewGenerator(model, rag.GeneratorConfig{Model: cfg.OpenAI.ChatModel}, logger.Named("generator"))
	evaluator := rag.NewEvaluator(model, rag.EvaluatorConfig{Model: cfg.OpenAI.JudgeModel}, logger.Named("evaluator"))

	pipeline, err := rag.NewService(rewriter, embedder, retriever, generator, evaluator, logger.Named("rag"))
	if err != nil {
		return fmt.Errorf("initializing pipeline: %w", err)
	}

	server, err := httpapi.NewServer(pipeline, logger.Named("http"), httpapi.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		ServiceKey: cfg.Auth.ServiceKey,
	})
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
