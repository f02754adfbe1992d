// Package config provides configuration loading for legald.
//
// Configuration is loaded from an optional YAML file, then overridden by
// environment variables. See Load for precedence and variable mapping.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/adl-legal/legald/internal/logging"
)

// Config holds the complete legald configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Auth          AuthConfig          `koanf:"auth"`
	OpenAI        OpenAIConfig        `koanf:"openai"`
	Milvus        MilvusConfig        `koanf:"milvus"`
	Redis         RedisConfig         `koanf:"redis"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       logging.Config      `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// AuthConfig holds service-to-service authentication configuration.
type AuthConfig struct {
	// ServiceKey is the shared secret expected in the X-Service-Key header.
	ServiceKey string `koanf:"service_key"`
}

// OpenAIConfig holds language-model provider configuration.
type OpenAIConfig struct {
	APIKey         string `koanf:"api_key"`
	BaseURL        string `koanf:"base_url"`
	ChatModel      string `koanf:"chat_model"`
	JudgeModel     string `koanf:"judge_model"`
	EmbeddingModel string `koanf:"embedding_model"`
}

// MilvusConfig holds vector index configuration.
type MilvusConfig struct {
	Address    string `koanf:"address"`
	Token      string `koanf:"token"`
	Collection string `koanf:"collection"`
	Dimension  int    `koanf:"dimension"`
}

// RedisConfig holds embedding cache configuration.
type RedisConfig struct {
	// URL is a redis connection URL (redis://host:port/db). Empty disables
	// Redis; the service falls back to the in-process cache.
	URL string `koanf:"url"`

	// EmbeddingTTL is how long cached embeddings live.
	EmbeddingTTL time.Duration `koanf:"embedding_ttl"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	Enabled      bool   `koanf:"enabled"`
	ServiceName  string `koanf:"service_name"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	Insecure     bool   `koanf:"insecure"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Auth.ServiceKey == "" {
		return errors.New("auth service key is required")
	}
	if c.OpenAI.APIKey == "" {
		return errors.New("openai api key is required")
	}
	if c.Milvus.Address == "" {
		return errors.New("milvus address is required")
	}
	if c.Milvus.Dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension: %d", c.Milvus.Dimension)
	}
	if c.Observability.Enabled && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com"
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if cfg.OpenAI.JudgeModel == "" {
		cfg.OpenAI.JudgeModel = "gpt-4o"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}

	if cfg.Milvus.Address == "" {
		cfg.Milvus.Address = "localhost:19530"
	}
	if cfg.Milvus.Collection == "" {
		cfg.Milvus.Collection = "lebanese_laws"
	}
	if cfg.Milvus.Dimension == 0 {
		cfg.Milvus.Dimension = 1536 // text-embedding-3-small
	}

	if cfg.Redis.EmbeddingTTL == 0 {
		cfg.Redis.EmbeddingTTL = 24 * time.Hour
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "legald"
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}
}
