// Package logging builds the structured logger used across legald.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum enabled level: debug, info, warn, error.
	Level string `koanf:"level"`

	// Format selects the encoder: "json" or "console".
	Format string `koanf:"format"`
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Format != "" && c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("invalid log format: %q (must be json or console)", c.Format)
	}
	if c.Level != "" {
		if _, err := zapcore.ParseLevel(c.Level); err != nil {
			return fmt.Errorf("invalid log level: %q", c.Level)
		}
	}
	return nil
}

// New creates a zap logger from config.
func New(cfg Config) (*zap.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		level, _ = zapcore.ParseLevel(cfg.Level)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = "json"
	if cfg.Format == "console" {
		zapCfg.Encoding = "console"
	}
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
