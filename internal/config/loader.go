package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, OPENAI_API_KEY, MILVUS_ADDRESS, ...)
//  2. YAML config file (path from configPath, skipped when empty or absent)
//  3. Hardcoded defaults
//
// Environment variables map section_field to section.field on the first
// underscore:
//
//	SERVER_PORT          -> server.port
//	AUTH_SERVICE_KEY     -> auth.service_key
//	OPENAI_API_KEY       -> openai.api_key
//	MILVUS_COLLECTION    -> milvus.collection
//	REDIS_EMBEDDING_TTL  -> redis.embedding_ttl
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
			}
		} else if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envToKey maps an environment variable name to a koanf key.
// The section is everything before the first underscore; underscores in the
// field name are preserved (SERVER_SHUTDOWN_TIMEOUT -> server.shutdown_timeout).
func envToKey(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if !knownSection(parts[0]) {
		return "" // ignore unrelated environment variables
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

func knownSection(s string) bool {
	switch s {
	case "server", "auth", "openai", "milvus", "redis", "observability", "logging":
		return true
	}
	return false
}
