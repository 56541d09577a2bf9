// Package config loads shopfront's runtime configuration from the
// environment, following the same env-var-first, .env-overlay convention
// the rest of this codebase's lineage uses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the fully resolved, validated process configuration.
type Config struct {
	LLM         LLMConfig
	Cache       CacheConfig
	Session     SessionConfig
	Agent       AgentConfig
	VectorIndex VectorIndexConfig
	HTTP        HTTPConfig
	LogLevel    string
}

type LLMConfig struct {
	APIKey           string
	ChatModel        string
	EmbeddingModel   string
	EmbeddingDim     int
}

type CacheConfig struct {
	RedisURL   string
	DefaultTTL time.Duration
	KeyPrefix  string
	MaxEntries int
}

type SessionConfig struct {
	TTL time.Duration
}

type AgentConfig struct {
	Timeout    time.Duration
	MaxRetries int
	MaxTurns   int
}

type VectorIndexConfig struct {
	StorePath string
	Dimension int
}

type HTTPConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

// Load reads configuration from the process environment, first overlaying
// any `.env` file found in the working directory (godotenv.Overload never
// fails the process if the file is absent).
func Load() (Config, error) {
	_ = godotenv.Overload()

	dim := envInt("EMBEDDING_DIMENSION", 1536)
	cfg := Config{
		LLM: LLMConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			ChatModel:      envString("OPENAI_MODEL", "gpt-4o-mini"),
			EmbeddingModel: envString("EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDim:   dim,
		},
		Cache: CacheConfig{
			RedisURL:   os.Getenv("REDIS_URL"),
			DefaultTTL: envSeconds("CACHE_TTL_SECONDS", 3600),
			KeyPrefix:  envString("CACHE_KEY_PREFIX", "shopfront:"),
			MaxEntries: envInt("CACHE_MAX_ENTRIES", 10000),
		},
		Session: SessionConfig{
			TTL: envSeconds("SESSION_TTL_SECONDS", 1800),
		},
		Agent: AgentConfig{
			Timeout:    envSeconds("AGENT_TIMEOUT_SECONDS", 30),
			MaxRetries: envInt("AGENT_MAX_RETRIES", 3),
			MaxTurns:   envInt("AGENT_MAX_TURNS", 15),
		},
		VectorIndex: VectorIndexConfig{
			StorePath: envString("VECTOR_STORE_PATH", "./data/policy_index"),
			Dimension: dim,
		},
		HTTP: HTTPConfig{
			Host:        envString("API_HOST", "0.0.0.0"),
			Port:        envInt("API_PORT", 8080),
			CORSOrigins: splitCSV(os.Getenv("CORS_ORIGINS")),
		},
		LogLevel: envString("LOG_LEVEL", "info"),
	}

	if cfg.LLM.APIKey == "" {
		return cfg, fmt.Errorf("config: OPENAI_API_KEY is required")
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envSeconds(key string, defSeconds int) time.Duration {
	return time.Duration(envInt(key, defSeconds)) * time.Second
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
