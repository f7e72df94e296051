package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Agent     AgentConfig
	Ingest    IngestConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	MaxUploadMB int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LLMConfig struct {
	OpenAIKey       string
	AnthropicKey    string
	OllamaURL       string
	DefaultProvider string
	// FallbackProvider re-sends any failed call, classifier calls included,
	// to a second provider. Setting it turns single-attempt turns into
	// retried ones.
	FallbackProvider string
	MaxRetries       int
}

type EmbeddingConfig struct {
	Provider string
	Model    string
}

type AgentConfig struct {
	ClassifierModel string
	ResponseModel   string
	TopK            int
}

type IngestConfig struct {
	VectorBackend string // "pgvector" or "memory"
	BatchSize     int
}

const (
	VectorBackendPgVector = "pgvector"
	VectorBackendMemory   = "memory"
)

// PgVectorDimensions is the width of menu_vectors.embedding. The pgvector
// backend only accepts embedding models producing vectors of this size.
const PgVectorDimensions = 1536

// embeddingDimensions lists output sizes of common embedding models.
// Models not listed are not checked.
var embeddingDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
	"text-embedding-3-large": 3072,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using process environment")
	}

	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxUpload, err := getEnvInt("MAX_UPLOAD_MB", 32)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	// Provider calls are not retried unless explicitly configured.
	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	topK, err := getEnvInt("RETRIEVAL_TOP_K", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRIEVAL_TOP_K: %w", err)
	}

	batchSize, err := getEnvInt("INGEST_BATCH_SIZE", 50)
	if err != nil {
		return nil, fmt.Errorf("invalid INGEST_BATCH_SIZE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        port,
			MaxUploadMB: maxUpload,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       maxRetries,
		},
		Embedding: EmbeddingConfig{
			Provider: getEnv("EMBEDDING_PROVIDER", "openai"),
			Model:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Agent: AgentConfig{
			ClassifierModel: getEnv("CLASSIFIER_MODEL", "gpt-4o-mini"),
			ResponseModel:   getEnv("RESPONSE_MODEL", "gpt-4o"),
			TopK:            topK,
		},
		Ingest: IngestConfig{
			VectorBackend: getEnv("VECTOR_BACKEND", VectorBackendPgVector),
			BatchSize:     batchSize,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Ingest.VectorBackend == VectorBackendPgVector && c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	for _, p := range []string{c.LLM.DefaultProvider, c.Embedding.Provider} {
		switch p {
		case "openai":
			if c.LLM.OpenAIKey == "" {
				missing = append(missing, "OPENAI_API_KEY")
			}
		case "anthropic":
			if c.LLM.AnthropicKey == "" {
				missing = append(missing, "ANTHROPIC_API_KEY")
			}
		case "ollama":
			if c.LLM.OllamaURL == "" {
				missing = append(missing, "OLLAMA_URL")
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(dedupe(missing), ", "))
	}

	switch c.Ingest.VectorBackend {
	case VectorBackendPgVector, VectorBackendMemory:
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q", c.Ingest.VectorBackend)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("INGEST_BATCH_SIZE must be positive")
	}
	if dims, ok := embeddingDimensions[c.Embedding.Model]; ok &&
		c.Ingest.VectorBackend == VectorBackendPgVector && dims != PgVectorDimensions {
		return fmt.Errorf("EMBEDDING_MODEL %q produces %d dimensions, pgvector backend requires %d",
			c.Embedding.Model, dims, PgVectorDimensions)
	}
	if c.LLM.FallbackProvider != "" && c.LLM.FallbackProvider != c.LLM.DefaultProvider {
		slog.Warn("LLM_FALLBACK_PROVIDER set: failed provider calls will be retried on the fallback",
			"fallback", c.LLM.FallbackProvider)
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
