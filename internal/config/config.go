package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Qdrant   QdrantConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	LLM      LLMConfig
	RAG      RAGConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type QdrantConfig struct {
	URL    string
	APIKey string
}

type PostgresConfig struct {
	URL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LLMConfig struct {
	OpenAIKey      string
	AnthropicKey   string
	ChatProvider   string // "openai" or "anthropic"
	ChatModel      string
	EmbeddingModel string
	MaxRetries     int
}

type RAGConfig struct {
	Collection    string
	VectorBackend string // "qdrant", "pgvector", "memory"
	ChunkSize     int
	ChunkOverlap  int
	MaxChunks     int
	TopK          int
	MinScore      float64
	UploadDir     string
}

func Load() (*Config, error) {
	// Best-effort; a missing .env file is not an error.
	_ = godotenv.Load()

	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	chunkSize, err := getEnvInt("CHUNK_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_SIZE: %w", err)
	}

	chunkOverlap, err := getEnvInt("CHUNK_OVERLAP", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_OVERLAP: %w", err)
	}

	maxChunks, err := getEnvInt("MAX_CHUNKS", 25)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_CHUNKS: %w", err)
	}

	topK, err := getEnvInt("RAG_TOP_K", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid RAG_TOP_K: %w", err)
	}

	minScore, err := getEnvFloat("RAG_MIN_SCORE", 0.7)
	if err != nil {
		return nil, fmt.Errorf("invalid RAG_MIN_SCORE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Qdrant: QdrantConfig{
			URL:    getEnv("QDRANT_URL", "http://localhost:6333"),
			APIKey: getEnv("QDRANT_API_KEY", ""),
		},
		Postgres: PostgresConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		LLM: LLMConfig{
			OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
			ChatProvider:   getEnv("CHAT_PROVIDER", "openai"),
			ChatModel:      getEnv("CHAT_MODEL", "gpt-4o-mini"),
			EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			MaxRetries:     maxRetries,
		},
		RAG: RAGConfig{
			Collection:    getEnv("RAG_COLLECTION", "documents"),
			VectorBackend: getEnv("VECTOR_BACKEND", "qdrant"),
			ChunkSize:     chunkSize,
			ChunkOverlap:  chunkOverlap,
			MaxChunks:     maxChunks,
			TopK:          topK,
			MinScore:      minScore,
			UploadDir:     getEnv("UPLOAD_DIR", os.TempDir()),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
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

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}
