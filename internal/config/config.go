package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Rabbit     RabbitConfig
	Database   DatabaseConfig
	MinIO      MinIOConfig
	Neo4j      Neo4jConfig
	Valkey     ValkeyConfig
	Bedrock    BedrockConfig
	OpenRouter OpenRouterConfig
	LLM        LLMConfig
	Worker     WorkerConfig
	Chunking   ChunkingConfig
}

type RabbitConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
	Exchange string
}

func (r RabbitConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		r.User, r.Password, r.Host, r.Port, r.VHost)
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Neo4jConfig struct {
	URI      string
	User     string
	Password string
}

type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
}

type BedrockConfig struct {
	Region  string
	ModelID string
}

type OpenRouterConfig struct {
	APIKey            string
	Model             string
	BaseURL           string
	BaseURLEmbeddings string
	Dimensions        int
}

type LLMConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type WorkerConfig struct {
	SystemType    string // "vector" or "graph"
	Concurrency   int    // broker prefetch: max unacked messages in flight
	MaxAttempts   int    // retry ceiling before dead-lettering
	DeadLetterKey string
	CacheTTL      time.Duration // retrieval answer cache TTL
}

type ChunkingConfig struct {
	ChunkSize int
	Overlap   int
}

func Load() (*Config, error) {
	cfg := &Config{
		Rabbit: RabbitConfig{
			Host:     getEnv("RABBIT_HOST", "localhost"),
			Port:     getEnvInt("RABBIT_PORT", 5672),
			User:     getEnv("RABBIT_USER", "docstream"),
			Password: getEnv("RABBIT_PASSWORD", "docstream"),
			VHost:    getEnv("RABBIT_VHOST", ""),
			Exchange: getEnv("RABBIT_EXCHANGE", "docstream.pipeline"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "docstream"),
			Password: getEnv("DB_PASSWORD", "docstream"),
			Name:     getEnv("DB_NAME", "docstream"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "docstream"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "docstream123"),
			Bucket:    getEnv("MINIO_BUCKET", "docstream"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Neo4j: Neo4jConfig{
			URI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
			User:     getEnv("NEO4J_USER", "neo4j"),
			Password: getEnv("NEO4J_PASSWORD", "docstream"),
		},
		Valkey: ValkeyConfig{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			DB:       getEnvInt("VALKEY_DB", 0),
		},
		Bedrock: BedrockConfig{
			Region:  getEnv("BEDROCK_REGION", ""),
			ModelID: getEnv("BEDROCK_MODEL_ID", "cohere.embed-english-v4"),
		},
		OpenRouter: OpenRouterConfig{
			APIKey:            getEnv("OPENROUTER_API_KEY", ""),
			Model:             getEnv("OPENROUTER_MODEL", ""),
			BaseURL:           getEnv("OPENROUTER_BASE_URL", ""),
			BaseURLEmbeddings: getEnv("OPENROUTER_BASE_URL_EMBEDDINGS", ""),
			Dimensions:        getEnvInt("OPENROUTER_DIMENSIONS", 0),
		},
		LLM: LLMConfig{
			APIKey:  getEnv("LLM_API_KEY", ""),
			Model:   getEnv("LLM_MODEL", ""),
			BaseURL: getEnv("LLM_BASE_URL", ""),
		},
		Worker: WorkerConfig{
			SystemType:    getEnv("WORKER_SYSTEM_TYPE", "vector"),
			Concurrency:   getEnvInt("WORKER_CONCURRENCY", 4),
			MaxAttempts:   getEnvInt("WORKER_MAX_ATTEMPTS", 3),
			DeadLetterKey: getEnv("WORKER_DEAD_LETTER_KEY", "pipeline.dead_letter"),
			CacheTTL:      time.Duration(getEnvInt("RETRIEVAL_CACHE_TTL_SECS", 300)) * time.Second,
		},
		Chunking: ChunkingConfig{
			ChunkSize: getEnvInt("CHUNK_SIZE", 1000),
			Overlap:   getEnvInt("CHUNK_OVERLAP", 200),
		},
	}

	if cfg.Worker.SystemType != "vector" && cfg.Worker.SystemType != "graph" {
		return nil, fmt.Errorf("WORKER_SYSTEM_TYPE must be \"vector\" or \"graph\", got %q", cfg.Worker.SystemType)
	}
	if cfg.Worker.MaxAttempts < 1 {
		return nil, fmt.Errorf("WORKER_MAX_ATTEMPTS must be at least 1, got %d", cfg.Worker.MaxAttempts)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
