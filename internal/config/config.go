package config

import (
	"os"
	"strconv"
	"time"

	"github.com/kirillkom/parts-sales-assistant/internal/infrastructure/resilience"
)

type Config struct {
	APIPort  string
	LogLevel string

	// PostgresDSN enables the Postgres conversation and notification stores.
	// Empty keeps conversations in memory.
	PostgresDSN string

	NATSURL     string
	NATSSubject string
	// NotifySink selects how the API delivers notifications: "log" handles
	// them in process, "nats" queues them for the worker.
	NotifySink string

	OllamaURL        string
	OllamaEmbedModel string
	OllamaTimeout    time.Duration

	Embedder           string
	EmbeddingDimension int
	EmbedBatchSize     int

	VectorIndex       string
	QdrantURL         string
	QdrantCollection  string
	ChromemCollection string
	ChromemPath       string

	CatalogPath  string
	CatalogWatch bool

	RAGSearchTopK  int
	RAGRerankTopK  int
	RAGMaxDistance float64

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	APIQueueWait      time.Duration

	Resilience resilience.Config

	InvoiceStoragePath string
	WorkerMetricsPort  string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject: mustEnv("NATS_SUBJECT", "parts.notifications"),
		NotifySink:  mustEnv("NOTIFY_SINK", "log"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		OllamaTimeout:    time.Duration(mustEnvInt("OLLAMA_TIMEOUT_SECONDS", 60)) * time.Second,

		Embedder:           mustEnv("EMBEDDER", "hashing"),
		EmbeddingDimension: mustEnvInt("EMBEDDING_DIMENSION", 256),
		EmbedBatchSize:     mustEnvInt("EMBED_BATCH_SIZE", 32),

		VectorIndex:       mustEnv("VECTOR_INDEX", "memory"),
		QdrantURL:         mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:  mustEnv("QDRANT_COLLECTION", "parts_catalog"),
		ChromemCollection: mustEnv("CHROMEM_COLLECTION", "parts_catalog"),
		ChromemPath:       mustEnv("CHROMEM_PATH", ""),

		CatalogPath:  mustEnv("CATALOG_PATH", "./data/catalog.yaml"),
		CatalogWatch: mustEnvBool("CATALOG_WATCH", true),

		RAGSearchTopK:  mustEnvInt("RAG_SEARCH_TOP_K", 10),
		RAGRerankTopK:  mustEnvInt("RAG_RERANK_TOP_K", 5),
		RAGMaxDistance: mustEnvFloat("RAG_MAX_DISTANCE", 0),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 64),
		APIQueueWait:      time.Duration(mustEnvInt("API_QUEUE_WAIT_MS", 250)) * time.Millisecond,

		Resilience: loadResilience(),

		InvoiceStoragePath: mustEnv("INVOICE_STORAGE_PATH", "./data/storage"),
		WorkerMetricsPort:  mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

func loadResilience() resilience.Config {
	def := resilience.DefaultConfig()
	return resilience.Config{
		RetryMaxAttempts:    mustEnvInt("RETRY_MAX_ATTEMPTS", def.RetryMaxAttempts),
		RetryInitialBackoff: time.Duration(mustEnvInt("RETRY_INITIAL_BACKOFF_MS", int(def.RetryInitialBackoff/time.Millisecond))) * time.Millisecond,
		RetryMaxBackoff:     time.Duration(mustEnvInt("RETRY_MAX_BACKOFF_MS", int(def.RetryMaxBackoff/time.Millisecond))) * time.Millisecond,
		RetryMultiplier:     mustEnvFloat("RETRY_MULTIPLIER", def.RetryMultiplier),

		BreakerEnabled:          mustEnvBool("BREAKER_ENABLED", def.BreakerEnabled),
		BreakerMinRequests:      uint32(mustEnvInt("BREAKER_MIN_REQUESTS", int(def.BreakerMinRequests))),
		BreakerFailureRatio:     mustEnvFloat("BREAKER_FAILURE_RATIO", def.BreakerFailureRatio),
		BreakerOpenTimeout:      time.Duration(mustEnvInt("BREAKER_OPEN_TIMEOUT_MS", int(def.BreakerOpenTimeout/time.Millisecond))) * time.Millisecond,
		BreakerHalfOpenMaxCalls: uint32(mustEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", int(def.BreakerHalfOpenMaxCalls))),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
