package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Embedding server (Ollama-compatible /api/embed).
	EmbedderURL     string
	EmbedderModel   string
	EmbedderTimeout int // seconds

	// Generation endpoint (Gemini REST API).
	GeminiURL       string
	GeminiAPIKey    string
	GeminiModel     string
	Temperature     float64
	MaxOutputTokens int

	// Resilience around the generation call.
	GenerationTimeout  int // seconds, per attempt
	GenerationAttempts int
	BackoffBase        time.Duration
	GenerationRPS      float64
	RequestTimeout     int // seconds, end-to-end ceiling per answer request

	// Retrieval tuning.
	SearchLimit      int     // candidates fetched from vector search (N_search)
	DefaultTopK      int     // chunks kept when the request does not specify
	MaxTopK          int     // request cap
	MinSimilarity    float64 // cosine similarity cutoff for grounded answers
	PromptCharBudget int

	// Optional cross-encoder reranker. Empty URL disables the hook.
	RerankURL     string
	RerankModel   string
	RerankTimeout int // seconds

	// Answer cache.
	CacheSize int
	CacheTTL  time.Duration

	// Ingest.
	IngestBatchSize int
}

func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "vedai-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "vedai_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "vedai_password"),
		DBName:     getEnv("DB_NAME", "vedai_db"),

		EmbedderURL:     getEnv("EMBEDDER_URL", "http://embedder:11434"),
		EmbedderModel:   getEnv("EMBEDDING_MODEL", "all-minilm"),
		EmbedderTimeout: getEnvInt("EMBEDDER_TIMEOUT", 15),

		GeminiURL:       getEnv("GEMINI_URL", "https://generativelanguage.googleapis.com"),
		GeminiAPIKey:    getSecret("GOOGLE_API_KEY", "GOOGLE_API_KEY_FILE", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		Temperature:     getEnvFloat("GENERATION_TEMPERATURE", 0.1),
		MaxOutputTokens: getEnvInt("GENERATION_MAX_TOKENS", 512),

		GenerationTimeout:  getEnvInt("GENERATION_TIMEOUT", 30),
		GenerationAttempts: getEnvInt("GENERATION_MAX_ATTEMPTS", 3),
		BackoffBase:        time.Duration(getEnvInt("GENERATION_BACKOFF_BASE_MS", 500)) * time.Millisecond,
		GenerationRPS:      getEnvFloat("GENERATION_RPS", 5),
		RequestTimeout:     getEnvInt("RAG_REQUEST_TIMEOUT", 90),

		SearchLimit:      getEnvInt("RAG_SEARCH_LIMIT", 50),
		DefaultTopK:      getEnvInt("RAG_DEFAULT_TOP_K", 8),
		MaxTopK:          getEnvInt("RAG_MAX_TOP_K", 50),
		MinSimilarity:    getEnvFloat("RAG_MIN_SIMILARITY", 0.5),
		PromptCharBudget: getEnvInt("RAG_PROMPT_CHAR_BUDGET", 12000),

		RerankURL:     getEnv("RERANK_URL", ""),
		RerankModel:   getEnv("RERANK_MODEL", "bge-reranker-v2-m3"),
		RerankTimeout: getEnvInt("RERANK_TIMEOUT", 10),

		CacheSize: getEnvInt("ANSWER_CACHE_SIZE", 256),
		CacheTTL:  time.Duration(getEnvInt("ANSWER_CACHE_TTL_MINUTES", 10)) * time.Minute,

		IngestBatchSize: getEnvInt("INGEST_BATCH_SIZE", 32),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
