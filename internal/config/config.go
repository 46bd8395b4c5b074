package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort  string
	LogLevel string

	PostgresDSN string

	NATSURL            string
	NATSIngestSubject  string
	NATSIndexedSubject string

	DocumentsPath  string
	IndexesPath    string
	NamespacesFile string

	Extractor    string
	ChunkSize    int
	ChunkOverlap int

	EmbedProvider    string
	ChatProvider     string
	EmbedBatchSize   int
	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string
	AnthropicAPIKey  string
	AnthropicURL     string
	AnthropicModel   string
	GeminiAPIKey     string
	GeminiChatModel  string
	GeminiEmbedModel string

	RAGFetchK          int
	RAGTopK            int
	RAGLambda          float64
	RAGTokenLimit      int
	RAGTemperature     float64
	RAGMaxOutputTokens int
	TokenEncoding      string

	SessionIdleTTL time.Duration

	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string

	APIRateLimitRPS         float64
	APIRateLimitBurst       int
	APIBackpressureMaxInFly int
	APIBackpressureWait     time.Duration
	APIMaxUploadBytes       int64

	RetryMaxAttempts         int
	RetryInitialBackoff      time.Duration
	GenerateRetryMaxAttempts int
	BreakerEnabled           bool
	BreakerMinRequests       int
	BreakerFailureRatio      float64
	BreakerOpenTimeout       time.Duration

	WorkerMetricsPort string
}

// Load reads a .env file when present and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:            mustEnv("NATS_URL", ""),
		NATSIngestSubject:  mustEnv("NATS_SUBJECT", "documents.ingest"),
		NATSIndexedSubject: mustEnv("NATS_INDEXED_SUBJECT", "documents.indexed"),

		DocumentsPath:  mustEnv("DOCUMENTS_PATH", "./data/documentos"),
		IndexesPath:    mustEnv("INDEXES_PATH", "./data/indexes"),
		NamespacesFile: mustEnv("NAMESPACES_FILE", "./config/namespaces.yaml"),

		Extractor:    strings.ToLower(mustEnv("EXTRACTOR", "pdf")),
		ChunkSize:    mustEnvInt("CHUNK_SIZE", 900),
		ChunkOverlap: mustEnvInt("CHUNK_OVERLAP", 150),

		EmbedProvider:    strings.ToLower(mustEnv("EMBED_PROVIDER", "ollama")),
		ChatProvider:     strings.ToLower(mustEnv("CHAT_PROVIDER", "anthropic")),
		EmbedBatchSize:   mustEnvInt("EMBED_BATCH_SIZE", 32),
		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "jeffh/intfloat-multilingual-e5-large:f16"),
		AnthropicAPIKey:  mustEnv("ANTHROPIC_API_KEY", ""),
		AnthropicURL:     mustEnv("ANTHROPIC_URL", "https://api.anthropic.com"),
		AnthropicModel:   mustEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		GeminiAPIKey:     mustEnv("GEMINI_API_KEY", ""),
		GeminiChatModel:  mustEnv("GEMINI_CHAT_MODEL", "gemini-1.5-flash"),
		GeminiEmbedModel: mustEnv("GEMINI_EMBED_MODEL", "gemini-embedding-001"),

		RAGFetchK:          mustEnvInt("RAG_FETCH_K", 100),
		RAGTopK:            mustEnvInt("RAG_TOP_K", 20),
		RAGLambda:          mustEnvFloat("RAG_MMR_LAMBDA", 0.8),
		RAGTokenLimit:      mustEnvInt("RAG_TOKEN_LIMIT", 7000),
		RAGTemperature:     mustEnvFloat("RAG_TEMPERATURE", 0.1),
		RAGMaxOutputTokens: mustEnvInt("RAG_MAX_OUTPUT_TOKENS", 1000),
		TokenEncoding:      mustEnv("TOKEN_ENCODING", "cl100k_base"),

		SessionIdleTTL: time.Duration(mustEnvInt("SESSION_IDLE_TTL_SECONDS", 3600)) * time.Second,

		S3Bucket:    mustEnv("S3_BUCKET", ""),
		S3Region:    mustEnv("AWS_REGION", ""),
		S3AccessKey: mustEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey: mustEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3Prefix:    mustEnv("S3_PREFIX", "documentos"),

		APIRateLimitRPS:         mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:       mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIBackpressureMaxInFly: mustEnvInt("API_BACKPRESSURE_MAX_IN_FLIGHT", 16),
		APIBackpressureWait:     time.Duration(mustEnvInt("API_BACKPRESSURE_WAIT_MS", 250)) * time.Millisecond,
		APIMaxUploadBytes:       int64(mustEnvInt("API_MAX_UPLOAD_MB", 50)) << 20,

		RetryMaxAttempts:         mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 1),
		RetryInitialBackoff:      time.Duration(mustEnvInt("RESILIENCE_RETRY_INITIAL_BACKOFF_MS", 100)) * time.Millisecond,
		GenerateRetryMaxAttempts: mustEnvInt("RESILIENCE_GENERATE_RETRY_MAX_ATTEMPTS", 1),
		BreakerEnabled:           mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
		BreakerMinRequests:       mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", 10),
		BreakerFailureRatio:      mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", 0.5),
		BreakerOpenTimeout:       time.Duration(mustEnvInt("RESILIENCE_BREAKER_OPEN_TIMEOUT_SECONDS", 30)) * time.Second,

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

// S3Enabled reports whether uploads should be archived to S3.
func (c Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
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
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
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
