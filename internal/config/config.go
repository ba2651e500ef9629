package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	AI        AIConfig
	Embedding EmbeddingConfig
	Vector    VectorConfig
	Catalog   CatalogConfig
	Store     StoreConfig
	Ingest    IngestConfig
	Auth      AuthConfig
	Session   SessionConfig
	Tracing   TracingConfig
}

// Load reads the whole configuration from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	vector, err := loadVectorConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	ingest, err := loadIngestConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	tracing, err := loadTracingConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Log: LogConfig{
			Mode:  getEnvOrDefault("LOG_MODE", "dev"),
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
		AI: ai,
		Embedding: EmbeddingConfig{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			Model:   getEnvOrDefault("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-large"),
		},
		Vector:  vector,
		Catalog: CatalogConfig{ExpertsFile: strings.TrimSpace(os.Getenv("EXPERTS_FILE"))},
		Store:   store,
		Ingest:  ingest,
		Auth:    auth,
		Session: session,
		Tracing: tracing,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

func loadServerConfig() (ServerConfig, error) {
	origins := splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// LogConfig selects the zap encoder and minimum level.
type LogConfig struct {
	Mode  string
	Level string
}

// Supported completion providers.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	MaxRetries  int
	Timeout     time.Duration
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	if c.Provider == ProviderArk {
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	}
	return c.APIKey != ""
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s credentials or model missing", c.Provider)
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	switch c.Provider {
	case ProviderArk:
		cfg := &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
		}
		if c.Timeout > 0 {
			timeout := c.Timeout
			cfg.Timeout = &timeout
		}
		return ark.NewChatModel(ctx, cfg)
	default:
		return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
			APIKey:      c.APIKey,
			BaseURL:     c.BaseURL,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
			Timeout:     c.Timeout,
		})
	}
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderOpenAI))
	if provider != ProviderOpenAI && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("LLM_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	retries := 0
	if override, err := parseOptionalIntEnv("COMPLETION_MAX_RETRIES"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 0 || *override > 5 {
			return AIConfig{}, fmt.Errorf("COMPLETION_MAX_RETRIES must be between 0 and 5, got %d", *override)
		}
		retries = *override
	}

	timeout, err := parseDurationEnv("COMPLETION_TIMEOUT", 60*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	cfg := AIConfig{
		Provider:    provider,
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		MaxRetries:  retries,
		Timeout:     timeout,
	}

	if provider == ProviderArk {
		cfg.APIKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		cfg.AccessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		cfg.SecretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
		cfg.Model = strings.TrimSpace(os.Getenv("ARK_MODEL"))
		cfg.BaseURL = getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
		cfg.Region = getEnvOrDefault("ARK_REGION", "cn-beijing")
		return cfg, nil
	}

	cfg.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	cfg.BaseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	cfg.Model = getEnvOrDefault("OPENAI_CHAT_MODEL", "gpt-4o-mini")
	return cfg, nil
}

// EmbeddingConfig describes the OpenAI embeddings endpoint.
type EmbeddingConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Enabled reports whether embeddings can be requested.
func (c EmbeddingConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// Supported vector backends.
const (
	VectorPinecone = "pinecone"
	VectorMemory   = "memory"
)

// VectorConfig routes retrieval to a vector index.
type VectorConfig struct {
	Backend   string
	APIKey    string
	IndexName string
	IndexHost string
	BaseURL   string
	TopK      int
	Timeout   time.Duration
}

func loadVectorConfig() (VectorConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("VECTOR_BACKEND", VectorPinecone))
	if backend != VectorPinecone && backend != VectorMemory {
		return VectorConfig{}, fmt.Errorf("invalid VECTOR_BACKEND value %q", backend)
	}

	topK := 3
	if override, err := parseOptionalIntEnv("RETRIEVAL_TOP_K"); err != nil {
		return VectorConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return VectorConfig{}, fmt.Errorf("RETRIEVAL_TOP_K must be positive, got %d", *override)
		}
		topK = *override
	}

	timeout, err := parseDurationEnv("PINECONE_TIMEOUT", 30*time.Second)
	if err != nil {
		return VectorConfig{}, err
	}

	return VectorConfig{
		Backend:   backend,
		APIKey:    strings.TrimSpace(os.Getenv("PINECONE_API_KEY")),
		IndexName: strings.TrimSpace(os.Getenv("PINECONE_INDEX")),
		IndexHost: strings.TrimSpace(os.Getenv("PINECONE_INDEX_HOST")),
		BaseURL:   getEnvOrDefault("PINECONE_BASE_URL", "https://api.pinecone.io"),
		TopK:      topK,
		Timeout:   timeout,
	}, nil
}

// CatalogConfig points at an optional YAML expert catalog.
type CatalogConfig struct {
	ExpertsFile string
}

// StoreConfig selects the gorm dialect used for experts and episodes.
type StoreConfig struct {
	Driver string
	DSN    string
}

func loadStoreConfig() (StoreConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("DB_DRIVER", "sqlite"))
	if driver != "sqlite" && driver != "postgres" {
		return StoreConfig{}, fmt.Errorf("invalid DB_DRIVER value %q", driver)
	}
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		if driver == "postgres" {
			return StoreConfig{}, fmt.Errorf("DB_DSN is required for postgres")
		}
		dsn = "experts.db"
	}
	return StoreConfig{Driver: driver, DSN: dsn}, nil
}

// IngestConfig tunes transcript chunking.
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

func loadIngestConfig() (IngestConfig, error) {
	cfg := IngestConfig{ChunkSize: 1000, ChunkOverlap: 100, BatchSize: 32}

	if v, err := parseOptionalIntEnv("INGEST_CHUNK_SIZE"); err != nil {
		return IngestConfig{}, err
	} else if v != nil {
		cfg.ChunkSize = *v
	}
	if v, err := parseOptionalIntEnv("INGEST_CHUNK_OVERLAP"); err != nil {
		return IngestConfig{}, err
	} else if v != nil {
		cfg.ChunkOverlap = *v
	}
	if v, err := parseOptionalIntEnv("INGEST_BATCH_SIZE"); err != nil {
		return IngestConfig{}, err
	} else if v != nil {
		cfg.BatchSize = *v
	}

	if cfg.ChunkSize < 100 {
		return IngestConfig{}, fmt.Errorf("INGEST_CHUNK_SIZE must be at least 100, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return IngestConfig{}, fmt.Errorf("INGEST_CHUNK_OVERLAP must be in [0, %d), got %d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.BatchSize < 1 {
		return IngestConfig{}, fmt.Errorf("INGEST_BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}
	return cfg, nil
}

// AuthConfig describes the single admin account and token signing.
type AuthConfig struct {
	Username        string
	Password        string
	PasswordHash    string
	JWTSecret       string
	TokenTTL        time.Duration
	MaxAttempts     int
	LockoutDuration time.Duration
}

// Enabled reports whether the management API can be unlocked.
func (c AuthConfig) Enabled() bool {
	return c.Username != "" && c.JWTSecret != "" && (c.Password != "" || c.PasswordHash != "")
}

func loadAuthConfig() (AuthConfig, error) {
	ttl, err := parseDurationEnv("AUTH_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return AuthConfig{}, err
	}
	lockout, err := parseDurationEnv("AUTH_LOCKOUT_DURATION", 15*time.Minute)
	if err != nil {
		return AuthConfig{}, err
	}
	attempts := 5
	if v, err := parseOptionalIntEnv("AUTH_MAX_ATTEMPTS"); err != nil {
		return AuthConfig{}, err
	} else if v != nil {
		attempts = *v
	}

	cfg := AuthConfig{
		Username:        strings.TrimSpace(os.Getenv("AUTH_USERNAME")),
		Password:        os.Getenv("AUTH_PASSWORD"),
		PasswordHash:    strings.TrimSpace(os.Getenv("AUTH_PASSWORD_HASH")),
		JWTSecret:       strings.TrimSpace(os.Getenv("JWT_SECRET")),
		TokenTTL:        ttl,
		MaxAttempts:     attempts,
		LockoutDuration: lockout,
	}
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 32 {
		return AuthConfig{}, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	return cfg, nil
}

// Supported session backends.
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// SessionConfig selects where login sessions live.
type SessionConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func loadSessionConfig() (SessionConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("SESSION_BACKEND", SessionMemory))
	if backend != SessionMemory && backend != SessionRedis {
		return SessionConfig{}, fmt.Errorf("invalid SESSION_BACKEND value %q", backend)
	}
	db := 0
	if v, err := parseOptionalIntEnv("REDIS_DB"); err != nil {
		return SessionConfig{}, err
	} else if v != nil {
		db = *v
	}
	return SessionConfig{
		Backend:       backend,
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       db,
	}, nil
}

// TracingConfig selects the OpenTelemetry exporter.
type TracingConfig struct {
	Exporter     string
	OTLPEndpoint string
	ServiceName  string
}

func loadTracingConfig() (TracingConfig, error) {
	exporter := strings.ToLower(getEnvOrDefault("TRACING_EXPORTER", "none"))
	switch exporter {
	case "none", "stdout", "otlp":
	default:
		return TracingConfig{}, fmt.Errorf("invalid TRACING_EXPORTER value %q", exporter)
	}
	return TracingConfig{
		Exporter:     exporter,
		OTLPEndpoint: strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", "podcast-expert-api"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}
