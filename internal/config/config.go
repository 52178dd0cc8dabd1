package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ranking strategies
const (
	StrategyExtended = "extended"
	StrategySimple   = "simple"
)

// Embedding providers
const (
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderDisabled = "none"

	// text-embedding-3-small and text-embedding-004
	OpenAIDefaultDimensions = 1536
	GeminiDefaultDimensions = 768
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Matching   MatchingConfig
	Embedding  EmbeddingConfig
	Cache      CacheConfig
	Logging    LoggingConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, takes precedence over the parts below
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
}

// MatchingConfig holds the ranking pipeline configuration
type MatchingConfig struct {
	Strategy         string
	TopN             int
	PoolSize         int
	WeightStructured float64
	WeightVector     float64
	Workers          int
	RetrievalTimeout time.Duration
}

// EmbeddingConfig holds query embedding configuration
type EmbeddingConfig struct {
	Provider         string
	OpenAIAPIKey     string
	OpenAIAPIBase    string
	OpenAIModel      string
	GeminiAPIKey     string
	GeminiModel      string
	Dimensions       int
	StrictDimensions bool
	Timeout          time.Duration
	MaxRetryElapsed  time.Duration
	BreakerFailures  uint32
	BreakerCooldown  time.Duration
}

// CacheConfig holds embedding cache configuration
type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	ginMode := getEnv("GIN_MODE", "release")
	provider := strings.ToLower(getEnv("EMBEDDING_PROVIDER", ProviderOpenAI))

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("POSTGRESQL_URI", getEnv("PG_DSN", ""))),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "honeymoon"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        ginMode,
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Matching: MatchingConfig{
			Strategy:         strings.ToLower(getEnv("RANK_STRATEGY", StrategyExtended)),
			TopN:             getEnvAsInt("MATCH_TOP_N", 3),
			PoolSize:         getEnvAsInt("MATCH_POOL_SIZE", 50),
			WeightStructured: getEnvAsFloat("RANK_WEIGHT_STRUCTURED", 0.4),
			WeightVector:     getEnvAsFloat("RANK_WEIGHT_VECTOR", 0.3),
			Workers:          getEnvAsInt("RANK_WORKERS", 4),
			RetrievalTimeout: getEnvAsDuration("RETRIEVAL_TIMEOUT", 5*time.Second),
		},
		Embedding: EmbeddingConfig{
			Provider:         provider,
			OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIAPIBase:    getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			OpenAIModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
			GeminiModel:      getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
			Dimensions:       getEnvAsInt("EMBEDDING_DIMENSIONS", defaultDimensions(provider)),
			StrictDimensions: getEnvAsBool("EMBEDDING_STRICT_DIMENSIONS", ginMode == "debug"),
			Timeout:          getEnvAsDuration("EMBEDDING_TIMEOUT", 8*time.Second),
			MaxRetryElapsed:  getEnvAsDuration("EMBEDDING_RETRY_MAX_ELAPSED", 3*time.Second),
			BreakerFailures:  uint32(getEnvAsInt("EMBEDDING_BREAKER_FAILURES", 5)),
			BreakerCooldown:  getEnvAsDuration("EMBEDDING_BREAKER_COOLDOWN", 30*time.Second),
		},
		Cache: CacheConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			TTL:      getEnvAsDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// A provider without credentials degrades to no embedder instead of failing startup.
	switch cfg.Embedding.Provider {
	case ProviderOpenAI:
		if cfg.Embedding.OpenAIAPIKey == "" {
			cfg.Embedding.Provider = ProviderDisabled
		}
	case ProviderGemini:
		if cfg.Embedding.GeminiAPIKey == "" {
			cfg.Embedding.Provider = ProviderDisabled
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the matching pipeline cannot run with
func (c *Config) Validate() error {
	m := c.Matching
	if m.Strategy != StrategyExtended && m.Strategy != StrategySimple {
		return fmt.Errorf("invalid RANK_STRATEGY %q, must be %q or %q", m.Strategy, StrategyExtended, StrategySimple)
	}
	if m.TopN <= 0 {
		return fmt.Errorf("MATCH_TOP_N must be positive, got %d", m.TopN)
	}
	if m.PoolSize < m.TopN {
		return fmt.Errorf("MATCH_POOL_SIZE (%d) must be at least MATCH_TOP_N (%d)", m.PoolSize, m.TopN)
	}
	if m.WeightStructured < 0 || m.WeightVector < 0 {
		return fmt.Errorf("ranking weights must not be negative")
	}
	if m.WeightStructured+m.WeightVector > 1 {
		return fmt.Errorf("RANK_WEIGHT_STRUCTURED + RANK_WEIGHT_VECTOR must not exceed 1, got %.3f",
			m.WeightStructured+m.WeightVector)
	}
	if m.Workers <= 0 {
		return fmt.Errorf("RANK_WORKERS must be positive, got %d", m.Workers)
	}

	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderDisabled:
	default:
		return fmt.Errorf("unsupported EMBEDDING_PROVIDER %q, use %q, %q or %q",
			c.Embedding.Provider, ProviderOpenAI, ProviderGemini, ProviderDisabled)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.Embedding.Dimensions)
	}
	return nil
}

// defaultDimensions is the native output size of each provider's default model
func defaultDimensions(provider string) int {
	if provider == ProviderGemini {
		return GeminiDefaultDimensions
	}
	return OpenAIDefaultDimensions
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid bool value for %s, using default %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s, using default %s", key, defaultValue)
		return defaultValue
	}
	return value
}
