package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	OpenAI     OpenAIConfig
	Chat       ChatConfig
	RateLimit  RateLimitConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string
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

// OpenAIConfig holds OpenAI-compatible API configuration
type OpenAIConfig struct {
	APIKey              string
	APIBase             string
	ChatModel           string
	ChatTemperature     float64
	ChatMaxTokens       int
	EmbeddingModel      string
	EmbeddingDimensions int
	Enabled             bool
}

// ChatConfig holds conversation pipeline tuning values. The year window and
// the rejection phrase set are product tuning, kept out of the code.
type ChatConfig struct {
	HistoryDepth      int    // trailing turns sent to the model
	ContextLimit      int    // max catalog items in the grounding block
	YearMin           int    // lower bound of a plausible manufacture year
	YearMax           int    // upper bound of a plausible manufacture year
	FallbackMessage   string // substituted when the model refuses mid-stream
	ModerationMessage string // shown when pre-moderation blocks the message
	RejectionPhrases  []string
}

// RateLimitConfig holds the per-user request limiter configuration
type RateLimitConfig struct {
	PerMinute  float64
	Burst      int
	IdleTTLMin int
	Enabled    bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("POSTGRESQL_URI", getEnv("PG_DSN", ""))),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "car_fit"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		OpenAI: OpenAIConfig{
			APIKey:              getEnv("OPENAI_API_KEY", ""),
			APIBase:             getEnv("OPENAI_API_BASE", ""),
			ChatModel:           getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			ChatTemperature:     getEnvAsFloat("OPENAI_CHAT_TEMPERATURE", 0.7),
			ChatMaxTokens:       getEnvAsInt("OPENAI_CHAT_MAX_TOKENS", 1024),
			EmbeddingModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 1536),
			Enabled:             getEnv("OPENAI_API_KEY", "") != "",
		},
		Chat: ChatConfig{
			HistoryDepth:      getEnvAsInt("CHAT_HISTORY_DEPTH", 10),
			ContextLimit:      getEnvAsInt("CHAT_CONTEXT_LIMIT", 5),
			YearMin:           getEnvAsInt("CHAT_YEAR_MIN", 1970),
			YearMax:           getEnvAsInt("CHAT_YEAR_MAX", 2039),
			FallbackMessage:   getEnv("CHAT_FALLBACK_MESSAGE", "Извините, я могу помочь только с подбором автомобиля. Расскажите, какую машину вы ищете?"),
			ModerationMessage: getEnv("CHAT_MODERATION_MESSAGE", "Сообщение отклонено модерацией. Пожалуйста, переформулируйте вопрос."),
			RejectionPhrases:  getEnvAsList("CHAT_REJECTION_PHRASES", defaultRejectionPhrases),
		},
		RateLimit: RateLimitConfig{
			PerMinute:  getEnvAsFloat("RATE_LIMIT_PER_MINUTE", 20),
			Burst:      getEnvAsInt("RATE_LIMIT_BURST", 5),
			IdleTTLMin: getEnvAsInt("RATE_LIMIT_IDLE_TTL_MIN", 30),
			Enabled:    getEnv("RATE_LIMIT_ENABLED", "true") == "true",
		},
	}

	return cfg, nil
}

// defaultRejectionPhrases is the known upstream refusal wording, matched
// case-insensitively inside the token stream.
var defaultRejectionPhrases = []string{
	"извините, я не могу",
	"я не могу помочь с этим",
	"i'm sorry, but i can't",
	"i cannot assist with",
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

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
