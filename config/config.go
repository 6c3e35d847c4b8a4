package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	API      APIConfig
	CORS     CORSConfig
	Chat     ChatConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type APIConfig struct {
	KeyHeader               string
	InternalKey             string
	RateLimitMessagesPerSec int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type ChatConfig struct {
	// TypingResetSeconds is how long a typing indicator stays on
	// before the gateway broadcasts the trailing "stopped" event.
	TypingResetSeconds int
	MaxMessageLength   int
	DefaultPageSize    int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		redisDB = 0
	}

	jwtExpiry, err := strconv.Atoi(getEnv("JWT_EXPIRY_HOURS", "168"))
	if err != nil {
		jwtExpiry = 168
	}

	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT_MESSAGES_PER_SECOND", "10"))
	if err != nil {
		rateLimit = 10
	}

	typingReset, err := strconv.Atoi(getEnv("TYPING_RESET_SECONDS", "3"))
	if err != nil {
		typingReset = 3
	}

	maxMessageLen, err := strconv.Atoi(getEnv("MAX_MESSAGE_LENGTH", "10000"))
	if err != nil {
		maxMessageLen = 10000
	}

	pageSize, err := strconv.Atoi(getEnv("MESSAGE_PAGE_SIZE", "50"))
	if err != nil {
		pageSize = 50
	}

	origins := strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ",")

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "hubso"),
			Password: getEnv("DB_PASSWORD", "hubso_password"),
			DBName:   getEnv("DB_NAME", "hubso_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-this-secret-key"),
			ExpiryHours: jwtExpiry,
		},
		API: APIConfig{
			KeyHeader:               getEnv("API_KEY_HEADER", "X-API-Key"),
			InternalKey:             getEnv("INTERNAL_API_KEY", ""),
			RateLimitMessagesPerSec: rateLimit,
		},
		CORS: CORSConfig{
			AllowedOrigins: origins,
		},
		Chat: ChatConfig{
			TypingResetSeconds: typingReset,
			MaxMessageLength:   maxMessageLen,
			DefaultPageSize:    pageSize,
		},
	}

	// Validate required fields
	if cfg.JWT.Secret == "change-this-secret-key" && cfg.Server.Env == "production" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return cfg, nil
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// TypingResetWindow returns the typing auto-reset window as a duration
func (c ChatConfig) TypingResetWindow() time.Duration {
	return time.Duration(c.TypingResetSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
