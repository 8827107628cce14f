package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	// Splice catalog
	GraphQLURL      string
	SpliceRateLimit float64 // requests per second, 0 disables limiting
	SpliceTimeout   time.Duration
	PerPage         int

	// Audio engine
	CacheCapacity       int
	PrefetchConcurrency int
	SampleRate          int
	SpeakerBuffer       time.Duration
	Volume              float64
	RepeatAudio         bool
	SettingsFile        string // optional settings.env watched for repeat/volume changes
	DownloadTimeout     time.Duration

	// HTTP API
	HTTPAddr  string
	JWTSecret string // empty disables bearer auth

	// Catalog database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis raw sample tier
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	// MinIO sample archive
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// Logging
	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Error loading .env, relying on environment and defaults: %v", err)
	}

	return &Config{
		GraphQLURL:      getEnv("SPLICE_GRAPHQL_URL", "https://surfaces-graphql.splice.com/graphql"),
		SpliceRateLimit: getEnvFloat("SPLICE_RATE_LIMIT", 5),
		SpliceTimeout:   getEnvDuration("SPLICE_TIMEOUT", 30*time.Second),
		PerPage:         getEnvInt("SEARCH_PER_PAGE", 50),

		CacheCapacity:       getEnvInt("AUDIO_CACHE_CAPACITY", 50),
		PrefetchConcurrency: getEnvInt("PREFETCH_CONCURRENCY", 10),
		SampleRate:          getEnvInt("AUDIO_SAMPLE_RATE", 44100),
		SpeakerBuffer:       getEnvDuration("AUDIO_SPEAKER_BUFFER", 100*time.Millisecond),
		Volume:              getEnvFloat("AUDIO_VOLUME", 0.8),
		RepeatAudio:         getEnvBool("REPEAT_AUDIO", true),
		SettingsFile:        getEnv("SETTINGS_FILE", ""),
		DownloadTimeout:     getEnvDuration("DOWNLOAD_TIMEOUT", 2*time.Minute),

		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "sampledeck"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisTTL:      getEnvDuration("REDIS_SAMPLE_TTL", 24*time.Hour),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "sampledeck"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 28),
	}
}

// RedisEnabled reports whether the Redis sample tier is configured.
func (c *Config) RedisEnabled() bool { return c.RedisHost != "" }

// MinioEnabled reports whether the MinIO archive tier is configured.
func (c *Config) MinioEnabled() bool { return c.MinioEndpoint != "" }

// DBEnabled reports whether the sample catalog database is configured.
func (c *Config) DBEnabled() bool { return c.DBHost != "" }

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if _, err := url.ParseRequestURI(c.GraphQLURL); err != nil {
		errs = append(errs, fmt.Errorf("SPLICE_GRAPHQL_URL: %w", err))
	}
	if c.PerPage <= 0 {
		errs = append(errs, errors.New("SEARCH_PER_PAGE must be positive"))
	}
	if c.CacheCapacity <= 0 {
		errs = append(errs, errors.New("AUDIO_CACHE_CAPACITY must be positive"))
	}
	if c.PrefetchConcurrency <= 0 {
		errs = append(errs, errors.New("PREFETCH_CONCURRENCY must be positive"))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, errors.New("AUDIO_SAMPLE_RATE must be positive"))
	}
	if c.Volume < 0 || c.Volume > 1 {
		errs = append(errs, errors.New("AUDIO_VOLUME must be between 0 and 1"))
	}
	if c.SpliceRateLimit < 0 {
		errs = append(errs, errors.New("SPLICE_RATE_LIMIT must be non-negative"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %s (must be debug, info, warn, or error)", c.LogLevel))
	}

	return errors.Join(errs...)
}
