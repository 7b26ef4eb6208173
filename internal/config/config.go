package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/okr/internal/scoring"
	"github.com/joho/godotenv"
)

// Data source backends
const (
	DataSourceMemory   = "memory"
	DataSourceDynamo   = "dynamo"
	DataSourcePostgres = "postgres"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	Env            string

	// Auth
	SkipAuth        bool
	OIDCIssuer      string
	VerifySignature bool

	// Fact source
	DataSource     string
	FixturesFile   string
	PostgresDSN    string
	PostgresPrefix string

	// Cache
	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
	PropertyStore string

	// Scoring
	TrendLookback                 int
	TargetsFile                   string
	Thresholds                    scoring.Thresholds
	ParticipationDeductionMinutes float64
	ResolvedKeywords              []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:             getEnv("PORT", "8080"),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Env:              getEnv("ENV", "development"),
		SkipAuth:         getEnv("SKIP_AUTH", "false") == "true",
		OIDCIssuer:       os.Getenv("OIDC_ISSUER"),
		DataSource:       strings.ToLower(getEnv("DATA_SOURCE", DataSourceMemory)),
		FixturesFile:     os.Getenv("FIXTURES_FILE"),
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		PostgresPrefix:   getEnv("POSTGRES_TABLE_PREFIX", "okr_"),
		CacheBackend:     strings.ToLower(getEnv("CACHE_BACKEND", CacheMemory)),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		PropertyStore:    strings.ToLower(getEnv("PROPERTY_STORE", "none")),
		TargetsFile:      os.Getenv("TARGETS_FILE"),
		ResolvedKeywords: splitList(getEnv("RESOLVED_KEYWORDS", "resolved,sale,converted")),
	}
	config.VerifySignature = getEnv("VERIFY_JWT_SIGNATURE", "false") == "true"

	switch config.DataSource {
	case DataSourceMemory, DataSourceDynamo, DataSourcePostgres:
	default:
		return nil, fmt.Errorf("invalid DATA_SOURCE %q", config.DataSource)
	}
	if config.DataSource == DataSourcePostgres && config.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required when DATA_SOURCE=postgres")
	}

	switch config.CacheBackend {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q", config.CacheBackend)
	}

	var err error
	if config.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	ttl, err := strconv.Atoi(getEnv("CACHE_TTL_SECONDS", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL_SECONDS: %w", err)
	}
	config.CacheTTL = time.Duration(ttl) * time.Second

	if config.TrendLookback, err = strconv.Atoi(getEnv("TREND_LOOKBACK", "4")); err != nil {
		return nil, fmt.Errorf("invalid TREND_LOOKBACK: %w", err)
	}
	if config.TrendLookback < 1 {
		return nil, fmt.Errorf("TREND_LOOKBACK must be positive, got %d", config.TrendLookback)
	}

	if config.Thresholds.Excellent, err = getFloat("EXCELLENT_THRESHOLD", 90); err != nil {
		return nil, err
	}
	if config.Thresholds.Good, err = getFloat("GOOD_THRESHOLD", 70); err != nil {
		return nil, err
	}
	if config.Thresholds.NeedsImprovement, err = getFloat("NEEDS_IMPROVEMENT_THRESHOLD", 60); err != nil {
		return nil, err
	}
	if err := config.Thresholds.Validate(); err != nil {
		return nil, err
	}

	if config.ParticipationDeductionMinutes, err = getFloat("PARTICIPATION_DEDUCTION_MINUTES", 90); err != nil {
		return nil, err
	}
	if config.ParticipationDeductionMinutes <= 0 {
		return nil, fmt.Errorf("PARTICIPATION_DEDUCTION_MINUTES must be positive")
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// splitList splits a comma-separated value, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
