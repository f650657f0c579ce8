package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL           string
	HTTPPort              string
	FeedURL               string
	FeedAPIToken          string
	FeedRetryMax          int
	FeedRetryBaseDelay    time.Duration
	FeedMaxPages          int
	IngestInterval        time.Duration
	OHLCCacheTTL          time.Duration
	AdminAPIKey           string
	AdminRateLimit        float64
	AdminRateBurst        int
	GoogleCredentialsJSON string
	GoogleSpreadsheetID   string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first if present; real environment
// variables take precedence over it.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	return Config{
		DatabaseURL:           envOrDefaultWarn("DATABASE_URL", ""),
		HTTPPort:              envOrDefault("HTTP_PORT", "8080"),
		FeedURL:               envOrDefaultWarn("FEED_URL", ""),
		FeedAPIToken:          envOrDefaultWarn("FEED_API_TOKEN", ""),
		FeedRetryMax:          envOrDefaultInt("FEED_RETRY_MAX", 5),
		FeedRetryBaseDelay:    envOrDefaultDuration("FEED_RETRY_BASE_DELAY", 2*time.Second),
		FeedMaxPages:          envOrDefaultInt("FEED_MAX_PAGES", 50),
		IngestInterval:        envOrDefaultDuration("INGEST_INTERVAL", 10*time.Minute),
		OHLCCacheTTL:          envOrDefaultDuration("OHLC_CACHE_TTL", time.Minute),
		AdminAPIKey:           os.Getenv("ADMIN_API_KEY"),
		AdminRateLimit:        envOrDefaultFloat("ADMIN_RATE_LIMIT", 5),
		AdminRateBurst:        envOrDefaultInt("ADMIN_RATE_BURST", 10),
		GoogleCredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS_JSON"),
		GoogleSpreadsheetID:   os.Getenv("GOOGLE_SPREADSHEET_ID"),
	}
}

// SheetsExportEnabled reports whether both Google Sheets settings are present.
func (c Config) SheetsExportEnabled() bool {
	return c.GoogleCredentialsJSON != "" && c.GoogleSpreadsheetID != ""
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			slog.Warn("invalid positive number env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return f
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
