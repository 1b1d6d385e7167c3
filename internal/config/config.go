package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	DBPath      string
	BaseURL     string
	Environment string
	Version     string

	JWTSecret    string
	JWTPublicKey string
	JWTIssuer    string
	JWTAudience  string

	UtmifyURL     string
	UtmifyTimeout time.Duration

	DeliveryWorkers   int
	DeliveryQueueSize int
	SweepInterval     time.Duration
	MaxAttempts       int
	RetryBackoff      time.Duration

	CacheSize int
	CacheTTL  time.Duration
	GeoIPPath string
	IPCheck   bool

	RedisURL  string
	DedupeTTL time.Duration

	LogLevel  string
	LogFormat string
}

const DefaultUtmifyURL = "https://api.utmify.com.br/api-credentials/orders"

// Load reads the TRACKER_* environment. A .env file, if any, must already be
// loaded into the process environment.
func Load() (*Config, error) {
	baseURL := strings.TrimRight(os.Getenv("TRACKER_BASE_URL"), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("TRACKER_BASE_URL is required")
	}
	if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("TRACKER_BASE_URL must be an absolute URL")
	}

	cfg := &Config{
		Port:        envOrDefault("TRACKER_PORT", "8080"),
		DBPath:      envOrDefault("TRACKER_DB_PATH", "./tracker.db"),
		BaseURL:     baseURL,
		Environment: envOrDefault("TRACKER_ENV", "development"),
		Version:     envOrDefault("TRACKER_VERSION", "1.0.0"),

		JWTSecret:    os.Getenv("TRACKER_JWT_SECRET"),
		JWTPublicKey: os.Getenv("TRACKER_JWT_PUBLIC_KEY"),
		JWTIssuer:    os.Getenv("TRACKER_JWT_ISSUER"),
		JWTAudience:  os.Getenv("TRACKER_JWT_AUDIENCE"),

		UtmifyURL:     envOrDefault("TRACKER_UTMIFY_URL", DefaultUtmifyURL),
		UtmifyTimeout: parseDuration("TRACKER_UTMIFY_TIMEOUT", 10*time.Second),

		DeliveryWorkers:   parseInt("TRACKER_DELIVERY_WORKERS", 4),
		DeliveryQueueSize: parseInt("TRACKER_DELIVERY_QUEUE_SIZE", 10000),
		SweepInterval:     parseDuration("TRACKER_SWEEP_INTERVAL", time.Minute),
		MaxAttempts:       parseInt("TRACKER_MAX_ATTEMPTS", 5),
		RetryBackoff:      parseDuration("TRACKER_RETRY_BACKOFF", 30*time.Second),

		CacheSize: parseInt("TRACKER_CACHE_SIZE", 10000),
		CacheTTL:  parseDuration("TRACKER_CACHE_TTL", time.Minute),
		GeoIPPath: os.Getenv("TRACKER_GEOIP_PATH"),
		IPCheck:   parseBool("TRACKER_IPCHECK", false),

		RedisURL:  os.Getenv("TRACKER_REDIS_URL"),
		DedupeTTL: parseDuration("TRACKER_DEDUPE_TTL", 24*time.Hour),

		LogLevel:  envOrDefault("TRACKER_LOG_LEVEL", "info"),
		LogFormat: envOrDefault("TRACKER_LOG_FORMAT", "text"),
	}

	if cfg.JWTSecret == "" && cfg.JWTPublicKey == "" {
		return nil, fmt.Errorf("one of TRACKER_JWT_SECRET or TRACKER_JWT_PUBLIC_KEY is required")
	}
	if cfg.UtmifyTimeout <= 0 {
		return nil, fmt.Errorf("TRACKER_UTMIFY_TIMEOUT must be positive")
	}
	if cfg.DeliveryWorkers <= 0 {
		return nil, fmt.Errorf("TRACKER_DELIVERY_WORKERS must be positive")
	}
	if cfg.DeliveryQueueSize <= 0 {
		return nil, fmt.Errorf("TRACKER_DELIVERY_QUEUE_SIZE must be positive")
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("TRACKER_SWEEP_INTERVAL must be positive")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("TRACKER_MAX_ATTEMPTS must be positive")
	}
	if cfg.RetryBackoff <= 0 {
		return nil, fmt.Errorf("TRACKER_RETRY_BACKOFF must be positive")
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("TRACKER_CACHE_SIZE must be positive")
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("TRACKER_CACHE_TTL must be positive")
	}
	if cfg.DedupeTTL <= 0 {
		return nil, fmt.Errorf("TRACKER_DEDUPE_TTL must be positive")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("TRACKER_LOG_FORMAT must be text or json")
	}

	return cfg, nil
}

// TrackingURL is the canonical public URL for a link token.
func (c *Config) TrackingURL(token string) string {
	return c.BaseURL + "/track?token=" + url.QueryEscape(token)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int) int {
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

func parseBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
