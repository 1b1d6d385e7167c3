package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TRACKER_PORT", "TRACKER_DB_PATH", "TRACKER_BASE_URL", "TRACKER_ENV", "TRACKER_VERSION",
		"TRACKER_JWT_SECRET", "TRACKER_JWT_PUBLIC_KEY", "TRACKER_JWT_ISSUER", "TRACKER_JWT_AUDIENCE",
		"TRACKER_UTMIFY_URL", "TRACKER_UTMIFY_TIMEOUT",
		"TRACKER_DELIVERY_WORKERS", "TRACKER_DELIVERY_QUEUE_SIZE", "TRACKER_SWEEP_INTERVAL",
		"TRACKER_MAX_ATTEMPTS", "TRACKER_RETRY_BACKOFF",
		"TRACKER_CACHE_SIZE", "TRACKER_CACHE_TTL", "TRACKER_GEOIP_PATH", "TRACKER_IPCHECK",
		"TRACKER_REDIS_URL", "TRACKER_DEDUPE_TTL", "TRACKER_LOG_LEVEL", "TRACKER_LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func setMinimal(t *testing.T) {
	t.Helper()
	clearEnv(t)
	t.Setenv("TRACKER_BASE_URL", "https://track.example.com")
	t.Setenv("TRACKER_JWT_SECRET", "secret")
}

func TestLoad_MinimalValid(t *testing.T) {
	setMinimal(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DBPath != "./tracker.db" {
		t.Errorf("dbpath = %q, want %q", cfg.DBPath, "./tracker.db")
	}
	if cfg.UtmifyURL != DefaultUtmifyURL {
		t.Errorf("utmify url = %q, want %q", cfg.UtmifyURL, DefaultUtmifyURL)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("sweep interval = %v, want %v", cfg.SweepInterval, time.Minute)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("max attempts = %d, want %d", cfg.MaxAttempts, 5)
	}
	if cfg.CacheSize != 10000 {
		t.Errorf("cache size = %d, want %d", cfg.CacheSize, 10000)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("cache ttl = %v, want %v", cfg.CacheTTL, time.Minute)
	}
	if cfg.IPCheck {
		t.Error("ipcheck should default to false")
	}
	if cfg.Environment != "development" {
		t.Errorf("env = %q, want development", cfg.Environment)
	}
}

func TestLoad_AllFieldsOverridden(t *testing.T) {
	setMinimal(t)
	t.Setenv("TRACKER_PORT", "9090")
	t.Setenv("TRACKER_DB_PATH", "/tmp/test.db")
	t.Setenv("TRACKER_ENV", "production")
	t.Setenv("TRACKER_UTMIFY_URL", "http://utmify.local/orders")
	t.Setenv("TRACKER_UTMIFY_TIMEOUT", "3s")
	t.Setenv("TRACKER_DELIVERY_WORKERS", "2")
	t.Setenv("TRACKER_SWEEP_INTERVAL", "10s")
	t.Setenv("TRACKER_MAX_ATTEMPTS", "9")
	t.Setenv("TRACKER_CACHE_SIZE", "200")
	t.Setenv("TRACKER_CACHE_TTL", "15s")
	t.Setenv("TRACKER_GEOIP_PATH", "/data/geo.mmdb")
	t.Setenv("TRACKER_IPCHECK", "true")
	t.Setenv("TRACKER_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("TRACKER_LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %q, want %q", cfg.Port, "9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("dbpath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if !cfg.IsProduction() {
		t.Error("expected production environment")
	}
	if cfg.UtmifyURL != "http://utmify.local/orders" {
		t.Errorf("utmify url = %q", cfg.UtmifyURL)
	}
	if cfg.UtmifyTimeout != 3*time.Second {
		t.Errorf("utmify timeout = %v, want %v", cfg.UtmifyTimeout, 3*time.Second)
	}
	if cfg.DeliveryWorkers != 2 {
		t.Errorf("workers = %d, want 2", cfg.DeliveryWorkers)
	}
	if cfg.SweepInterval != 10*time.Second {
		t.Errorf("sweep = %v, want %v", cfg.SweepInterval, 10*time.Second)
	}
	if cfg.MaxAttempts != 9 {
		t.Errorf("max attempts = %d, want 9", cfg.MaxAttempts)
	}
	if cfg.CacheSize != 200 {
		t.Errorf("cache = %d, want %d", cfg.CacheSize, 200)
	}
	if cfg.CacheTTL != 15*time.Second {
		t.Errorf("cache ttl = %v, want %v", cfg.CacheTTL, 15*time.Second)
	}
	if cfg.GeoIPPath != "/data/geo.mmdb" {
		t.Errorf("geoip = %q, want %q", cfg.GeoIPPath, "/data/geo.mmdb")
	}
	if !cfg.IPCheck {
		t.Error("ipcheck = false, want true")
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("redis = %q", cfg.RedisURL)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("log format = %q, want json", cfg.LogFormat)
	}
}

func TestLoad_MissingBaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRACKER_JWT_SECRET", "secret")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing base url")
	}
	if err.Error() != "TRACKER_BASE_URL is required" {
		t.Errorf("error = %q, want %q", err.Error(), "TRACKER_BASE_URL is required")
	}
}

func TestLoad_RelativeBaseURL(t *testing.T) {
	setMinimal(t)
	t.Setenv("TRACKER_BASE_URL", "track.example.com")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for relative base url")
	}
}

func TestLoad_MissingJWTKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRACKER_BASE_URL", "https://track.example.com")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing jwt key")
	}
}

func TestLoad_PublicKeyAloneIsEnough(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRACKER_BASE_URL", "https://track.example.com")
	t.Setenv("TRACKER_JWT_PUBLIC_KEY", "/etc/tracker/idp.pem")

	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_ZeroWorkers(t *testing.T) {
	setMinimal(t)
	t.Setenv("TRACKER_DELIVERY_WORKERS", "0")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for zero workers")
	}
	if err.Error() != "TRACKER_DELIVERY_WORKERS must be positive" {
		t.Errorf("error = %q, want %q", err.Error(), "TRACKER_DELIVERY_WORKERS must be positive")
	}
}

func TestLoad_NegativeSweepInterval(t *testing.T) {
	setMinimal(t)
	t.Setenv("TRACKER_SWEEP_INTERVAL", "-1s")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for negative sweep interval")
	}
	if err.Error() != "TRACKER_SWEEP_INTERVAL must be positive" {
		t.Errorf("error = %q, want %q", err.Error(), "TRACKER_SWEEP_INTERVAL must be positive")
	}
}

func TestLoad_ZeroCacheSize(t *testing.T) {
	setMinimal(t)
	t.Setenv("TRACKER_CACHE_SIZE", "0")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for zero cache size")
	}
	if err.Error() != "TRACKER_CACHE_SIZE must be positive" {
		t.Errorf("error = %q, want %q", err.Error(), "TRACKER_CACHE_SIZE must be positive")
	}
}

func TestLoad_ZeroCacheTTL(t *testing.T) {
	setMinimal(t)
	t.Setenv("TRACKER_CACHE_TTL", "0s")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for zero cache ttl")
	}
	if err.Error() != "TRACKER_CACHE_TTL must be positive" {
		t.Errorf("error = %q, want %q", err.Error(), "TRACKER_CACHE_TTL must be positive")
	}
}

func TestLoad_BadLogFormat(t *testing.T) {
	setMinimal(t)
	t.Setenv("TRACKER_LOG_FORMAT", "xml")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	setMinimal(t)
	t.Setenv("TRACKER_RETRY_BACKOFF", "notaduration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RetryBackoff != 30*time.Second {
		t.Errorf("backoff = %v, want %v (default)", cfg.RetryBackoff, 30*time.Second)
	}
}

func TestLoad_TrimsTrailingSlashOnBaseURL(t *testing.T) {
	setMinimal(t)
	t.Setenv("TRACKER_BASE_URL", "https://track.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.TrackingURL("abc123"); got != "https://track.example.com/track?token=abc123" {
		t.Errorf("tracking url = %q", got)
	}
}
