package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	RedisAddr   string
	NATSURL     string

	SkylinesURL        string
	MaxTrackHours      int
	RefreshTimeoutSecs int
	RefreshInterval    time.Duration
	ArchiveDir         string

	MetadataURL string
	TrackURLs   []string
}

// Load loads the configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg := &Config{
		DatabaseURL: databaseURL,
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		NATSURL:     getEnv("NATS_URL", "nats://localhost:4222"),
		SkylinesURL: getEnv("SKYLINES_URL", "https://skylines.aero"),
		ArchiveDir:  getEnv("ARCHIVE_DIR", "./payloads"),
		MetadataURL: os.Getenv("METADATA_URL"),
	}

	var err error
	if cfg.MaxTrackHours, err = getEnvInt("MAX_TRACK_HOURS", 24); err != nil {
		return nil, err
	}
	if cfg.RefreshTimeoutSecs, err = getEnvInt("REFRESH_TIMEOUT_SECS", 60); err != nil {
		return nil, err
	}

	interval := getEnv("REFRESH_INTERVAL", "1m")
	cfg.RefreshInterval, err = time.ParseDuration(interval)
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL %q: %w", interval, err)
	}

	if urls := os.Getenv("TRACK_URLS"); urls != "" {
		cfg.TrackURLs = strings.Split(urls, ",")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
