// Package config loads service configuration from the environment. Every
// knob has a sane default so a bare `atelier-api` starts in dev mode with the
// in-memory store.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const envPrefix = "ATELIER_"

// Config carries everything the binaries need at startup.
type Config struct {
	Addr       string
	PGDSN      string
	AuthSecret string
	Issuer     string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	InviteTTL  time.Duration

	RateBurst    int
	RatePerSec   int
	MaxBodyBytes int64
}

// Load reads configuration from ATELIER_* environment variables.
func Load() (Config, error) {
	cfg := Config{
		Addr:         getenv("ADDR", ":8080"),
		PGDSN:        getenv("PG_DSN", ""),
		AuthSecret:   getenv("AUTH_SECRET", ""),
		Issuer:       getenv("ISSUER", "atelier"),
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   14 * 24 * time.Hour,
		InviteTTL:    7 * 24 * time.Hour,
		RateBurst:    20,
		RatePerSec:   10,
		MaxBodyBytes: 1 << 20,
	}

	var err error
	if cfg.AccessTTL, err = duration("ACCESS_TTL", cfg.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = duration("REFRESH_TTL", cfg.RefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.InviteTTL, err = duration("INVITE_TTL", cfg.InviteTTL); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = integer("RATE_BURST", cfg.RateBurst); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSec, err = integer("RATE_PER_SEC", cfg.RatePerSec); err != nil {
		return Config{}, err
	}
	if cfg.MaxBodyBytes, err = integer64("MAX_BODY_BYTES", cfg.MaxBodyBytes); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(envPrefix + key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s%s: %w", envPrefix, key, err)
	}
	return d, nil
}

func integer(key string, fallback int) (int, error) {
	raw := os.Getenv(envPrefix + key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s%s: %w", envPrefix, key, err)
	}
	return n, nil
}

func integer64(key string, fallback int64) (int64, error) {
	raw := os.Getenv(envPrefix + key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s%s: %w", envPrefix, key, err)
	}
	return n, nil
}
