// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/Sternrassler/canvas-api-client/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Defaults
const (
	DefaultPort              = "8080"
	DefaultUserAgent         = "canvas-api-client/0.1.0"
	DefaultRequestsPerSecond = 10.0
)

// Config holds the process configuration.
type Config struct {
	CanvasDomain   string // CANVAS_DOMAIN, e.g. canvas.example.edu
	CanvasToken    string // CANVAS_TOKEN, an access token
	CanvasProtocol string // CANVAS_PROTOCOL, "https" unless testing locally
	MasqueradeAs   string // CANVAS_MASQUERADE_AS, as_user_id to act as

	RedisURL string // REDIS_URL, "host:port" or "redis://..."; empty disables Redis

	UserAgent         string  // USER_AGENT
	RequestsPerSecond float64 // REQUESTS_PER_SECOND, local pacing

	LogLevel  logging.LogLevel // LOG_LEVEL
	LogPretty bool             // LOG_PRETTY

	Port string // PORT, for canvas serve
}

// Load reads the given .env files (".env" when none are given), then the
// environment. Missing .env files are not an error; variables already set in
// the environment win over the files.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debug().Str("file", f).Msg("No .env file found, using environment variables or defaults")
				continue
			}
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	rps, err := getEnvFloat("REQUESTS_PER_SECOND", DefaultRequestsPerSecond)
	if err != nil {
		return nil, err
	}
	if rps < 0 {
		return nil, fmt.Errorf("REQUESTS_PER_SECOND must be >= 0 (got %v)", rps)
	}

	pretty, err := getEnvBool("LOG_PRETTY", false)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(getEnv("LOG_LEVEL", string(logging.LevelInfo)))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	protocol := strings.ToLower(getEnv("CANVAS_PROTOCOL", "https"))
	if protocol != "https" && protocol != "http" {
		return nil, fmt.Errorf("CANVAS_PROTOCOL must be https or http (got %q)", protocol)
	}

	return &Config{
		CanvasDomain:      getEnv("CANVAS_DOMAIN", ""),
		CanvasToken:       getEnv("CANVAS_TOKEN", ""),
		CanvasProtocol:    protocol,
		MasqueradeAs:      getEnv("CANVAS_MASQUERADE_AS", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		UserAgent:         getEnv("USER_AGENT", DefaultUserAgent),
		RequestsPerSecond: rps,
		LogLevel:          level,
		LogPretty:         pretty,
		Port:              getEnv("PORT", DefaultPort),
	}, nil
}

// RedisOptions returns client options for RedisURL, nil when Redis is not configured.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.RedisURL == "" {
		return nil, nil
	}
	if strings.Contains(c.RedisURL, "://") {
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("REDIS_URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: c.RedisURL}, nil
}

// Masquerading reports whether requests should act as another user.
func (c *Config) Masquerading() bool {
	return c.MasqueradeAs != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
