package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	DB      DatabaseConfig
	Auth    AuthConfig
	API     APIConfig
	Sweep   SweepConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Path string
}

type AuthConfig struct {
	SessionTTL   time.Duration
	CookieSecure bool
}

type APIConfig struct {
	CORSOrigin        string
	RateLimitRPS      int
	AllowedCategories []string
}

type SweepConfig struct {
	Interval   time.Duration
	Workers    int
	BufferSize int
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		return nil, fmt.Errorf("DB_PATH is required")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		DB: DatabaseConfig{
			Path: dbPath,
		},
		Auth: AuthConfig{
			SessionTTL:   getEnvDuration("SESSION_TTL", 7*24*time.Hour),
			CookieSecure: getEnvBool("COOKIE_SECURE", false),
		},
		API: APIConfig{
			CORSOrigin:        getEnv("CORS_ORIGIN", "http://localhost:3000"),
			RateLimitRPS:      getEnvInt("RATE_LIMIT_RPS", 25),
			AllowedCategories: getEnvList("ALLOWED_CATEGORIES", []string{"road", "criminal"}),
		},
		Sweep: SweepConfig{
			Interval:   getEnvDuration("SWEEP_INTERVAL", time.Minute),
			Workers:    getEnvInt("SWEEP_WORKERS", 2),
			BufferSize: getEnvInt("SWEEP_BUFFER_SIZE", 20),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Auth.SessionTTL < time.Minute {
		return fmt.Errorf("session TTL must be at least 1 minute")
	}
	if len(c.API.AllowedCategories) == 0 {
		return fmt.Errorf("at least one alert category must be allowed")
	}
	if c.Sweep.Interval < time.Second {
		return fmt.Errorf("sweep interval must be at least 1 second")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
