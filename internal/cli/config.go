package cli

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	BaseURL    string        // Required: ACE backend base URL
	StateDir   string        // Optional: directory for the session database (default: user config dir)
	TOTPSecret string        // Optional: provisioning secret for the totp subcommand
	Timeout    time.Duration // Optional: per-request timeout (default: 15s)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: text)
}

func LoadConfig() Config {
	return Config{
		BaseURL:    getEnvOrDefault("ACE_BASE_URL", "http://localhost:8080"),
		StateDir:   getEnvOrDefault("ACE_STATE_DIR", defaultStateDir()),
		TOTPSecret: os.Getenv("ACE_TOTP_SECRET"),
		Timeout:    getEnvDurationOrDefault("ACE_TIMEOUT", 15*time.Second),
		Env:        getEnvOrDefault("ENV", "dev"),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:  getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

// TokenPath is the session database location inside the state directory. An
// empty state dir keeps the session in memory only.
func (c Config) TokenPath() string {
	if c.StateDir == "" {
		return ""
	}
	return filepath.Join(c.StateDir, "session.db")
}

func defaultStateDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "ace")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
