package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the judge training ground.
type Config struct {
	Eval     EvalConfig     `json:"eval"`
	Database DatabaseConfig `json:"database"`
	Server   ServerConfig   `json:"server"`
	Store    StoreConfig    `json:"store"`
}

// EvalConfig holds the remote evaluation service configuration.
type EvalConfig struct {
	URL       string `json:"url"`
	Model     string `json:"model"`      // default model for generate/run/optimize
	TimeoutMS int    `json:"timeout_ms"` // per-request timeout; optimization runs are slow
}

// DatabaseConfig holds persistence configuration.
type DatabaseConfig struct {
	// Path is used for the local SQLite key/value substrate.
	Path string `json:"path"`
	// PostgresURL switches persistence to the Postgres repository.
	PostgresURL string `json:"postgres_url"`
}

// ServerConfig holds the HTTP surface configuration.
type ServerConfig struct {
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	CORSOrigins []string `json:"cors_origins"`
}

// StoreConfig holds training store tunables.
type StoreConfig struct {
	// DebounceMS is the delay before a mutated dataset is persisted.
	DebounceMS int `json:"debounce_ms"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".judge-training-ground")

	return &Config{
		Eval: EvalConfig{
			URL:       "http://localhost:8000",
			Model:     "gpt-4o",
			TimeoutMS: 120000,
		},
		Database: DatabaseConfig{
			Path:        filepath.Join(dataDir, "judge.db"),
			PostgresURL: "",
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Store: StoreConfig{
			DebounceMS: 500,
		},
	}
}

// DebounceInterval returns the debounce delay as a duration.
func (c *Config) DebounceInterval() time.Duration {
	return time.Duration(c.Store.DebounceMS) * time.Millisecond
}

// EvalTimeout returns the evaluation request timeout as a duration.
func (c *Config) EvalTimeout() time.Duration {
	return time.Duration(c.Eval.TimeoutMS) * time.Millisecond
}

// envString loads a string environment variable into the target pointer if set
func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// envInt loads an integer environment variable into the target pointer if set and valid
func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

// envStringSlice loads a comma-separated environment variable into a string slice
func envStringSlice(key string, target *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			*target = result
		}
	}
}

// getConfigPath returns the config file location, honoring
// JUDGE_CONFIG when set.
func getConfigPath() string {
	if p := os.Getenv("JUDGE_CONFIG"); p != "" {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(homeDir, ".judge-training-ground", "config.json")
}

// Load loads configuration from the config file and environment
// variables, env taking precedence.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	envString("JUDGE_EVAL_URL", &cfg.Eval.URL)
	envString("JUDGE_EVAL_MODEL", &cfg.Eval.Model)
	envInt("JUDGE_EVAL_TIMEOUT_MS", &cfg.Eval.TimeoutMS)

	envString("JUDGE_DB_PATH", &cfg.Database.Path)
	envString("JUDGE_POSTGRES_URL", &cfg.Database.PostgresURL)

	envString("JUDGE_SERVER_HOST", &cfg.Server.Host)
	envInt("JUDGE_SERVER_PORT", &cfg.Server.Port)
	envStringSlice("JUDGE_CORS_ORIGINS", &cfg.Server.CORSOrigins)

	envInt("JUDGE_DEBOUNCE_MS", &cfg.Store.DebounceMS)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Store.DebounceMS <= 0 {
		cfg.Store.DebounceMS = 500
	}

	return cfg, nil
}
