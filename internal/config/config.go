// Package config provides configuration management for mnemo.
// Settings come from an optional YAML file named by MNEMO_CONFIG_FILE,
// overridden by environment variables with the MNEMO_ prefix, on top of
// sensible defaults for every option.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage engines.
const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

// Embedding providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds all configuration settings for mnemo.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Extraction ExtractionConfig `yaml:"extraction"`
}

// StorageConfig selects and locates the memory store.
type StorageConfig struct {
	Engine      string `yaml:"engine"`       // sqlite, postgres, memory (default: sqlite)
	DataPath    string `yaml:"data_path"`    // directory holding mnemo.db (default: ./data)
	PostgresDSN string `yaml:"postgres_dsn"` // required when Engine is postgres
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"` // ollama, openai, none (default: ollama)
	URL               string        `yaml:"url"`   // empty uses the provider's default endpoint
	Model             string        `yaml:"model"` // empty uses the provider's default model
	APIKey            string        `yaml:"api_key"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 disables rate limiting
	Burst             int           `yaml:"burst"`
}

// ExtractionConfig tunes the extraction pipeline and duplicate checker.
type ExtractionConfig struct {
	Enabled            bool          `yaml:"enabled"`
	RecencyWindow      int           `yaml:"recency_window"`
	JaccardThreshold   float64       `yaml:"jaccard_threshold"`
	EmbeddingThreshold float64       `yaml:"embedding_threshold"`
	EmbedTimeout       time.Duration `yaml:"embed_timeout"`
	StoreTimeout       time.Duration `yaml:"store_timeout"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine:   EngineSQLite,
			DataPath: "./data",
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderOllama,
			Timeout:  5 * time.Second,
			Burst:    1,
		},
		Extraction: ExtractionConfig{
			Enabled:            true,
			RecencyWindow:      50,
			JaccardThreshold:   0.8,
			EmbeddingThreshold: 0.92,
			EmbedTimeout:       10 * time.Second,
			StoreTimeout:       5 * time.Second,
		},
	}
}

// LoadConfig builds the configuration: defaults, then the YAML file named by
// MNEMO_CONFIG_FILE (if any), then MNEMO_* environment variables. The result
// is validated.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("MNEMO_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays the YAML document at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Storage.Engine = getEnv("MNEMO_STORAGE_ENGINE", c.Storage.Engine)
	c.Storage.DataPath = getEnv("MNEMO_DATA_PATH", c.Storage.DataPath)
	c.Storage.PostgresDSN = getEnv("MNEMO_POSTGRES_DSN", c.Storage.PostgresDSN)

	c.Embedding.Provider = getEnv("MNEMO_EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.URL = getEnv("MNEMO_EMBEDDING_URL", c.Embedding.URL)
	c.Embedding.Model = getEnv("MNEMO_EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.APIKey = getEnv("MNEMO_EMBEDDING_API_KEY", c.Embedding.APIKey)
	c.Embedding.Timeout = getEnvDuration("MNEMO_EMBEDDING_TIMEOUT", c.Embedding.Timeout)
	c.Embedding.RequestsPerSecond = getEnvFloat("MNEMO_EMBEDDING_RPS", c.Embedding.RequestsPerSecond)
	c.Embedding.Burst = getEnvInt("MNEMO_EMBEDDING_BURST", c.Embedding.Burst)

	c.Extraction.Enabled = getEnvBool("MNEMO_EXTRACTION_ENABLED", c.Extraction.Enabled)
	c.Extraction.RecencyWindow = getEnvInt("MNEMO_RECENCY_WINDOW", c.Extraction.RecencyWindow)
	c.Extraction.JaccardThreshold = getEnvFloat("MNEMO_JACCARD_THRESHOLD", c.Extraction.JaccardThreshold)
	c.Extraction.EmbeddingThreshold = getEnvFloat("MNEMO_EMBEDDING_THRESHOLD", c.Extraction.EmbeddingThreshold)
	c.Extraction.EmbedTimeout = getEnvDuration("MNEMO_EMBED_TIMEOUT", c.Extraction.EmbedTimeout)
	c.Extraction.StoreTimeout = getEnvDuration("MNEMO_STORE_TIMEOUT", c.Extraction.StoreTimeout)
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case EngineSQLite:
		if c.Storage.DataPath == "" {
			return fmt.Errorf("%w: data path is required for sqlite", ErrInvalidConfig)
		}
	case EnginePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres DSN is required for postgres engine", ErrInvalidConfig)
		}
	case EngineMemory:
	default:
		return fmt.Errorf("%w: unknown storage engine %q", ErrInvalidConfig, c.Storage.Engine)
	}

	switch c.Embedding.Provider {
	case ProviderOllama, ProviderNone:
	case ProviderOpenAI:
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("%w: openai embedding provider requires an API key", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.Embedding.Provider)
	}
	if c.Embedding.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: embedding requests per second must not be negative", ErrInvalidConfig)
	}

	x := c.Extraction
	if x.RecencyWindow <= 0 {
		return fmt.Errorf("%w: recency window must be positive, got %d", ErrInvalidConfig, x.RecencyWindow)
	}
	if x.JaccardThreshold < 0 || x.JaccardThreshold > 1 {
		return fmt.Errorf("%w: jaccard threshold must be in [0,1], got %v", ErrInvalidConfig, x.JaccardThreshold)
	}
	if x.EmbeddingThreshold < -1 || x.EmbeddingThreshold > 1 {
		return fmt.Errorf("%w: embedding threshold must be in [-1,1], got %v", ErrInvalidConfig, x.EmbeddingThreshold)
	}
	if x.EmbedTimeout < 0 || x.StoreTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	return nil
}

// SQLitePath returns the database file used by the sqlite engine.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.Storage.DataPath, "mnemo.db")
}

// RedactedDSN returns the postgres DSN with any password replaced, for logs.
func (c *Config) RedactedDSN() string {
	return sanitizeDSN(c.Storage.PostgresDSN)
}

var passwordParam = regexp.MustCompile(`(password\s*=\s*)\S+`)

// sanitizeDSN redacts passwords in URL-form and key=value-form DSNs.
func sanitizeDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err == nil && u.User != nil {
			if _, hasPassword := u.User.Password(); hasPassword {
				u.User = url.UserPassword(u.User.Username(), "REDACTED")
				return u.String()
			}
		}
	}
	return passwordParam.ReplaceAllString(dsn, "${1}REDACTED")
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings such as "750ms" or "5s".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
