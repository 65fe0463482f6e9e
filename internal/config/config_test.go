package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mnemo/internal/config"
)

var envKeys = []string{
	"MNEMO_CONFIG_FILE",
	"MNEMO_STORAGE_ENGINE", "MNEMO_DATA_PATH", "MNEMO_POSTGRES_DSN",
	"MNEMO_EMBEDDING_PROVIDER", "MNEMO_EMBEDDING_URL", "MNEMO_EMBEDDING_MODEL",
	"MNEMO_EMBEDDING_API_KEY", "MNEMO_EMBEDDING_TIMEOUT", "MNEMO_EMBEDDING_RPS",
	"MNEMO_EMBEDDING_BURST", "MNEMO_EXTRACTION_ENABLED", "MNEMO_RECENCY_WINDOW",
	"MNEMO_JACCARD_THRESHOLD", "MNEMO_EMBEDDING_THRESHOLD", "MNEMO_EMBED_TIMEOUT",
	"MNEMO_STORE_TIMEOUT",
}

// clearEnv blanks every MNEMO_ variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mnemo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, config.EngineSQLite, cfg.Storage.Engine)
	assert.Equal(t, "./data", cfg.Storage.DataPath)
	assert.Equal(t, config.ProviderOllama, cfg.Embedding.Provider)
	assert.Empty(t, cfg.Embedding.URL)
	assert.Empty(t, cfg.Embedding.Model)
	assert.True(t, cfg.Extraction.Enabled)
	assert.Equal(t, 50, cfg.Extraction.RecencyWindow)
	assert.Equal(t, 0.8, cfg.Extraction.JaccardThreshold)
	assert.Equal(t, 0.92, cfg.Extraction.EmbeddingThreshold)
	assert.Equal(t, filepath.Join("data", "mnemo.db"), cfg.SQLitePath())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MNEMO_STORAGE_ENGINE", "memory")
	t.Setenv("MNEMO_EMBEDDING_PROVIDER", "none")
	t.Setenv("MNEMO_RECENCY_WINDOW", "20")
	t.Setenv("MNEMO_JACCARD_THRESHOLD", "0.75")
	t.Setenv("MNEMO_EMBED_TIMEOUT", "750ms")
	t.Setenv("MNEMO_EXTRACTION_ENABLED", "No")
	t.Setenv("MNEMO_EMBEDDING_RPS", "2.5")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, config.EngineMemory, cfg.Storage.Engine)
	assert.Equal(t, config.ProviderNone, cfg.Embedding.Provider)
	assert.Equal(t, 20, cfg.Extraction.RecencyWindow)
	assert.Equal(t, 0.75, cfg.Extraction.JaccardThreshold)
	assert.Equal(t, 750*time.Millisecond, cfg.Extraction.EmbedTimeout)
	assert.False(t, cfg.Extraction.Enabled)
	assert.Equal(t, 2.5, cfg.Embedding.RequestsPerSecond)
}

func TestLoadConfig_UnparseableEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("MNEMO_RECENCY_WINDOW", "lots")
	t.Setenv("MNEMO_STORE_TIMEOUT", "soon")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Extraction.RecencyWindow)
	assert.Equal(t, 5*time.Second, cfg.Extraction.StoreTimeout)
}

func TestLoadConfig_FileOverlay(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
storage:
  engine: postgres
  postgres_dsn: postgres://mnemo:secret@db:5432/mnemo
embedding:
  provider: openai
  api_key: sk-test
  timeout: 2s
extraction:
  recency_window: 10
`)
	t.Setenv("MNEMO_CONFIG_FILE", path)

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, config.EnginePostgres, cfg.Storage.Engine)
	assert.Equal(t, config.ProviderOpenAI, cfg.Embedding.Provider)
	assert.Equal(t, 2*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 10, cfg.Extraction.RecencyWindow)
	// untouched keys keep defaults
	assert.Equal(t, 0.92, cfg.Extraction.EmbeddingThreshold)
	assert.Equal(t, "./data", cfg.Storage.DataPath)
}

func TestLoadConfig_EnvWinsOverFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "extraction:\n  recency_window: 10\n")
	t.Setenv("MNEMO_CONFIG_FILE", path)
	t.Setenv("MNEMO_RECENCY_WINDOW", "30")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Extraction.RecencyWindow)
}

func TestLoadConfig_FileErrors(t *testing.T) {
	clearEnv(t)

	t.Setenv("MNEMO_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := config.LoadConfig()
	assert.Error(t, err)

	t.Setenv("MNEMO_CONFIG_FILE", writeFile(t, "storage: [not, a, map"))
	_, err = config.LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown engine", func(c *config.Config) { c.Storage.Engine = "mysql" }},
		{"sqlite without path", func(c *config.Config) { c.Storage.DataPath = "" }},
		{"postgres without dsn", func(c *config.Config) { c.Storage.Engine = config.EnginePostgres }},
		{"unknown provider", func(c *config.Config) { c.Embedding.Provider = "anthropic" }},
		{"openai without key", func(c *config.Config) { c.Embedding.Provider = config.ProviderOpenAI }},
		{"negative rps", func(c *config.Config) { c.Embedding.RequestsPerSecond = -1 }},
		{"zero window", func(c *config.Config) { c.Extraction.RecencyWindow = 0 }},
		{"jaccard above one", func(c *config.Config) { c.Extraction.JaccardThreshold = 1.2 }},
		{"cosine below minus one", func(c *config.Config) { c.Extraction.EmbeddingThreshold = -1.5 }},
		{"negative timeout", func(c *config.Config) { c.Extraction.StoreTimeout = -time.Second }},
	}

	require.NoError(t, config.DefaultConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
		})
	}
}

func TestRedactedDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://mnemo:secret@db:5432/mnemo", "postgres://mnemo:REDACTED@db:5432/mnemo"},
		{"host=db user=mnemo password=secret dbname=mnemo", "host=db user=mnemo password=REDACTED dbname=mnemo"},
		{"postgres://db/mnemo", "postgres://db/mnemo"},
		{"", ""},
	}
	for _, tt := range tests {
		cfg := config.DefaultConfig()
		cfg.Storage.PostgresDSN = tt.dsn
		got := cfg.RedactedDSN()
		assert.Equal(t, tt.want, got)
		assert.NotContains(t, got, "secret")
	}
}
