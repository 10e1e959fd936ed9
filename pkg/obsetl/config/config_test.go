package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/obsetl/pkg/obsetl/internalerr"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.Model)
	assert.Equal(t, 0.3, cfg.LLM.Temperature)
	assert.Equal(t, 300, cfg.LLM.MaxTokens)
	assert.Equal(t, 2025, cfg.Dates.ReferenceYear)
	assert.Equal(t, "Child_ID", cfg.Input.Columns.Identifier)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obsetl.yaml")
	data := `
input:
  columns:
    identifier: id
dates:
  reference_year: 2024
llm:
  model: local-model
  cache_size: 64
pipeline:
  workers: 4
logging:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "id", cfg.Input.Columns.Identifier)
	assert.Equal(t, "Session_Date", cfg.Input.Columns.SessionDate, "unset keys keep defaults")
	assert.Equal(t, 2024, cfg.Dates.ReferenceYear)
	assert.Equal(t, "local-model", cfg.LLM.Model)
	assert.Equal(t, 300, cfg.LLM.MaxTokens)
	assert.Equal(t, 64, cfg.LLM.CacheSize)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unterminated"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, ErrInvalidLogLevel},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
		{"workers", func(c *Config) { c.Pipeline.Workers = 0 }, ErrInvalidWorkers},
		{"progress", func(c *Config) { c.Pipeline.ProgressEvery = 0 }, ErrInvalidProgressEvery},
		{"base url", func(c *Config) { c.LLM.BaseURL = " " }, ErrMissingBaseURL},
		{"model", func(c *Config) { c.LLM.Model = "" }, ErrMissingModel},
		{"timeout", func(c *Config) { c.LLM.TimeoutSec = 0 }, ErrInvalidTimeout},
		{"temperature low", func(c *Config) { c.LLM.Temperature = -0.1 }, ErrInvalidTemperature},
		{"temperature high", func(c *Config) { c.LLM.Temperature = 2.5 }, ErrInvalidTemperature},
		{"max tokens", func(c *Config) { c.LLM.MaxTokens = 0 }, ErrInvalidMaxTokens},
		{"cache size", func(c *Config) { c.LLM.CacheSize = -1 }, ErrInvalidCacheSize},
		{"reference year", func(c *Config) { c.Dates.ReferenceYear = 25 }, ErrInvalidReferenceYear},
		{"empty column", func(c *Config) { c.Input.Columns.Observation = "" }, ErrInvalidColumns},
		{"duplicate column", func(c *Config) { c.Input.Columns.SessionDate = c.Input.Columns.Identifier }, ErrInvalidColumns},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Run("obsetl key wins", func(t *testing.T) {
		t.Setenv(EnvAPIKey, "primary")
		t.Setenv(EnvOpenAIAPIKey, "secondary")
		cfg := Default()
		cfg.LLM.APIKey = "from-yaml"
		cfg.ApplyEnv()
		assert.Equal(t, "primary", cfg.LLM.APIKey)
	})

	t.Run("openai key fills empty", func(t *testing.T) {
		t.Setenv(EnvAPIKey, "")
		t.Setenv(EnvOpenAIAPIKey, "secondary")
		cfg := Default()
		cfg.ApplyEnv()
		assert.Equal(t, "secondary", cfg.LLM.APIKey)

		cfg.LLM.APIKey = "from-yaml"
		cfg.ApplyEnv()
		assert.Equal(t, "from-yaml", cfg.LLM.APIKey)
	})

	t.Run("endpoint and logging", func(t *testing.T) {
		t.Setenv(EnvBaseURL, "http://localhost:8080/v1/chat/completions")
		t.Setenv(EnvModel, "llama")
		t.Setenv(EnvLogLevel, "debug")
		cfg := Default()
		cfg.ApplyEnv()
		assert.Equal(t, "http://localhost:8080/v1/chat/completions", cfg.LLM.BaseURL)
		assert.Equal(t, "llama", cfg.LLM.Model)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}

func TestRequireCredentials(t *testing.T) {
	cfg := Default()
	err := cfg.RequireCredentials()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.ErrorIs(t, err, internalerr.ErrMissingCredentials)

	cfg.LLM.APIKey = "k"
	assert.NoError(t, cfg.RequireCredentials())
}
