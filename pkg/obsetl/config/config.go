// Package config loads and validates obsetl settings.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/obsetl/internal/llm"
	"github.com/cognicore/obsetl/internal/logging"
	"github.com/cognicore/obsetl/pkg/obsetl/internalerr"
	"github.com/cognicore/obsetl/pkg/obsetl/normalize"
	"github.com/cognicore/obsetl/pkg/obsetl/pipeline"
	"github.com/cognicore/obsetl/pkg/obsetl/tabular"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIKey       = "OBSETL_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvBaseURL      = "OBSETL_LLM_BASE_URL"
	EnvModel        = "OBSETL_MODEL"
	EnvLogLevel     = "OBSETL_LOG_LEVEL"
)

// Configuration validation errors.
var (
	ErrInvalidLogLevel      = invalid("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat     = invalid("logging.format must be 'console' or 'json'")
	ErrInvalidWorkers       = invalid("pipeline.workers must be at least 1")
	ErrInvalidProgressEvery = invalid("pipeline.progress_every must be at least 1")
	ErrInvalidTimeout       = invalid("llm.timeout_sec must be at least 1")
	ErrInvalidTemperature   = invalid("llm.temperature must be within [0, 2]")
	ErrInvalidMaxTokens     = invalid("llm.max_tokens must be at least 1")
	ErrInvalidCacheSize     = invalid("llm.cache_size must be non-negative")
	ErrMissingModel         = invalid("llm.model is required")
	ErrMissingBaseURL       = invalid("llm.base_url is required")
	ErrInvalidReferenceYear = invalid("dates.reference_year must be within [1000, 9999]")
	ErrInvalidColumns       = invalid("input.columns must be non-empty and distinct")

	ErrMissingAPIKey = fmt.Errorf("llm.api_key is not set (use %s or %s): %w", EnvAPIKey, EnvOpenAIAPIKey, internalerr.ErrMissingCredentials)
)

func invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, internalerr.ErrInvalidConfig)
}

// Config represents the complete obsetl configuration.
type Config struct {
	Input    InputConfig    `yaml:"input"`
	Dates    DatesConfig    `yaml:"dates"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
	Store    StoreConfig    `yaml:"store"`
}

// InputConfig names the input columns.
type InputConfig struct {
	Columns tabular.Columns `yaml:"columns"`
}

// DatesConfig tunes the date normalizer.
type DatesConfig struct {
	ReferenceYear   int      `yaml:"reference_year"`
	SentinelPhrases []string `yaml:"sentinel_phrases"`
}

// LLMConfig configures the analysis provider.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSec  int     `yaml:"timeout_sec"`
	// Strict rejects replies that are not a bare JSON object.
	Strict bool `yaml:"strict"`
	// CacheSize > 0 reuses replies for repeated observations.
	CacheSize int `yaml:"cache_size"`
}

// PipelineConfig controls row scheduling.
type PipelineConfig struct {
	Workers       int `yaml:"workers"`
	ProgressEvery int `yaml:"progress_every"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig points at the optional run database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Input: InputConfig{Columns: tabular.DefaultColumns()},
		Dates: DatesConfig{
			ReferenceYear:   normalize.DefaultReferenceYear,
			SentinelPhrases: append([]string(nil), normalize.DefaultSentinelPhrases...),
		},
		LLM: LLMConfig{
			BaseURL:     llm.DefaultBaseURL,
			Model:       "gpt-3.5-turbo",
			Temperature: 0.3,
			MaxTokens:   300,
			TimeoutSec:  30,
		},
		Pipeline: PipelineConfig{
			Workers:       1,
			ProgressEvery: pipeline.DefaultProgressEvery,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables. OBSETL_API_KEY always wins;
// OPENAI_API_KEY only fills an empty key.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvAPIKey); ok && v != "" {
		c.LLM.APIKey = v
	} else if v, ok := os.LookupEnv(EnvOpenAIAPIKey); ok && v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return ErrInvalidLogLevel
	}
	switch strings.ToLower(c.Logging.Format) {
	case logging.FormatConsole, logging.FormatJSON:
	default:
		return ErrInvalidLogFormat
	}

	if c.Pipeline.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.Pipeline.ProgressEvery < 1 {
		return ErrInvalidProgressEvery
	}

	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return ErrMissingModel
	}
	if c.LLM.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return ErrInvalidTemperature
	}
	if c.LLM.MaxTokens < 1 {
		return ErrInvalidMaxTokens
	}
	if c.LLM.CacheSize < 0 {
		return ErrInvalidCacheSize
	}

	if c.Dates.ReferenceYear < 1000 || c.Dates.ReferenceYear > 9999 {
		return ErrInvalidReferenceYear
	}

	cols := c.Input.Columns
	names := []string{cols.Identifier, cols.SessionDate, cols.Observation}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			return ErrInvalidColumns
		}
		if _, dup := seen[n]; dup {
			return ErrInvalidColumns
		}
		seen[n] = struct{}{}
	}
	return nil
}

// RequireCredentials fails when no API key is configured.
func (c *Config) RequireCredentials() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}
