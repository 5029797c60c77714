package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "sage.yaml"

// Config holds all application configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Graph    GraphConfig    `mapstructure:"graph"`
	Vector   VectorConfig   `mapstructure:"vector"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Settings Settings       `mapstructure:"settings"`

	path string
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string { return c.path }

type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	EmbedModel  string  `mapstructure:"embed_model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	// TokenModel selects the tokenizer used for budgeting.
	TokenModel string        `mapstructure:"token_model"`
	Timeout    time.Duration `mapstructure:"timeout"`

	Retry     RetryConfig     `mapstructure:"retry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Per-role overrides. Keys are roles ("embedding", "filter", "translator").
	// Each override inherits unset fields from the top-level LLM config.
	Roles map[string]LLMRoleOverride `mapstructure:"roles"`
}

// LLMRoleOverride allows a role to use a different provider or model.
type LLMRoleOverride struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// Roles with their own provider configuration.
const (
	RoleChat       = "chat"
	RoleEmbedding  = "embedding"
	RoleFilter     = "filter"
	RoleTranslator = "translator"
)

// ResolveForRole returns an LLMConfig with role-specific overrides applied.
// A provider override without an API key does not inherit the top-level key,
// since keys are provider specific.
func (c LLMConfig) ResolveForRole(role string) LLMConfig {
	override, ok := c.Roles[role]
	if !ok {
		return c
	}
	resolved := c
	if override.Provider != "" && override.Provider != c.Provider {
		resolved.Provider = override.Provider
		resolved.APIKey = ""
		resolved.BaseURL = ""
	}
	if override.Model != "" {
		resolved.Model = override.Model
	}
	if override.APIKey != "" {
		resolved.APIKey = override.APIKey
	}
	if override.BaseURL != "" {
		resolved.BaseURL = override.BaseURL
	}
	return resolved
}

// RetryConfig enables provider retries. Zero MaxRetries disables them.
type RetryConfig struct {
	MaxRetries     int `mapstructure:"max_retries"`
	InitialDelayMS int `mapstructure:"initial_delay_ms"`
	MaxDelayMS     int `mapstructure:"max_delay_ms"`
}

// RateLimitConfig throttles provider calls. Zero disables throttling.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type VectorConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	// HealthAddr is where the worker serves its health endpoints. Empty
	// disables them.
	HealthAddr string `mapstructure:"health_addr"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type StorageConfig struct {
	// DataDir holds the bbolt database and log files.
	DataDir string `mapstructure:"data_dir"`
}

// DBPath is the location of the shared bbolt database.
func (s StorageConfig) DBPath() string {
	return filepath.Join(s.DataDir, "sage.db")
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	chat := c.LLM.ResolveForRole(RoleChat)
	if needsKey(chat.Provider) && chat.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured but api_key is empty", chat.Provider))
	}
	for role := range c.LLM.Roles {
		resolved := c.LLM.ResolveForRole(role)
		if needsKey(resolved.Provider) && resolved.APIKey == "" {
			warnings = append(warnings, fmt.Sprintf("LLM role '%s' uses provider '%s' but api_key is empty", role, resolved.Provider))
		}
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("LLM temperature %.2f is outside recommended range [0.0, 2.0]", c.LLM.Temperature))
	}

	if c.LLM.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_tokens %d is negative", c.LLM.MaxTokens))
	}

	return warnings
}

func needsKey(provider string) bool {
	switch provider {
	case "", "none", "ollama", "vllm", "lmstudio":
		return false
	}
	return true
}

// Load reads configuration from path, a .env file in the working directory
// and SAGE_-prefixed environment variables. A missing file yields defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	if path == "" {
		path = DefaultFile
	}

	v := newViper(path)
	v.SetEnvPrefix("SAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "SAGE_LLM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.path = path
	cfg.Settings = cfg.Settings.normalized()
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = DefaultDataDir()
	}

	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultDataDir is ~/.sage, or .sage when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sage"
	}
	return filepath.Join(home, ".sage")
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.embed_model", "text-embedding-3-large")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 4000)
	v.SetDefault("llm.token_model", "gpt-4")
	v.SetDefault("llm.timeout", "2m")
	v.SetDefault("llm.retry.max_retries", 0)
	v.SetDefault("llm.retry.initial_delay_ms", 1000)
	v.SetDefault("llm.retry.max_delay_ms", 30000)
	v.SetDefault("llm.roles", map[string]any{
		RoleFilter:     map[string]any{"model": "gpt-4o-mini"},
		RoleTranslator: map[string]any{"provider": "ollama", "model": "gemma2"},
	})

	v.SetDefault("vector.port", 6334)
	v.SetDefault("vector.collection", "sage_files")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "sage-index")
	v.SetDefault("temporal.health_addr", ":8081")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("tracing.service_name", "sage")
	v.SetDefault("tracing.sample_rate", 1.0)

	d := DefaultSettings()
	v.SetDefault("settings.extensions", d.Extensions)
	v.SetDefault("settings.ignore_folders", d.IgnoreFolders)
	v.SetDefault("settings.ignore_files", d.IgnoreFiles)
	v.SetDefault("settings.essential_files", d.EssentialFiles)
	v.SetDefault("settings.similarity_threshold", d.SimilarityThreshold)
	v.SetDefault("settings.top_k", d.TopK)
	v.SetDefault("settings.max_tokens", d.MaxTokens)
	v.SetDefault("settings.history_max", d.HistoryMax)
	v.SetDefault("settings.filter_content", d.FilterContent)
	v.SetDefault("settings.use_question_history", d.UseQuestionHistory)
	v.SetDefault("settings.use_translator", d.UseTranslator)
	v.SetDefault("settings.reply_language", d.ReplyLanguage)
}
