// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Host string `envconfig:"SG_HOST" yaml:"host"`
	Port int    `envconfig:"SG_PORT" yaml:"port"`

	// Evaluation configuration
	Eval EvalConfig `yaml:"eval"`

	// Dataset configuration
	Dataset DatasetConfig `yaml:"dataset"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// History configuration
	History HistoryConfig `yaml:"history"`

	// Provider configuration
	Provider ProviderConfig `yaml:"provider"`

	// Logging configuration
	Log LogConfig `yaml:"log"`

	// Security configuration
	Security SecurityConfig `yaml:"security"`
}

// EvalConfig holds evaluation defaults.
type EvalConfig struct {
	// KValues are the default cutoffs for recall metrics.
	KValues []int `envconfig:"SG_EVAL_K_VALUES" yaml:"k_values"`

	// AlignBy is the default alignment mode for file evaluation.
	AlignBy string `envconfig:"SG_EVAL_ALIGN_BY" yaml:"align_by"`

	// AlignMode is the default length-mismatch policy.
	AlignMode string `envconfig:"SG_EVAL_ALIGN_MODE" yaml:"align_mode"`
}

// DatasetConfig holds annotation dataset settings.
type DatasetConfig struct {
	// CreateBackups controls backup-on-write for CSV saves.
	CreateBackups bool `envconfig:"SG_DATASET_CREATE_BACKUPS" yaml:"create_backups"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type          string `envconfig:"SG_BUS_TYPE" yaml:"type"`
	KafkaBrokers  string `envconfig:"SG_KAFKA_BROKERS" yaml:"kafka_brokers"`
	ConsumerGroup string `envconfig:"SG_KAFKA_CONSUMER_GROUP" yaml:"consumer_group"`
}

// HistoryConfig holds evaluation run history settings.
type HistoryConfig struct {
	Type     string `envconfig:"SG_HISTORY_TYPE" yaml:"type"`
	Size     int    `envconfig:"SG_HISTORY_SIZE" yaml:"size"`
	RedisURL string `envconfig:"SG_HISTORY_REDIS_URL" yaml:"redis_url"`
	TTLHours int    `envconfig:"SG_HISTORY_TTL_HOURS" yaml:"ttl_hours"`
}

// ProviderConfig holds scene-graph generation provider settings.
type ProviderConfig struct {
	Type           string  `envconfig:"SG_PROVIDER_TYPE" yaml:"type"`
	OllamaURL      string  `envconfig:"SG_OLLAMA_URL" yaml:"ollama_url"`
	DeepseekURL    string  `envconfig:"SG_DEEPSEEK_URL" yaml:"deepseek_url"`
	DeepseekAPIKey string  `envconfig:"SG_DEEPSEEK_API_KEY" yaml:"deepseek_api_key"`
	Model          string  `envconfig:"SG_PROVIDER_MODEL" yaml:"model"`
	Temperature    float64 `envconfig:"SG_PROVIDER_TEMPERATURE" yaml:"temperature"`
	TimeoutSecs    int     `envconfig:"SG_PROVIDER_TIMEOUT" yaml:"timeout_secs"`
	MaxRetries     int     `envconfig:"SG_PROVIDER_MAX_RETRIES" yaml:"max_retries"`
	RequestsPerSec float64 `envconfig:"SG_PROVIDER_RPS" yaml:"requests_per_sec"`
	MaxWorkers     int     `envconfig:"SG_PROVIDER_MAX_WORKERS" yaml:"max_workers"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"SG_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"SG_LOG_FORMAT" yaml:"format"`
}

// SecurityConfig holds security settings.
type SecurityConfig struct {
	RateLimit   int    `envconfig:"SG_RATE_LIMIT" yaml:"rate_limit"` // 0 = disabled
	CORSOrigins string `envconfig:"SG_CORS_ORIGINS" yaml:"cors_origins"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Host = "0.0.0.0"
	cfg.Port = 5000

	cfg.Eval = EvalConfig{
		KValues:   []int{1, 5, 10, 20, 50, 100},
		AlignBy:   "index",
		AlignMode: "error",
	}

	cfg.Dataset = DatasetConfig{
		CreateBackups: true,
	}

	cfg.Bus = BusConfig{
		Type:          "memory",
		ConsumerGroup: "sg-annotator",
	}

	cfg.History = HistoryConfig{
		Type:     "memory",
		Size:     100,
		RedisURL: "redis://localhost:6379",
		TTLHours: 24,
	}

	cfg.Provider = ProviderConfig{
		Type:           "ollama",
		OllamaURL:      "http://localhost:11434",
		DeepseekURL:    "https://api.deepseek.com",
		Model:          "qwen3:0.6b",
		Temperature:    0.2,
		TimeoutSecs:    60,
		MaxRetries:     3,
		RequestsPerSec: 1,
		MaxWorkers:     4,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}

	cfg.Security = SecurityConfig{
		RateLimit:   0,
		CORSOrigins: "*",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if len(c.Eval.KValues) == 0 {
		errs = append(errs, "eval k_values must not be empty")
	}
	for _, k := range c.Eval.KValues {
		if k < 1 {
			errs = append(errs, fmt.Sprintf("eval k_values must be positive, got %d", k))
			break
		}
	}

	validAlignBy := map[string]bool{"index": true, "id": true}
	if !validAlignBy[c.Eval.AlignBy] {
		errs = append(errs, fmt.Sprintf("invalid align_by: %s (must be index or id)", c.Eval.AlignBy))
	}

	validAlignMode := map[string]bool{"error": true, "min": true, "gt": true, "pred": true}
	if !validAlignMode[c.Eval.AlignMode] {
		errs = append(errs, fmt.Sprintf("invalid align_mode: %s (must be error, min, gt, or pred)", c.Eval.AlignMode))
	}

	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}
	if c.Bus.Type == "kafka" && c.Bus.KafkaBrokers == "" {
		errs = append(errs, "kafka_brokers required when bus type is kafka")
	}

	validHistoryTypes := map[string]bool{"memory": true, "redis": true}
	if !validHistoryTypes[c.History.Type] {
		errs = append(errs, fmt.Sprintf("invalid history type: %s (must be memory or redis)", c.History.Type))
	}
	if c.History.Size < 1 {
		errs = append(errs, "history size must be positive")
	}

	validProviders := map[string]bool{"ollama": true, "deepseek": true}
	if !validProviders[c.Provider.Type] {
		errs = append(errs, fmt.Sprintf("invalid provider type: %s (must be ollama or deepseek)", c.Provider.Type))
	}
	if c.Provider.MaxWorkers < 1 {
		errs = append(errs, "provider max_workers must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
