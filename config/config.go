// Package config loads ContractGuard configuration from an optional YAML
// file with environment variable overrides on top. Defaults are safe for a
// local, in-memory deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s"
// or "24h".
type Duration time.Duration

// D returns the underlying time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Session  SessionConfig  `yaml:"session"`
	Engine   EngineConfig   `yaml:"engine"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Model    ModelConfig    `yaml:"model"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

type StoreConfig struct {
	// Driver selects the task store: "memory" or "sqlite".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type SessionConfig struct {
	TTL Duration `yaml:"ttl"`
}

type EngineConfig struct {
	TopK             int      `yaml:"top_k"`
	SynthesisTimeout Duration `yaml:"synthesis_timeout"`
	TaskRetention    Duration `yaml:"task_retention"`
}

type DispatchConfig struct {
	SearchTimeout     Duration `yaml:"search_timeout"`
	GenerationTimeout Duration `yaml:"generation_timeout"`
	MaxRetries        int      `yaml:"max_retries"`
	MaxConcurrent     int      `yaml:"max_concurrent"`
	MaxQueue          int      `yaml:"max_queue"`
}

type ModelConfig struct {
	// Provider selects the generator: "anthropic", "openai" or "mock".
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
	APIKey   string `yaml:"api_key"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Server:  ServerConfig{Addr: ":8080"},
		Log:     LogConfig{Level: "info", Format: "json"},
		Store:   StoreConfig{Driver: "memory", DSN: "contractguard.db"},
		Session: SessionConfig{TTL: Duration(24 * time.Hour)},
		Engine: EngineConfig{
			TopK:             5,
			SynthesisTimeout: Duration(30 * time.Second),
			TaskRetention:    Duration(7 * 24 * time.Hour),
		},
		Dispatch: DispatchConfig{
			SearchTimeout:     Duration(10 * time.Second),
			GenerationTimeout: Duration(30 * time.Second),
			MaxRetries:        2,
			MaxConcurrent:     8,
			MaxQueue:          32,
		},
		Model:   ModelConfig{Provider: "mock"},
		Tracing: TracingConfig{Enabled: true},
	}
}

// Load reads the config file at path (skipped when empty), then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Server.Addr = getEnv("CONTRACTGUARD_ADDR", cfg.Server.Addr)
	cfg.Log.Level = getEnv("CONTRACTGUARD_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("CONTRACTGUARD_LOG_FORMAT", cfg.Log.Format)
	cfg.Store.Driver = getEnv("CONTRACTGUARD_STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DSN = getEnv("CONTRACTGUARD_STORE_DSN", cfg.Store.DSN)
	cfg.Session.TTL = getEnvDuration("CONTRACTGUARD_SESSION_TTL", cfg.Session.TTL)
	cfg.Engine.TopK = getEnvInt("CONTRACTGUARD_TOP_K", cfg.Engine.TopK)
	cfg.Engine.TaskRetention = getEnvDuration("CONTRACTGUARD_TASK_RETENTION", cfg.Engine.TaskRetention)
	cfg.Model.Provider = getEnv("CONTRACTGUARD_MODEL_PROVIDER", cfg.Model.Provider)
	cfg.Model.Name = getEnv("CONTRACTGUARD_MODEL_NAME", cfg.Model.Name)
	cfg.Model.APIKey = getEnv("CONTRACTGUARD_API_KEY", cfg.Model.APIKey)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Model.Provider {
	case "anthropic", "openai", "mock":
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal Duration) Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return Duration(d)
		}
	}
	return defaultVal
}
