package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for portald.
type Config struct {
	ListenAddress  string          `yaml:"listen"`
	ProtocolConfig string          `yaml:"protocol_config"`
	JournalPath    string          `yaml:"journal"`
	JournalDSN     string          `yaml:"journal_dsn"`
	Auth           AuthConfig      `yaml:"auth"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	Log            LogConfig       `yaml:"log"`
	ShutdownGrace  Duration        `yaml:"shutdown_grace"`
	ReadTimeout    Duration        `yaml:"read_timeout"`
	WriteTimeout   Duration        `yaml:"write_timeout"`
}

// AuthConfig controls bearer token verification.
type AuthConfig struct {
	Issuer    string   `yaml:"issuer"`
	Audience  string   `yaml:"audience"`
	SecretEnv string   `yaml:"secret_env"`
	Leeway    Duration `yaml:"leeway"`
}

// RateLimitConfig bounds requests per client.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from the supplied path.
func Load(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Secret resolves the signing secret from the configured environment
// variable.
func (c Config) Secret() ([]byte, error) {
	name := strings.TrimSpace(c.Auth.SecretEnv)
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return nil, fmt.Errorf("auth secret env %s is empty", name)
	}
	return []byte(value), nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7090"
	}
	if cfg.ProtocolConfig == "" {
		cfg.ProtocolConfig = "./portal.toml"
	}
	if cfg.JournalPath == "" {
		cfg.JournalPath = "./portal-data/journal.sqlite"
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "portald"
	}
	if cfg.Auth.SecretEnv == "" {
		cfg.Auth.SecretEnv = "PORTALD_JWT_SECRET"
	}
	if cfg.Auth.Leeway.Duration == 0 {
		cfg.Auth.Leeway.Duration = 30 * time.Second
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 20
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 40
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.ShutdownGrace.Duration == 0 {
		cfg.ShutdownGrace.Duration = 10 * time.Second
	}
	if cfg.ReadTimeout.Duration == 0 {
		cfg.ReadTimeout.Duration = 10 * time.Second
	}
	if cfg.WriteTimeout.Duration == 0 {
		cfg.WriteTimeout.Duration = 15 * time.Second
	}
}

func validate(cfg Config) error {
	if cfg.RateLimit.RequestsPerSecond < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must be non-negative")
	}
	if cfg.Auth.Leeway.Duration < 0 {
		return fmt.Errorf("auth leeway must be non-negative")
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation values must be non-negative")
	}
	return nil
}
