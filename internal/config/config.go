package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the matchflow service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Matching  MatchingConfig  `yaml:"matching"`
	Notify    NotifyConfig    `yaml:"notify"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	Provider   string `yaml:"provider"`
}

// WeightsConfig holds the scoring weights. The skill/semantic split and the
// required/preferred split are product decisions, surfaced as configuration
// rather than hidden constants.
type WeightsConfig struct {
	Required  float64 `yaml:"required"`
	Preferred float64 `yaml:"preferred"`
	Skill     float64 `yaml:"skill"`
	Semantic  float64 `yaml:"semantic"`
}

// MatchingConfig holds matching engine and matching-stage settings.
type MatchingConfig struct {
	Weights       WeightsConfig `yaml:"weights"`
	LocationBonus float64       `yaml:"location_bonus"`
	MinScore      float64       `yaml:"min_score"`
	// TopN is the fan-out cutoff: how many ranked candidates get notified.
	TopN int `yaml:"top_n"`
	// Limit bounds the persisted result set per run.
	Limit int `yaml:"limit"`
	// FailHard aborts the run on embedding provider failure instead of
	// degrading to skill-overlap-only scoring.
	FailHard    bool `yaml:"fail_hard"`
	MaxAttempts int  `yaml:"max_attempts"`
	BackoffMS   int  `yaml:"backoff_ms"`
}

// ChannelConfig holds per-channel provider and retry settings. Channels
// with stricter provider rate limits get a longer backoff base.
type ChannelConfig struct {
	Endpoint    string `yaml:"endpoint"`
	APIKey      string `yaml:"api_key"`
	From        string `yaml:"from"`
	MaxAttempts int    `yaml:"max_attempts"`
	BackoffMS   int    `yaml:"backoff_ms"`
}

// NotifyConfig holds notification fan-out settings.
type NotifyConfig struct {
	// FanoutLimit bounds the concurrent dispatch worker pool.
	FanoutLimit int                      `yaml:"fanout_limit"`
	Channels    map[string]ChannelConfig `yaml:"channels"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "matchflow:"
	}

	w := &c.Matching.Weights
	if w.Required <= 0 {
		w.Required = 0.7
	}
	if w.Preferred <= 0 {
		w.Preferred = 0.3
	}
	if w.Skill <= 0 {
		w.Skill = 0.5
	}
	if w.Semantic <= 0 {
		w.Semantic = 0.5
	}
	if c.Matching.LocationBonus <= 0 {
		c.Matching.LocationBonus = 0.05
	}
	if c.Matching.TopN <= 0 {
		c.Matching.TopN = 20
	}
	if c.Matching.Limit <= 0 {
		c.Matching.Limit = 50
	}
	if c.Matching.MaxAttempts <= 0 {
		c.Matching.MaxAttempts = 3
	}
	if c.Matching.BackoffMS <= 0 {
		c.Matching.BackoffMS = 60_000
	}

	if c.Notify.FanoutLimit <= 0 {
		c.Notify.FanoutLimit = 8
	}
	for name, ch := range c.Notify.Channels {
		if ch.MaxAttempts <= 0 {
			ch.MaxAttempts = 3
		}
		if ch.BackoffMS <= 0 {
			ch.BackoffMS = 30_000
		}
		c.Notify.Channels[name] = ch
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	w := c.Matching.Weights
	if w.Skill+w.Semantic <= 0 {
		return fmt.Errorf("matching.weights.skill + matching.weights.semantic must be positive")
	}
	if c.Matching.MinScore < 0 || c.Matching.MinScore >= 1 {
		return fmt.Errorf("matching.min_score must be in [0, 1), got %g", c.Matching.MinScore)
	}
	for name := range c.Notify.Channels {
		switch name {
		case "email", "sms", "whatsapp", "push":
		default:
			return fmt.Errorf("notify.channels: unknown channel %q", name)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
