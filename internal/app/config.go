// Package app wires the adapters and domain services behind the CLI:
// configuration, logging, and the ingest pipeline that turns a registry
// source into published dataset artifacts.
package app

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root runtime configuration.
// Priority: ENV > YAML > defaults (via env-default tags).
type Config struct {
	Registry RegistryConfig `yaml:"registry"`
	Exports  ExportsConfig  `yaml:"exports"`
	Data     DataConfig     `yaml:"data"`
	Store    StoreConfig    `yaml:"store"`
	Match    MatchConfig    `yaml:"match"`
	Log      LogConfig      `yaml:"log"`
}

// RegistryConfig tunes fetching of the live register page.
// An empty URL selects the client's built-in register URL.
type RegistryConfig struct {
	URL         string        `yaml:"url"          env:"KMATCH_REGISTRY_URL"`
	Timeout     time.Duration `yaml:"timeout"      env:"KMATCH_REGISTRY_TIMEOUT"      env-default:"30s"`
	Retries     int           `yaml:"retries"      env:"KMATCH_REGISTRY_RETRIES"      env-default:"3"`
	RetryDelay  time.Duration `yaml:"retry_delay"  env:"KMATCH_REGISTRY_RETRY_DELAY"  env-default:"5s"`
	MinInterval time.Duration `yaml:"min_interval" env:"KMATCH_REGISTRY_MIN_INTERVAL" env-default:"10s"`
}

// ExportsConfig locates downloaded register exports.
type ExportsConfig struct {
	Dir      string        `yaml:"dir"      env:"KMATCH_EXPORTS_DIR"      env-default:"./exports"`
	Debounce time.Duration `yaml:"debounce" env:"KMATCH_EXPORTS_DEBOUNCE" env-default:"500ms"`
}

// DataConfig controls where and how dataset artifacts are published.
// ShardCount zero derives the shard split from ShardCeiling.
type DataConfig struct {
	Dir          string `yaml:"dir"           env:"KMATCH_DATA_DIR"           env-default:"./data"`
	ShardCeiling int    `yaml:"shard_ceiling" env:"KMATCH_DATA_SHARD_CEILING" env-default:"3145728"`
	ShardCount   int    `yaml:"shard_count"   env:"KMATCH_DATA_SHARD_COUNT"   env-default:"0"`
}

// StoreConfig locates the pipeline state database.
type StoreConfig struct {
	Path string `yaml:"path" env:"KMATCH_STORE_PATH" env-default:"./kmatch.db"`
}

// MatchConfig tunes the matcher.
type MatchConfig struct {
	Threshold float64 `yaml:"threshold" env:"KMATCH_MATCH_THRESHOLD" env-default:"0.85"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"KMATCH_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"KMATCH_LOG_FORMAT" env-default:"text"`
}

// LoadConfig reads configuration from a YAML file and environment
// variables. An empty path falls back to KMATCH_CONFIG, then
// "./config.yml". When no file exists and none was asked for
// explicitly, configuration comes from ENV + defaults only.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	explicit := path != ""
	if !explicit {
		path = os.Getenv("KMATCH_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = "./config.yml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks the ranges cleanenv cannot express.
func (c *Config) Validate() error {
	if c.Match.Threshold <= 0 || c.Match.Threshold >= 1 {
		return fmt.Errorf("match.threshold must be between 0 and 1 exclusive (got %v)", c.Match.Threshold)
	}
	if c.Data.ShardCeiling <= 0 && c.Data.ShardCount <= 0 {
		return fmt.Errorf("data.shard_ceiling or data.shard_count must be positive")
	}
	if c.Data.ShardCount < 0 {
		return fmt.Errorf("data.shard_count must be >= 0 (got %d)", c.Data.ShardCount)
	}
	if c.Registry.Retries < 0 {
		return fmt.Errorf("registry.retries must be >= 0 (got %d)", c.Registry.Retries)
	}
	if c.Exports.Debounce < 0 {
		return fmt.Errorf("exports.debounce must be >= 0 (got %v)", c.Exports.Debounce)
	}
	return nil
}
