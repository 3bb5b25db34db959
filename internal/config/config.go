// Package config loads pressfit configuration from defaults, an optional
// YAML file, and PRESSFIT_-prefixed environment variables, in that order of
// increasing precedence. CLI flags override on top of the loaded config.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "PRESSFIT_"

// Config holds every tunable for a run.
type Config struct {
	Scope           string  `koanf:"scope"`
	TargetKB        int     `koanf:"target_kb"`
	ToleranceRatio  float64 `koanf:"tolerance_ratio"`
	OutputDir       string  `koanf:"output_dir"`
	Concurrency     int     `koanf:"concurrency"`
	SessionPath     string  `koanf:"session_path"`
	Headless        bool    `koanf:"headless"`
	DryRun          bool    `koanf:"dry_run"`
	DeleteOriginals bool    `koanf:"delete_originals"`

	EditorAPI string `koanf:"editor_api"`
	AssetAPI  string `koanf:"asset_api"`

	PublishPollInterval string `koanf:"publish_poll_interval"`
	PublishPollTimeout  string `koanf:"publish_poll_timeout"`

	// DeleteRetryPasses and DeleteRetryCredits bound the deletion retry
	// budget: extra full passes over the asset listing, and retries per asset.
	DeleteRetryPasses  int `koanf:"delete_retry_passes"`
	DeleteRetryCredits int `koanf:"delete_retry_credits"`

	MetricsAddr string `koanf:"metrics_addr"`
	LogLevel    string `koanf:"log_level"`
	LogFormat   string `koanf:"log_format"`
}

var defaults = []byte(`
scope: all
target_kb: 500
tolerance_ratio: 0.2
output_dir: ./pressfit-out
concurrency: 4
headless: true
dry_run: false
delete_originals: false
publish_poll_interval: 2s
publish_poll_timeout: 90s
delete_retry_passes: 1
delete_retry_credits: 1
log_level: info
log_format: console
`)

// Load builds a Config. A .env file in the working directory is applied to
// the process environment first, the way the pipeline commands have always
// been configured. configPath may be empty.
func Load(configPath string) (*Config, error) {
	// Missing .env is fine; any other read error is not.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would fail mid-run.
func (c *Config) Validate() error {
	if c.Scope != "all" && c.Scope != "single" {
		return fmt.Errorf("scope must be \"all\" or \"single\", got %q", c.Scope)
	}
	if c.TargetKB <= 0 {
		return fmt.Errorf("target_kb must be positive, got %d", c.TargetKB)
	}
	if c.ToleranceRatio < 0 {
		return fmt.Errorf("tolerance_ratio must not be negative, got %g", c.ToleranceRatio)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.DeleteRetryPasses < 0 || c.DeleteRetryCredits < 0 {
		return fmt.Errorf("deletion retry budget must not be negative")
	}
	return nil
}
