// Package config loads stratum's runtime configuration through viper.
package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// LedgerConfig selects the turn ledger database.
type LedgerConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "mysql"
	DSN    string `mapstructure:"dsn"`    // file path for sqlite; empty uses <cache_dir>/ledger.db
}

// MCPConfig holds configuration for the MCP server.
type MCPConfig struct {
	Port int `mapstructure:"port"`
}

// Config holds all runtime configuration for a stratum session.
// Values are populated from .stratum.yaml, STRATUM_* env vars, and CLI flags.
type Config struct {
	WorkDir           string       `mapstructure:"work_dir"`
	CacheDir          string       `mapstructure:"cache_dir"`
	StateFile         string       `mapstructure:"state_file"`
	CacheTargetTokens int          `mapstructure:"cache_target_tokens"`
	SystemPrompt      string       `mapstructure:"system_prompt"`
	TreeDepth         int          `mapstructure:"tree_depth"`
	URLContextTokens  int          `mapstructure:"url_context_tokens"`
	TelemetryPath     string       `mapstructure:"telemetry_path"`
	Ledger            LedgerConfig `mapstructure:"ledger"`
	MCP               MCPConfig    `mapstructure:"mcp"`
	Verbose           bool         `mapstructure:"verbose"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("work_dir", ".")
	viper.SetDefault("cache_dir", ".cache")
	viper.SetDefault("state_file", "cache_stability.json")
	viper.SetDefault("cache_target_tokens", 1024)
	viper.SetDefault("system_prompt", "")
	viper.SetDefault("tree_depth", 3)
	viper.SetDefault("url_context_tokens", 4000)
	viper.SetDefault("telemetry_path", "")
	viper.SetDefault("ledger.driver", "sqlite")
	viper.SetDefault("ledger.dsn", "")
	viper.SetDefault("mcp.port", 8392)
	viper.SetDefault("verbose", false)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with. A zero
// cache_target_tokens is valid and disables the token thresholds.
func (c Config) Validate() error {
	var errs []error
	if c.CacheTargetTokens < 0 {
		errs = append(errs, fmt.Errorf("cache_target_tokens must be >= 0, got %d", c.CacheTargetTokens))
	}
	if c.TreeDepth < 0 {
		errs = append(errs, fmt.Errorf("tree_depth must be >= 0, got %d", c.TreeDepth))
	}
	if c.StateFile == "" {
		errs = append(errs, errors.New("state_file must not be empty"))
	}
	switch c.Ledger.Driver {
	case "sqlite", "":
	case "mysql":
		if c.Ledger.DSN == "" {
			errs = append(errs, errors.New("ledger.dsn is required for the mysql driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("ledger.driver must be sqlite or mysql, got %q", c.Ledger.Driver))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// CacheRoot returns the cache directory, resolved against WorkDir.
func (c Config) CacheRoot() string {
	if filepath.IsAbs(c.CacheDir) {
		return c.CacheDir
	}
	return filepath.Join(c.WorkDir, c.CacheDir)
}

// StatePath returns the tracker state file location.
func (c Config) StatePath() string {
	return filepath.Join(c.CacheRoot(), c.StateFile)
}

// LedgerDSN returns the ledger data source, defaulting sqlite to a file in
// the cache directory.
func (c Config) LedgerDSN() string {
	if c.Ledger.DSN != "" {
		return c.Ledger.DSN
	}
	return filepath.Join(c.CacheRoot(), "ledger.db")
}

// TelemetryFile returns the JSONL telemetry location.
func (c Config) TelemetryFile() string {
	if c.TelemetryPath != "" {
		return c.TelemetryPath
	}
	return filepath.Join(c.CacheRoot(), "telemetry.jsonl")
}
