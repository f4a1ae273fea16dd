// Package config provides centralized configuration management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values for prtrackr.
type Config struct {
	PollIntervalSeconds int    `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxIterations       int    `mapstructure:"max_iterations" yaml:"max_iterations"`
	DebounceMillis      int    `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	CITimeoutMinutes    int    `mapstructure:"ci_timeout_minutes" yaml:"ci_timeout_minutes"`
	ReviewSettleSeconds int    `mapstructure:"review_settle_seconds" yaml:"review_settle_seconds"`
	AutoIterate         bool   `mapstructure:"auto_iterate" yaml:"auto_iterate"`
	DataDir             string `mapstructure:"data_dir" yaml:"data_dir"`
	NATSURL             string `mapstructure:"nats_url" yaml:"nats_url"`
	LogLevel            string `mapstructure:"log_level" yaml:"log_level"`
	LogFile             string `mapstructure:"log_file" yaml:"log_file"`
	Template            string `mapstructure:"template" yaml:"template"`
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Debounce returns the trigger debounce delay as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

// CITimeout returns how long the agent is instructed to wait for CI.
func (c *Config) CITimeout() time.Duration {
	return time.Duration(c.CITimeoutMinutes) * time.Minute
}

// ReviewSettle returns the minimum settle time after the last commit.
func (c *Config) ReviewSettle() time.Duration {
	return time.Duration(c.ReviewSettleSeconds) * time.Second
}

// Load loads configuration with full precedence:
// CLI flags > ENV vars > project config > XDG global config > defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("prtrackr")

	v.SetDefault("poll_interval", 30)
	v.SetDefault("max_iterations", 10)
	v.SetDefault("debounce_ms", 500)
	v.SetDefault("ci_timeout_minutes", 10)
	v.SetDefault("review_settle_seconds", 90)
	v.SetDefault("auto_iterate", false)
	v.SetDefault("data_dir", ".prtrackr")
	v.SetDefault("nats_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("template", "")

	// Setup ENV binding with PRTRACKR_ prefix
	v.SetEnvPrefix("PRTRACKR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit ENV bindings for better bool/int parsing
	bindings := map[string]string{
		"poll_interval":         "PRTRACKR_POLL_INTERVAL",
		"max_iterations":        "PRTRACKR_MAX_ITERATIONS",
		"debounce_ms":           "PRTRACKR_DEBOUNCE_MS",
		"ci_timeout_minutes":    "PRTRACKR_CI_TIMEOUT_MINUTES",
		"review_settle_seconds": "PRTRACKR_REVIEW_SETTLE_SECONDS",
		"auto_iterate":          "PRTRACKR_AUTO_ITERATE",
		"data_dir":              "PRTRACKR_DATA_DIR",
		"nats_url":              "PRTRACKR_NATS_URL",
		"log_level":             "PRTRACKR_LOG_LEVEL",
		"log_file":              "PRTRACKR_LOG_FILE",
		"template":              "PRTRACKR_TEMPLATE",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	// Load global config first (if exists)
	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	// Merge project config on top (if exists)
	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval must be > 0, got %d", c.PollIntervalSeconds)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be > 0, got %d", c.MaxIterations)
	}
	if c.DebounceMillis < 0 {
		return fmt.Errorf("debounce_ms must be >= 0, got %d", c.DebounceMillis)
	}
	return nil
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/prtrackr/prtrackr.yml or $XDG_CONFIG_HOME/prtrackr/prtrackr.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "prtrackr", "prtrackr.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "prtrackr", "prtrackr.yml")
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return "prtrackr.yml"
}

// Default returns a Config with the documented defaults.
func Default() *Config {
	return &Config{
		PollIntervalSeconds: 30,
		MaxIterations:       10,
		DebounceMillis:      500,
		CITimeoutMinutes:    10,
		ReviewSettleSeconds: 90,
		AutoIterate:         false,
		DataDir:             ".prtrackr",
		LogLevel:            "info",
	}
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return writeTo(path, cfg)
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	return writeTo(ProjectPath(), cfg)
}

func writeTo(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
