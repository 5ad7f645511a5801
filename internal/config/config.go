// Package config holds propprof configuration loaded from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all propprof configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Profiling configuration
	Profile ProfileConfig `yaml:"profile"`

	// Report output
	Report ReportConfig `yaml:"report"`

	// Trace capture
	Trace TraceConfig `yaml:"trace"`

	// Host engine limits
	Engine EngineConfig `yaml:"engine"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ProfileConfig controls whether and how deeply runs are profiled.
type ProfileConfig struct {
	Level string `yaml:"level"` // off, rules
}

// ReportConfig configures the rendered profile overview.
type ReportConfig struct {
	Path   string `yaml:"path"` // empty = stdout
	Pretty bool   `yaml:"pretty"`
}

// TraceConfig configures trace capture and replay.
type TraceConfig struct {
	Dir string `yaml:"dir"`
}

// EngineConfig bounds the Datalog host engine.
type EngineConfig struct {
	MaxFacts    int    `yaml:"max_facts"`
	MaxRounds   int    `yaml:"max_rounds"`
	EvalTimeout string `yaml:"eval_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "propprof",
		Version: "0.3.0",

		Profile: ProfileConfig{
			Level: "rules",
		},

		Report: ReportConfig{
			Path:   "",
			Pretty: false,
		},

		Trace: TraceConfig{
			Dir: "traces",
		},

		Engine: EngineConfig{
			MaxFacts:    100000,
			MaxRounds:   64,
			EvalTimeout: "30s",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultConfigPath returns the default path to .propprof/config.yaml.
func DefaultConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join(".propprof", "config.yaml")
	}
	return filepath.Join(cwd, ".propprof", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("PROPPROF_PROFILE_LEVEL"); level != "" {
		c.Profile.Level = level
	}
	if path := os.Getenv("PROPPROF_REPORT_PATH"); path != "" {
		c.Report.Path = path
	}
	if raw := os.Getenv("PROPPROF_MAX_FACTS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			c.Engine.MaxFacts = n
		}
	}
	if level := os.Getenv("PROPPROF_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetEvalTimeout returns the engine evaluation timeout as a duration.
func (c *Config) GetEvalTimeout() time.Duration {
	d, err := time.ParseDuration(c.Engine.EvalTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ValidProfileLevels lists all supported profile levels.
var ValidProfileLevels = []string{"off", "rules"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validLevel := false
	for _, l := range ValidProfileLevels {
		if c.Profile.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid profile level: %s (valid: %v)", c.Profile.Level, ValidProfileLevels)
	}

	if c.Engine.MaxFacts <= 0 {
		return fmt.Errorf("engine max_facts must be positive, got %d", c.Engine.MaxFacts)
	}
	if c.Engine.MaxRounds <= 0 {
		return fmt.Errorf("engine max_rounds must be positive, got %d", c.Engine.MaxRounds)
	}

	return nil
}

// ProfilingEnabled reports whether the configured level records anything.
func (c *Config) ProfilingEnabled() bool {
	return c.Profile.Level != "" && c.Profile.Level != "off"
}
