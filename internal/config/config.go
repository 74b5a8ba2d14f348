// Package config loads the captcha client configuration from YAML, an
// optional .env file and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"captchaclient/internal/captcha"
)

// Config holds all captcha client configuration.
type Config struct {
	// Backend the client talks to
	Server ServerConfig `yaml:"server"`

	// Terminal UI
	UI UIConfig `yaml:"ui"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Local stub backend
	Stub StubConfig `yaml:"stub"`
}

// ServerConfig configures the generate/verify backend.
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// StubConfig configures `captcha stub`.
type StubConfig struct {
	Addr string `yaml:"addr"`
	TTL  string `yaml:"ttl"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8083",
			Timeout: "10s",
		},
		UI: *DefaultUIConfig(),
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(".captcha", "logs", "captcha.log"),
		},
		Stub: StubConfig{
			Addr: ":8083",
			TTL:  "5m",
		},
	}
}

// DefaultConfigPath is where Load looks when no path is given.
func DefaultConfigPath() string {
	return filepath.Join(".captcha", "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Variables from a .env file next to the working directory are
// loaded before overrides are applied, without replacing ones already set.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// A missing .env is the normal case.
	_ = godotenv.Load()

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
	if url := os.Getenv("CAPTCHA_SERVER_URL"); url != "" {
		c.Server.BaseURL = url
	}
	if timeout := os.Getenv("CAPTCHA_TIMEOUT"); timeout != "" {
		c.Server.Timeout = timeout
	}
	if theme := os.Getenv("CAPTCHA_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if variant := os.Getenv("CAPTCHA_VARIANT"); variant != "" {
		c.UI.DefaultVariant = variant
	}
	switch strings.ToLower(os.Getenv("CAPTCHA_DEBUG")) {
	case "1", "true", "yes":
		c.Logging.DebugMode = true
	case "0", "false", "no":
		c.Logging.DebugMode = false
	}
	if file := os.Getenv("CAPTCHA_LOG_FILE"); file != "" {
		c.Logging.File = file
	}
}

// GetServerTimeout returns the request timeout as a duration.
func (c *Config) GetServerTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// GetStubTTL returns how long the stub keeps a challenge.
func (c *Config) GetStubTTL() time.Duration {
	d, err := time.ParseDuration(c.Stub.TTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server base_url not configured (set server.base_url or CAPTCHA_SERVER_URL)")
	}
	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		return fmt.Errorf("server base_url must be an http(s) URL: %s", c.Server.BaseURL)
	}
	if c.UI.DefaultVariant != "" {
		if _, err := captcha.ParseVariant(c.UI.DefaultVariant); err != nil {
			return fmt.Errorf("invalid ui.default_variant: %w", err)
		}
	}
	if c.UI.TrackLength < 0 || c.UI.SampleThreshold < 0 {
		return fmt.Errorf("ui.track_length and ui.sample_threshold must not be negative")
	}
	switch c.UI.Theme {
	case "", "light", "dark", "auto":
	default:
		return fmt.Errorf("invalid ui.theme: %s (valid: light, dark, auto)", c.UI.Theme)
	}
	return nil
}
