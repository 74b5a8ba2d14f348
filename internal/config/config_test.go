package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"captchaclient/internal/captcha"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.BaseURL != "http://localhost:8083" {
		t.Errorf("expected default base URL, got %s", cfg.Server.BaseURL)
	}
	if cfg.UI.TrackLength != 280 {
		t.Errorf("expected TrackLength=280, got %d", cfg.UI.TrackLength)
	}
	if cfg.UI.GetAutoReset() != 2*time.Second {
		t.Errorf("expected 2s auto reset, got %v", cfg.UI.GetAutoReset())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("CAPTCHA_SERVER_URL", "")
	t.Setenv("CAPTCHA_TIMEOUT", "")

	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.BaseURL = "https://captcha.example.com"
	cfg.Server.Timeout = "3s"
	cfg.UI.DefaultVariant = "slide"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Server.BaseURL != "https://captcha.example.com" {
		t.Errorf("expected saved base URL, got %s", loaded.Server.BaseURL)
	}
	if loaded.GetServerTimeout() != 3*time.Second {
		t.Errorf("expected 3s timeout, got %v", loaded.GetServerTimeout())
	}
	if loaded.UI.GetDefaultVariant() != captcha.VariantSlide {
		t.Errorf("expected slide, got %s", loaded.UI.GetDefaultVariant())
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CAPTCHA_SERVER_URL", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.BaseURL != DefaultConfig().Server.BaseURL {
		t.Errorf("expected default base URL, got %s", cfg.Server.BaseURL)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestGetters_FallBackOnGarbage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Timeout = "soon"
	cfg.Stub.TTL = "-1s"
	cfg.UI.AutoReset = ""
	cfg.UI.DefaultVariant = "audio"

	if cfg.GetServerTimeout() != 10*time.Second {
		t.Errorf("expected 10s fallback, got %v", cfg.GetServerTimeout())
	}
	if cfg.GetStubTTL() != 5*time.Minute {
		t.Errorf("expected 5m fallback, got %v", cfg.GetStubTTL())
	}
	if cfg.UI.GetAutoReset() != 2*time.Second {
		t.Errorf("expected 2s fallback, got %v", cfg.UI.GetAutoReset())
	}
	if cfg.UI.GetDefaultVariant() != captcha.VariantCharacter {
		t.Errorf("expected character fallback, got %s", cfg.UI.GetDefaultVariant())
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty url", func(c *Config) { c.Server.BaseURL = "" }},
		{"not http", func(c *Config) { c.Server.BaseURL = "ftp://x" }},
		{"bad variant", func(c *Config) { c.UI.DefaultVariant = "audio" }},
		{"negative track", func(c *Config) { c.UI.TrackLength = -5 }},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoggingCategories(t *testing.T) {
	lc := LoggingConfig{}
	if lc.IsCategoryEnabled("session") {
		t.Error("disabled without debug mode")
	}
	lc.DebugMode = true
	if !lc.IsCategoryEnabled("session") {
		t.Error("enabled by default in debug mode")
	}
	lc.Categories = map[string]bool{"session": false}
	if lc.IsCategoryEnabled("session") {
		t.Error("explicitly disabled category")
	}
	if !lc.IsCategoryEnabled("gateway") {
		t.Error("unlisted category stays enabled")
	}
}
