package config

import (
	"time"

	"captchaclient/internal/captcha"
)

// UIConfig holds terminal UI configuration.
type UIConfig struct {
	// Theme is "light", "dark" or "auto" (detect from the terminal)
	Theme string `yaml:"theme"`

	// DefaultVariant is the challenge shown at startup
	DefaultVariant string `yaml:"default_variant"`

	// TrackLength is the slide track length in units
	TrackLength int `yaml:"track_length"`

	// SampleThreshold is the minimum movement before a trace point is kept
	SampleThreshold int `yaml:"sample_threshold"`

	// AutoReset is how long a success stays on screen
	AutoReset string `yaml:"auto_reset"`
}

// DefaultUIConfig returns sensible UI defaults.
func DefaultUIConfig() *UIConfig {
	return &UIConfig{
		Theme:           "auto",
		DefaultVariant:  string(captcha.VariantCharacter),
		TrackLength:     280,
		SampleThreshold: 2,
		AutoReset:       "2s",
	}
}

// GetAutoReset returns the success display delay.
func (u UIConfig) GetAutoReset() time.Duration {
	d, err := time.ParseDuration(u.AutoReset)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// GetDefaultVariant returns the startup variant, character when unset or
// invalid.
func (u UIConfig) GetDefaultVariant() captcha.Variant {
	v, err := captcha.ParseVariant(u.DefaultVariant)
	if err != nil {
		return captcha.VariantCharacter
	}
	return v
}
