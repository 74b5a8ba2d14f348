package ux

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"captchaclient/internal/captcha"
)

// PreferencesVersion is the current schema version for preferences.json.
const PreferencesVersion = "1.0"

// UserPreferences is the persisted schema.
type UserPreferences struct {
	// Version is the schema version for migration detection
	Version string `json:"version"`

	// LastVariant is the challenge type shown when the client last quit
	LastVariant captcha.Variant `json:"last_variant,omitempty"`

	// Stats counts outcomes per challenge type
	Stats map[captcha.Variant]*VariantStats `json:"stats,omitempty"`

	// UpdatedAt is the time of the last change, RFC3339
	UpdatedAt string `json:"updated_at,omitempty"`
}

// VariantStats counts verification outcomes for one challenge type.
type VariantStats struct {
	Attempts int    `json:"attempts"`
	Passed   int    `json:"passed"`
	Failed   int    `json:"failed"`
	LastPass string `json:"last_pass,omitempty"`
}

// PreferencesManager handles loading/saving preferences.
type PreferencesManager struct {
	mu          sync.RWMutex
	path        string
	preferences *UserPreferences
	now         func() time.Time
}

// NewPreferencesManager creates a manager for the preferences file at path.
func NewPreferencesManager(path string) *PreferencesManager {
	return &PreferencesManager{path: path, now: time.Now}
}

// DefaultPreferencesPath places the file next to the config file.
func DefaultPreferencesPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "preferences.json")
}

// Path is the backing file.
func (pm *PreferencesManager) Path() string { return pm.path }

// Load reads preferences from disk, creating defaults if not exists.
func (pm *PreferencesManager) Load() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	data, err := os.ReadFile(pm.path)
	if err != nil {
		if os.IsNotExist(err) {
			pm.preferences = DefaultUserPreferences()
			return nil
		}
		return fmt.Errorf("failed to read preferences: %w", err)
	}

	var prefs UserPreferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return fmt.Errorf("failed to parse preferences: %w", err)
	}
	if prefs.Stats == nil {
		prefs.Stats = make(map[captcha.Variant]*VariantStats)
	}
	if prefs.LastVariant != "" && !prefs.LastVariant.Valid() {
		prefs.LastVariant = ""
	}

	pm.preferences = &prefs
	return nil
}

// Save writes preferences to disk.
func (pm *PreferencesManager) Save() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.ensure()
	pm.preferences.Version = PreferencesVersion

	if err := os.MkdirAll(filepath.Dir(pm.path), 0755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}

	data, err := json.MarshalIndent(pm.preferences, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	if err := os.WriteFile(pm.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}

// ensure must be called with the lock held.
func (pm *PreferencesManager) ensure() {
	if pm.preferences == nil {
		pm.preferences = DefaultUserPreferences()
	}
}

// LastVariant returns the remembered challenge type, if any.
func (pm *PreferencesManager) LastVariant() (captcha.Variant, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if pm.preferences == nil || pm.preferences.LastVariant == "" {
		return "", false
	}
	return pm.preferences.LastVariant, true
}

// SetLastVariant remembers the challenge type on screen.
func (pm *PreferencesManager) SetLastVariant(v captcha.Variant) {
	if !v.Valid() {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.ensure()
	pm.preferences.LastVariant = v
	pm.preferences.UpdatedAt = pm.now().Format(time.RFC3339)
}

// RecordOutcome counts one answered verification. Validation failures never
// reach the backend and are not recorded.
func (pm *PreferencesManager) RecordOutcome(v captcha.Variant, passed bool) {
	if !v.Valid() {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.ensure()
	st, ok := pm.preferences.Stats[v]
	if !ok {
		st = &VariantStats{}
		pm.preferences.Stats[v] = st
	}
	st.Attempts++
	now := pm.now().Format(time.RFC3339)
	if passed {
		st.Passed++
		st.LastPass = now
	} else {
		st.Failed++
	}
	pm.preferences.UpdatedAt = now
}

// Stats returns a copy of the counters for v.
func (pm *PreferencesManager) Stats(v captcha.Variant) VariantStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if pm.preferences == nil {
		return VariantStats{}
	}
	if st, ok := pm.preferences.Stats[v]; ok {
		return *st
	}
	return VariantStats{}
}

// DefaultUserPreferences returns empty preferences.
func DefaultUserPreferences() *UserPreferences {
	return &UserPreferences{
		Version: PreferencesVersion,
		Stats:   make(map[captcha.Variant]*VariantStats),
	}
}
