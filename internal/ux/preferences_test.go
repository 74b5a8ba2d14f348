package ux

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"captchaclient/internal/captcha"
)

func TestDefaultUserPreferences(t *testing.T) {
	prefs := DefaultUserPreferences()
	if prefs.Version != PreferencesVersion {
		t.Fatalf("unexpected preferences version: %s", prefs.Version)
	}
	if prefs.Stats == nil {
		t.Fatalf("expected stats map to be initialized")
	}
}

func TestPreferencesManagerLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preferences.json")
	pm := NewPreferencesManager(path)
	if err := pm.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, ok := pm.LastVariant(); ok {
		t.Fatalf("expected no last variant on a fresh file")
	}

	pm.SetLastVariant(captcha.VariantSlide)
	pm.RecordOutcome(captcha.VariantSlide, true)
	pm.RecordOutcome(captcha.VariantSlide, false)
	if err := pm.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	pm2 := NewPreferencesManager(path)
	if err := pm2.Load(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	v, ok := pm2.LastVariant()
	if !ok || v != captcha.VariantSlide {
		t.Fatalf("expected last variant persisted, got %q", v)
	}
	st := pm2.Stats(captcha.VariantSlide)
	if st.Attempts != 2 || st.Passed != 1 || st.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if st.LastPass == "" {
		t.Fatalf("expected last pass timestamp")
	}
}

func TestRecordOutcome_IgnoresUnknownVariant(t *testing.T) {
	pm := NewPreferencesManager(filepath.Join(t.TempDir(), "p.json"))
	pm.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	pm.RecordOutcome("audio", true)
	pm.SetLastVariant("audio")
	if _, ok := pm.LastVariant(); ok {
		t.Fatalf("unknown variant must not be remembered")
	}
	if st := pm.Stats("audio"); st.Attempts != 0 {
		t.Fatalf("unknown variant must not be counted")
	}

	pm.RecordOutcome(captcha.VariantCharacter, true)
	if got := pm.Stats(captcha.VariantCharacter).LastPass; got != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected last pass: %s", got)
	}
}

func TestLoad_DropsInvalidLastVariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	if err := os.WriteFile(path, []byte(`{"version":"1.0","last_variant":"audio"}`), 0644); err != nil {
		t.Fatal(err)
	}
	pm := NewPreferencesManager(path)
	if err := pm.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, ok := pm.LastVariant(); ok {
		t.Fatalf("invalid variant should be dropped")
	}
	pm.RecordOutcome(captcha.VariantCharacter, false)
	if pm.Stats(captcha.VariantCharacter).Failed != 1 {
		t.Fatalf("stats map should be usable after load")
	}
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewPreferencesManager(path).Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}
