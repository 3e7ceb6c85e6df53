package config

import (
	"path/filepath"
	"testing"
)

// TestDefaults checks the out-of-the-box configuration
func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.General.Protocol != "sgr" {
		t.Errorf("default protocol = %s, want sgr", cfg.General.Protocol)
	}
	if !cfg.General.Grab {
		t.Error("grab should default to enabled")
	}
	if cfg.General.APIEnabled {
		t.Error("API server should default to disabled")
	}
}

// TestSaveLoadRoundTrip writes a config and reads it back
func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	m := &Manager{configPath: path, config: DefaultConfig()}
	cfg := m.Get()
	cfg.General.DevicePath = "/dev/input/event5"
	cfg.General.Protocol = "normal"
	cfg.General.MultiSession = true
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m2 := &Manager{configPath: path, config: DefaultConfig()}
	if err := m2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := m2.Get()
	if got.General.DevicePath != "/dev/input/event5" {
		t.Errorf("device path = %s", got.General.DevicePath)
	}
	if got.General.Protocol != "normal" {
		t.Errorf("protocol = %s", got.General.Protocol)
	}
	if !got.General.MultiSession {
		t.Error("multi_session lost in round trip")
	}
}

// TestLoadMissingFileUsesDefaults checks a missing config is not an error
func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m := &Manager{
		configPath: filepath.Join(t.TempDir(), "missing.json"),
		config:     DefaultConfig(),
	}
	if err := m.Load(); err != nil {
		t.Fatalf("Load of missing file should succeed: %v", err)
	}
	if m.Get().General.Protocol != "sgr" {
		t.Error("defaults should survive a missing config file")
	}
}

// TestChangeCallback checks the callback fires on Set
func TestChangeCallback(t *testing.T) {
	m := &Manager{configPath: "/dev/null", config: DefaultConfig()}
	fired := 0
	m.RegisterChangeCallback(func() { fired++ })
	m.Set(DefaultConfig())
	if fired != 1 {
		t.Errorf("callback fired %d times, want 1", fired)
	}
}
