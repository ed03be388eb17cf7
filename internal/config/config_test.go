package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// pointConfigAt redirects the OS config directory into a temp dir for
// the duration of the test.
func pointConfigAt(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("AppData", dir)
	t.Setenv("HOME", dir)
	return dir
}

func acceptPrompt(string) (bool, error)  { return true, nil }
func declinePrompt(string) (bool, error) { return false, nil }

func TestConfig_LoadWritesDefaults(t *testing.T) {
	pointConfigAt(t)

	cfg, err := Load(declinePrompt)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Hotkey != defaultKey {
		t.Errorf("hotkey = %q, want default %q", cfg.Hotkey, defaultKey)
	}

	path, err := Path()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("defaults were not written: %v", err)
	}
}

func TestConfig_LoadExisting(t *testing.T) {
	pointConfigAt(t)

	if err := Save(Config{Hotkey: "F9"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cfg, err := Load(declinePrompt)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Hotkey != "F9" {
		t.Errorf("hotkey = %q, want F9", cfg.Hotkey)
	}
}

func TestConfig_InvalidResetAccepted(t *testing.T) {
	pointConfigAt(t)

	path, err := Path()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{{{not toml"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(acceptPrompt)
	if err != nil {
		t.Fatalf("Load with accepted reset failed: %v", err)
	}
	if cfg.Hotkey != defaultKey {
		t.Errorf("hotkey after reset = %q, want default", cfg.Hotkey)
	}
}

func TestConfig_InvalidResetDeclined(t *testing.T) {
	pointConfigAt(t)

	path, err := Path()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{{{not toml"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = Load(declinePrompt)
	if err == nil {
		t.Fatal("declining the reset must fail Load")
	}
	if !strings.Contains(err.Error(), "declined") {
		t.Errorf("error %q should mention the declined reset", err)
	}
}

func TestConfig_EmptyHotkeyTriggersReset(t *testing.T) {
	pointConfigAt(t)

	path, err := Path()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("hotkey = \"\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(acceptPrompt)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Hotkey != defaultKey {
		t.Errorf("hotkey = %q, want default after reset", cfg.Hotkey)
	}
}
