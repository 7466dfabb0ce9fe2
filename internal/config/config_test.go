package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.TTL() != 15*time.Minute {
		t.Errorf("default ttl = %s, want 15m", cfg.TTL())
	}
	if cfg.FetchDelay() != 2*time.Second {
		t.Errorf("default delay = %s, want 2s", cfg.FetchDelay())
	}
	if cfg.RequestTimeout() != 5*time.Second {
		t.Errorf("default timeout = %s, want 5s", cfg.RequestTimeout())
	}
	if !cfg.History.Enabled {
		t.Error("history should be enabled by default")
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Usage.TTLSeconds != 900 {
		t.Error("should return defaults for missing file")
	}
}

func TestLoadFrom_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	content := `{
  "profiles_dir": "/srv/profiles",
  "usage": {"ttl_seconds": 60, "fetch_delay_ms": 0, "base_url": "http://localhost:9999"},
  "history": {"enabled": false}
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.ResolvedProfilesDir() != "/srv/profiles" {
		t.Errorf("profiles dir = %s", cfg.ResolvedProfilesDir())
	}
	if cfg.TTL() != time.Minute {
		t.Errorf("ttl = %s, want 1m", cfg.TTL())
	}
	if cfg.FetchDelay() != 0 {
		t.Errorf("delay = %s, want 0", cfg.FetchDelay())
	}
	if cfg.RequestTimeout() != 5*time.Second {
		t.Errorf("timeout should keep default, got %s", cfg.RequestTimeout())
	}
	if cfg.History.Enabled {
		t.Error("history should be disabled")
	}
	if cfg.History.RetentionDays != 30 {
		t.Errorf("retention = %d, want default 30", cfg.History.RetentionDays)
	}
}

func TestLoadFrom_ClampsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	content := `{"profiles_dir":"","usage":{"ttl_seconds":-1,"fetch_delay_ms":-5,"request_timeout_seconds":0}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	def := DefaultConfig()
	if cfg.Usage != def.Usage {
		t.Errorf("usage = %+v, want %+v", cfg.Usage, def.Usage)
	}
	if cfg.ProfilesDir != def.ProfilesDir {
		t.Errorf("profiles dir = %q, want %q", cfg.ProfilesDir, def.ProfilesDir)
	}
}

func TestLoadFrom_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if cfg.Usage.TTLSeconds != 900 {
		t.Error("should fall back to defaults on parse error")
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	cfg := DefaultConfig()
	cfg.CachePath = "/tmp/cache.json"
	cfg.Usage.TTLSeconds = 120

	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo() error: %v", err)
	}
	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if loaded.ResolvedCachePath() != "/tmp/cache.json" || loaded.Usage.TTLSeconds != 120 {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandHome("~/profiles"); got != filepath.Join(home, "profiles") {
		t.Errorf("ExpandHome(~/profiles) = %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got := ExpandHome("~other/x"); got != "~other/x" {
		t.Errorf("~user form should be untouched: %q", got)
	}
}
