package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	defaultTTLSeconds            = 900
	defaultFetchDelayMs          = 2000
	defaultRequestTimeoutSeconds = 5
	defaultHistoryRetentionDays  = 30
)

type UsageConfig struct {
	TTLSeconds            int    `json:"ttl_seconds"`
	FetchDelayMs          int    `json:"fetch_delay_ms"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
	BaseURL               string `json:"base_url,omitempty"`
}

type HistoryConfig struct {
	Enabled       bool   `json:"enabled"`
	DBPath        string `json:"db_path,omitempty"`
	RetentionDays int    `json:"retention_days"`
}

type Config struct {
	ProfilesDir string        `json:"profiles_dir"`
	CodexHome   string        `json:"codex_home,omitempty"`
	CachePath   string        `json:"cache_path,omitempty"`
	Usage       UsageConfig   `json:"usage"`
	History     HistoryConfig `json:"history"`
}

func DefaultConfig() Config {
	return Config{
		ProfilesDir: "~/.codex-profiles",
		Usage: UsageConfig{
			TTLSeconds:            defaultTTLSeconds,
			FetchDelayMs:          defaultFetchDelayMs,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: defaultHistoryRetentionDays,
		},
	}
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "codexswitch")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "codexswitch")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Usage.TTLSeconds <= 0 {
		cfg.Usage.TTLSeconds = defaultTTLSeconds
	}
	if cfg.Usage.FetchDelayMs < 0 {
		cfg.Usage.FetchDelayMs = defaultFetchDelayMs
	}
	if cfg.Usage.RequestTimeoutSeconds <= 0 {
		cfg.Usage.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if cfg.History.RetentionDays <= 0 {
		cfg.History.RetentionDays = defaultHistoryRetentionDays
	}
	if strings.TrimSpace(cfg.ProfilesDir) == "" {
		cfg.ProfilesDir = DefaultConfig().ProfilesDir
	}

	return cfg, nil
}

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c Config) TTL() time.Duration {
	return time.Duration(c.Usage.TTLSeconds) * time.Second
}

func (c Config) FetchDelay() time.Duration {
	return time.Duration(c.Usage.FetchDelayMs) * time.Millisecond
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Usage.RequestTimeoutSeconds) * time.Second
}

func (c Config) HistoryRetention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}

func (c Config) ResolvedProfilesDir() string {
	return ExpandHome(c.ProfilesDir)
}

func (c Config) ResolvedCachePath() string {
	if strings.TrimSpace(c.CachePath) != "" {
		return ExpandHome(c.CachePath)
	}
	return filepath.Join(ConfigDir(), "usage-cache.json")
}

func (c Config) ResolvedHistoryPath() string {
	if strings.TrimSpace(c.History.DBPath) != "" {
		return ExpandHome(c.History.DBPath)
	}
	return filepath.Join(ConfigDir(), "history.db")
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	path = strings.TrimSpace(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
