package codex

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveUsageURL(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, "config.toml"),
		[]byte("model = \"gpt-5\"\nchatgpt_base_url = \"https://chatgpt.com/\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		override string
		home     string
		want     string
	}{
		{name: "default", want: "https://chatgpt.com/backend-api/wham/usage"},
		{name: "from config.toml", home: home, want: "https://chatgpt.com/backend-api/wham/usage"},
		{name: "override wins", override: "http://127.0.0.1:8080/", home: home, want: "http://127.0.0.1:8080/api/codex/usage"},
		{name: "override with backend-api", override: "https://proxy.example/backend-api", want: "https://proxy.example/backend-api/wham/usage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveUsageURL(tt.override, tt.home); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResolveUsageURL_InvalidTOMLFallsBack(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte("chatgpt_base_url = "), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := ResolveUsageURL("", home); got != "https://chatgpt.com/backend-api/wham/usage" {
		t.Errorf("expected default endpoint, got %q", got)
	}
}

func TestUserAgent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "valid version", content: `{"latest_version":"0.98.0"}`, want: "codex-cli/0.98.0"},
		{name: "v prefix", content: `{"latest_version":"v1.2.3"}`, want: "codex-cli/1.2.3"},
		{name: "garbage version", content: `{"latest_version":"latest"}`, want: "codex-cli"},
		{name: "invalid json", content: `{`, want: "codex-cli"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			if err := os.WriteFile(filepath.Join(home, "version.json"), []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if got := UserAgent(home); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	if got := UserAgent(t.TempDir()); got != "codex-cli" {
		t.Errorf("expected bare user agent without version.json, got %q", got)
	}
}
