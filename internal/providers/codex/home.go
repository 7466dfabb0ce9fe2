package codex

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/semver"
)

const (
	defaultCodexConfigDir = ".codex"
	defaultChatGPTBaseURL = "https://chatgpt.com/backend-api"
)

// DefaultHome returns $CODEX_HOME, falling back to ~/.codex.
func DefaultHome() string {
	if env := strings.TrimSpace(os.Getenv("CODEX_HOME")); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return ""
	}
	return filepath.Join(home, defaultCodexConfigDir)
}

type homeConfig struct {
	ChatGPTBaseURL string `toml:"chatgpt_base_url"`
}

type versionInfo struct {
	LatestVersion string `json:"latest_version"`
}

// ResolveUsageURL picks the usage endpoint. An explicit override wins, then
// chatgpt_base_url from codexHome/config.toml, then the public default.
func ResolveUsageURL(override, codexHome string) string {
	base := strings.TrimSpace(override)
	if base == "" {
		base = readChatGPTBaseURL(codexHome)
	}
	return usageURLForBase(normalizeChatGPTBaseURL(base))
}

// UserAgent mirrors the codex CLI's own User-Agent when its version is known.
func UserAgent(codexHome string) string {
	if codexHome == "" {
		return "codex-cli"
	}
	data, err := os.ReadFile(filepath.Join(codexHome, "version.json"))
	if err != nil {
		return "codex-cli"
	}
	var ver versionInfo
	if json.Unmarshal(data, &ver) != nil {
		return "codex-cli"
	}
	v := strings.TrimSpace(ver.LatestVersion)
	if !semver.IsValid("v" + strings.TrimPrefix(v, "v")) {
		return "codex-cli"
	}
	return "codex-cli/" + strings.TrimPrefix(v, "v")
}

func readChatGPTBaseURL(codexHome string) string {
	if strings.TrimSpace(codexHome) == "" {
		return ""
	}
	var cfg homeConfig
	if _, err := toml.DecodeFile(filepath.Join(codexHome, "config.toml"), &cfg); err != nil {
		return ""
	}
	return strings.TrimSpace(cfg.ChatGPTBaseURL)
}

func normalizeChatGPTBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return defaultChatGPTBaseURL
	}
	if (strings.HasPrefix(baseURL, "https://chatgpt.com") || strings.HasPrefix(baseURL, "https://chat.openai.com")) &&
		!strings.Contains(baseURL, "/backend-api") {
		baseURL += "/backend-api"
	}
	return baseURL
}

func usageURLForBase(baseURL string) string {
	if strings.Contains(baseURL, "/backend-api") {
		return baseURL + "/wham/usage"
	}
	return baseURL + "/api/codex/usage"
}
