package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/janekbaraniewski/codexswitch/internal/config"
)

type testEnv struct {
	cfg      config.Config
	requests *atomic.Int32
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"plan_type":"plus","rate_limit":{"primary_window":{"used_percent":42}}}`))
	}))
	t.Cleanup(server.Close)

	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ProfilesDir = filepath.Join(root, "profiles")
	cfg.CodexHome = filepath.Join(root, "codex")
	cfg.CachePath = filepath.Join(root, "usage-cache.json")
	cfg.Usage.BaseURL = server.URL
	cfg.Usage.FetchDelayMs = 0
	cfg.History.DBPath = filepath.Join(root, "history.db")
	return testEnv{cfg: cfg, requests: &requests}
}

func (e testEnv) addProfile(t *testing.T, name, token string) {
	t.Helper()
	dir := filepath.Join(e.cfg.ProfilesDir, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	auth := `{"tokens":{"access_token":"` + token + `","account_id":"acct-` + name + `"}}`
	if err := os.WriteFile(filepath.Join(dir, "auth.json"), []byte(auth), 0o600); err != nil {
		t.Fatal(err)
	}
}

func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(e.cfg)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRefreshThenStatusJSON(t *testing.T) {
	env := newTestEnv(t)
	env.addProfile(t, "home", "tok-home")
	env.addProfile(t, "work", "tok-work")

	out, err := env.run(t, "refresh")
	if err != nil {
		t.Fatalf("refresh: %v\n%s", err, out)
	}
	if !strings.Contains(out, "42%") {
		t.Errorf("expected usage in refresh output:\n%s", out)
	}
	if got := env.requests.Load(); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}

	out, err = env.run(t, "status", "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var rows []statusRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decoding status JSON: %v\n%s", err, out)
	}
	if len(rows) != 2 || rows[0].Name != "home" || rows[1].Name != "work" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	for _, r := range rows {
		if !r.Cached || r.Stale || r.Summary == nil || *r.Summary.PlanType != "plus" {
			t.Errorf("expected fresh cached row, got %+v", r)
		}
	}

	// A second plain refresh is served from the cache.
	if _, err := env.run(t, "refresh"); err != nil {
		t.Fatal(err)
	}
	if got := env.requests.Load(); got != 2 {
		t.Errorf("expected cached refresh to skip the network, got %d requests", got)
	}
	if _, err := env.run(t, "refresh", "--force", "work"); err != nil {
		t.Fatal(err)
	}
	if got := env.requests.Load(); got != 3 {
		t.Errorf("expected forced refresh of one profile, got %d requests", got)
	}
}

func TestStatusMarksActiveProfile(t *testing.T) {
	env := newTestEnv(t)
	env.addProfile(t, "home", "tok-home")
	env.addProfile(t, "work", "tok-work")

	if err := os.MkdirAll(env.cfg.CodexHome, 0o700); err != nil {
		t.Fatal(err)
	}
	live, err := os.ReadFile(filepath.Join(env.cfg.ProfilesDir, "work", "auth.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(env.cfg.CodexHome, "auth.json"), live, 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "status", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var rows []statusRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatal(err)
	}
	if rows[0].Active || !rows[1].Active {
		t.Errorf("expected only work to be active, got %+v", rows)
	}
	if env.requests.Load() != 0 {
		t.Error("status without --refresh must not fetch")
	}
}

func TestRenameKeepsCacheAndHistory(t *testing.T) {
	env := newTestEnv(t)
	env.addProfile(t, "work", "tok-work")

	if _, err := env.run(t, "refresh"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.run(t, "rename", "work", "job"); err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "status", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var rows []statusRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Name != "job" || !rows[0].Cached {
		t.Fatalf("expected renamed cached profile, got %+v", rows)
	}

	out, err = env.run(t, "history", "work")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "plus") || !strings.Contains(out, "42%") {
		t.Errorf("expected recorded snapshot:\n%s", out)
	}
}

func TestRemoveAndCacheClear(t *testing.T) {
	env := newTestEnv(t)
	env.addProfile(t, "home", "tok-home")
	env.addProfile(t, "work", "tok-work")

	if _, err := env.run(t, "refresh"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.run(t, "remove", "home"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.ProfilesDir, "home")); !os.IsNotExist(err) {
		t.Errorf("expected profile dir to be removed, got %v", err)
	}
	if _, err := env.run(t, "remove", "home"); err == nil {
		t.Error("expected error removing a missing profile")
	}

	if _, err := env.run(t, "cache", "clear"); err != nil {
		t.Fatal(err)
	}
	out, err := env.run(t, "status", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var rows []statusRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Cached {
		t.Fatalf("expected one uncached profile after clear, got %+v", rows)
	}
}

func TestHistoryDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.History.Enabled = false

	if _, err := env.run(t, "history", "work"); err == nil {
		t.Fatal("expected an error when history is disabled")
	}
}
