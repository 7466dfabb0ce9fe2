package codex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/janekbaraniewski/codexswitch/internal/core"
)

func TestSnapshotter_IncompleteCredentialsSkipNetwork(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	s := NewSnapshotter(NewClient(server.URL, "", time.Second))
	summary, err := s.FetchSummary(context.Background(), core.Profile{
		Name:           "work",
		CredentialPath: writeAuth(t, `{"tokens":{}}`),
	})
	if err != nil {
		t.Fatalf("FetchSummary: %v", err)
	}
	if summary.Status != core.SummaryWarning || !strings.Contains(summary.Message, "incomplete") {
		t.Fatalf("expected incomplete warning, got %+v", summary)
	}
	if requests.Load() != 0 {
		t.Fatal("no request should be made without credentials")
	}
}

func TestSnapshotter_MissingCredentials(t *testing.T) {
	s := NewSnapshotter(NewClient("http://127.0.0.1:1", "", time.Second))
	summary, err := s.FetchSummary(context.Background(), core.Profile{
		Name:           "home",
		CredentialPath: filepath.Join(t.TempDir(), "auth.json"),
	})
	if err != nil {
		t.Fatalf("FetchSummary: %v", err)
	}
	if summary.Status != core.SummaryWarning {
		t.Fatalf("expected warning, got %+v", summary)
	}
}

func TestSnapshotter_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server error", http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewSnapshotter(NewClient(server.URL, "", time.Second))
	summary, err := s.FetchSummary(context.Background(), core.Profile{
		Name:           "work",
		CredentialPath: writeAuth(t, `{"tokens":{"access_token":"tok","account_id":"acct"}}`),
	})
	if err != nil {
		t.Fatalf("FetchSummary: %v", err)
	}
	if summary.Status != core.SummaryError {
		t.Fatalf("expected error summary, got %+v", summary)
	}
	if !strings.Contains(summary.Message, "HTTP 500") || !strings.Contains(summary.Message, "server error") {
		t.Errorf("unexpected message %q", summary.Message)
	}
}

func TestSnapshotter_OK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"plan_type":"team","rate_limit":{"primary_window":{"used_percent":3}}}`))
	}))
	defer server.Close()

	s := NewSnapshotter(NewClient(server.URL, "", time.Second))
	summary, err := s.FetchSummary(context.Background(), core.Profile{
		Name:           "work",
		CredentialPath: writeAuth(t, `{"tokens":{"access_token":"tok","account_id":"acct"}}`),
	})
	if err != nil {
		t.Fatalf("FetchSummary: %v", err)
	}
	if summary.Status != core.SummaryOK || summary.PlanType == nil || *summary.PlanType != "team" {
		t.Fatalf("unexpected summary %+v", summary)
	}
}
