package codex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientFetch_SendsAuthHeaders(t *testing.T) {
	var gotAuth, gotAccount, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccount = r.Header.Get("ChatGPT-Account-Id")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"plan_type":"plus"}`))
	}))
	defer server.Close()

	out := NewClient(server.URL+"/backend-api/wham/usage", "codex-cli/0.98.0", time.Second).
		Fetch(context.Background(), "tok-1", "acct-1")

	if out.Kind != OutcomeOK {
		t.Fatalf("expected ok outcome, got %q (err=%v)", out.Kind, out.Err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if gotAccount != "acct-1" {
		t.Errorf("expected account header, got %q", gotAccount)
	}
	if gotUA != "codex-cli/0.98.0" {
		t.Errorf("expected user agent, got %q", gotUA)
	}
	if out.Payload["plan_type"] != "plus" {
		t.Errorf("expected payload plan_type, got %v", out.Payload)
	}
}

func TestClientFetch_HTTPErrorCapturesBody(t *testing.T) {
	long := strings.Repeat("x", 300)
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{name: "short body", status: http.StatusInternalServerError, body: "server error", wantDetail: "server error"},
		{name: "long body", status: http.StatusBadGateway, body: long, wantDetail: long[:140]},
		{name: "unauthorized", status: http.StatusUnauthorized, body: "", wantDetail: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			out := NewClient(server.URL, "", time.Second).Fetch(context.Background(), "tok", "acct")
			if out.Kind != OutcomeHTTPError {
				t.Fatalf("expected http_error, got %q", out.Kind)
			}
			if out.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, out.StatusCode)
			}
			if out.Detail != tt.wantDetail {
				t.Errorf("expected detail %q, got %q", tt.wantDetail, out.Detail)
			}
		})
	}
}

func TestClientFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	out := NewClient(server.URL, "", 50*time.Millisecond).Fetch(context.Background(), "tok", "acct")
	if out.Kind != OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %q (err=%v)", out.Kind, out.Err)
	}
	if out.Timeout != 50*time.Millisecond {
		t.Errorf("expected timeout to be reported, got %s", out.Timeout)
	}
}

func TestClientFetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	out := NewClient(url, "", time.Second).Fetch(context.Background(), "tok", "acct")
	if out.Kind != OutcomeNetworkError {
		t.Fatalf("expected network_error, got %q", out.Kind)
	}
	if out.Err == nil {
		t.Error("expected underlying error")
	}
}

func TestClientFetch_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	out := NewClient(server.URL, "", time.Second).Fetch(context.Background(), "tok", "acct")
	if out.Kind != OutcomeInvalidResponse {
		t.Fatalf("expected invalid_response, got %q", out.Kind)
	}
}
