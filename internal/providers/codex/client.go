package codex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultRequestTimeout = 5 * time.Second

	// maxHTTPErrorBodySize is the number of response-body characters kept
	// when the endpoint answers with a non-2xx status.
	maxHTTPErrorBodySize = 140
	maxResponseBodySize  = 1 << 20
)

type OutcomeKind string

const (
	OutcomeOK              OutcomeKind = "ok"
	OutcomeTimeout         OutcomeKind = "timeout"
	OutcomeNetworkError    OutcomeKind = "network_error"
	OutcomeHTTPError       OutcomeKind = "http_error"
	OutcomeInvalidResponse OutcomeKind = "invalid_response"
)

// Outcome is the classified result of one usage request.
type Outcome struct {
	Kind       OutcomeKind
	Payload    map[string]any
	StatusCode int
	Detail     string
	Timeout    time.Duration
	Err        error
}

// Client performs single, un-retried GET requests against the usage endpoint.
type Client struct {
	HTTPClient *http.Client
	UsageURL   string
	UserAgent  string
	Timeout    time.Duration
}

func NewClient(usageURL, userAgent string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		HTTPClient: http.DefaultClient,
		UsageURL:   usageURL,
		UserAgent:  userAgent,
		Timeout:    timeout,
	}
}

func (c *Client) Fetch(ctx context.Context, token, accountID string) Outcome {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UsageURL, nil)
	if err != nil {
		return Outcome{Kind: OutcomeNetworkError, Err: fmt.Errorf("creating usage request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("ChatGPT-Account-Id", accountID)
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	} else {
		req.Header.Set("User-Agent", "codex-cli")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Outcome{Kind: OutcomeTimeout, Timeout: timeout, Err: err}
		}
		return Outcome{Kind: OutcomeNetworkError, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Outcome{Kind: OutcomeTimeout, Timeout: timeout, Err: err}
		}
		return Outcome{Kind: OutcomeNetworkError, Err: fmt.Errorf("reading usage response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Outcome{
			Kind:       OutcomeHTTPError,
			StatusCode: resp.StatusCode,
			Detail:     truncateForError(string(body), maxHTTPErrorBodySize),
		}
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return Outcome{Kind: OutcomeInvalidResponse, StatusCode: resp.StatusCode, Err: err}
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return Outcome{Kind: OutcomeOK, StatusCode: resp.StatusCode, Payload: payload}
}

func truncateForError(value string, max int) string {
	runes := []rune(value)
	if len(runes) > max {
		runes = runes[:max]
	}
	return string(runes)
}
