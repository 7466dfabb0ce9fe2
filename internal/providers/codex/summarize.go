package codex

import (
	"fmt"
	"strings"

	"github.com/janekbaraniewski/codexswitch/internal/core"
)

// SummarizeToken maps a non-OK token state to the Summary shown for the
// profile. It returns false for TokenOK, meaning the network call should run.
func SummarizeToken(state TokenState) (core.Summary, bool) {
	switch state.Status {
	case TokenOK:
		return core.Summary{}, false
	case TokenMissing:
		return core.WarningSummary("auth.json not found; log in with this profile first"), true
	case TokenIncomplete:
		return core.WarningSummary("auth.json is incomplete: missing access_token or account_id"), true
	default:
		msg := "Could not parse auth.json"
		if state.Err != nil {
			msg += ": " + state.Err.Error()
		}
		return core.ErrorSummary(msg), true
	}
}

// Summarize normalizes a usage Outcome. Malformed or mistyped payload fields
// become nil rather than failing.
func Summarize(out Outcome) core.Summary {
	switch out.Kind {
	case OutcomeOK:
		return summarizePayload(out.Payload)
	case OutcomeTimeout:
		timeout := out.Timeout
		if timeout <= 0 {
			timeout = DefaultRequestTimeout
		}
		return core.ErrorSummary(fmt.Sprintf("Usage request timed out after %s", timeout))
	case OutcomeHTTPError:
		msg := fmt.Sprintf("HTTP %d", out.StatusCode)
		if detail := strings.TrimSpace(out.Detail); detail != "" {
			msg += ": " + detail
		}
		return core.ErrorSummary(msg)
	case OutcomeInvalidResponse:
		return core.ErrorSummary("Invalid usage response: " + errString(out.Err))
	default:
		return core.ErrorSummary("Usage request failed: " + errString(out.Err))
	}
}

func summarizePayload(payload map[string]any) core.Summary {
	s := core.Summary{
		Status:   core.SummaryOK,
		PlanType: stringField(payload, "plan_type"),
	}
	if rl := objectField(payload, "rate_limit"); rl != nil {
		s.RateLimit = &core.RateLimit{
			Allowed:         boolField(rl, "allowed"),
			LimitReached:    boolField(rl, "limit_reached"),
			PrimaryWindow:   rateWindow(objectField(rl, "primary_window")),
			SecondaryWindow: rateWindow(objectField(rl, "secondary_window")),
		}
	}
	if credits := objectField(payload, "credits"); credits != nil {
		s.Credits = &core.Credits{
			HasCredits: boolField(credits, "has_credits"),
			Unlimited:  boolField(credits, "unlimited"),
			Balance:    stringField(credits, "balance"),
		}
	}
	return s
}

func rateWindow(obj map[string]any) *core.RateWindow {
	if obj == nil {
		return nil
	}
	return &core.RateWindow{
		UsedPercent:        numberField(obj, "used_percent"),
		ResetAfterSeconds:  numberField(obj, "reset_after_seconds"),
		LimitWindowSeconds: numberField(obj, "limit_window_seconds"),
	}
}

func objectField(obj map[string]any, key string) map[string]any {
	v, _ := obj[key].(map[string]any)
	return v
}

func numberField(obj map[string]any, key string) *float64 {
	v, ok := obj[key].(float64)
	if !ok {
		return nil
	}
	return &v
}

func boolField(obj map[string]any, key string) *bool {
	v, ok := obj[key].(bool)
	if !ok {
		return nil
	}
	return &v
}

func stringField(obj map[string]any, key string) *string {
	v, ok := obj[key].(string)
	if !ok {
		return nil
	}
	return &v
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
