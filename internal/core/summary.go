package core

import "strings"

type SummaryStatus string

const (
	SummaryOK      SummaryStatus = "ok"
	SummaryWarning SummaryStatus = "warning"
	SummaryError   SummaryStatus = "error"
)

// MaxMessageLength caps every human-readable Summary message.
const MaxMessageLength = 160

// RateWindow is one rate-limit window as reported by the usage endpoint.
// Every field is independently optional.
type RateWindow struct {
	UsedPercent        *float64 `json:"usedPercent"`
	ResetAfterSeconds  *float64 `json:"resetAfterSeconds"`
	LimitWindowSeconds *float64 `json:"limitWindowSeconds"`
}

type RateLimit struct {
	Allowed         *bool       `json:"allowed"`
	LimitReached    *bool       `json:"limitReached"`
	PrimaryWindow   *RateWindow `json:"primaryWindow"`
	SecondaryWindow *RateWindow `json:"secondaryWindow"`
}

type Credits struct {
	HasCredits *bool   `json:"hasCredits"`
	Unlimited  *bool   `json:"unlimited"`
	Balance    *string `json:"balance"`
}

// Summary is the display-agnostic result of one usage fetch. Status selects
// the variant: SummaryOK carries plan/rate-limit/credit data, the other two
// carry only Message.
type Summary struct {
	Status    SummaryStatus `json:"status"`
	Message   string        `json:"message,omitempty"`
	PlanType  *string       `json:"planType,omitempty"`
	RateLimit *RateLimit    `json:"rateLimit,omitempty"`
	Credits   *Credits      `json:"credits,omitempty"`
}

func (s Summary) Valid() bool {
	switch s.Status {
	case SummaryOK, SummaryWarning, SummaryError:
		return true
	}
	return false
}

func WarningSummary(message string) Summary {
	return Summary{Status: SummaryWarning, Message: TruncateMessage(message, MaxMessageLength)}
}

func ErrorSummary(message string) Summary {
	return Summary{Status: SummaryError, Message: TruncateMessage(message, MaxMessageLength)}
}

// TruncateMessage trims value and shortens it to at most max runes, marking
// the cut with "...".
func TruncateMessage(value string, max int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
