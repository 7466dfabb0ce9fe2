package codex

import (
	"context"

	"github.com/janekbaraniewski/codexswitch/internal/core"
)

type usageFetcher interface {
	Fetch(ctx context.Context, token, accountID string) Outcome
}

// Snapshotter turns a profile into a Summary: read the token, call the usage
// endpoint, normalize the result. Credential problems short-circuit before
// any request is made.
type Snapshotter struct {
	client usageFetcher
}

func NewSnapshotter(client *Client) *Snapshotter {
	return &Snapshotter{client: client}
}

func (s *Snapshotter) FetchSummary(ctx context.Context, profile core.Profile) (core.Summary, error) {
	state := ReadToken(profile.CredentialPath)
	if summary, done := SummarizeToken(state); done {
		return summary, nil
	}
	if err := ctx.Err(); err != nil {
		return core.Summary{}, err
	}
	return Summarize(s.client.Fetch(ctx, state.AccessToken, state.AccountID)), nil
}
