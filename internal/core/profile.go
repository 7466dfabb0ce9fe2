package core

import (
	"encoding/json"
	"time"
)

// Profile is a named credential context the codex CLI can run under.
type Profile struct {
	Name           string `json:"name"`
	CredentialPath string `json:"credential_path"`
}

// CachedEntry is the last known summary for one profile.
type CachedEntry struct {
	ProfileName string
	Summary     Summary
	FetchedAt   time.Time
}

type cachedEntryJSON struct {
	ProfileName string  `json:"profileName"`
	Summary     Summary `json:"summary"`
	FetchedAt   int64   `json:"fetchedAt"` // unix millis
}

func (e CachedEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(cachedEntryJSON{
		ProfileName: e.ProfileName,
		Summary:     e.Summary,
		FetchedAt:   e.FetchedAt.UnixMilli(),
	})
}

func (e *CachedEntry) UnmarshalJSON(data []byte) error {
	var raw cachedEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.ProfileName = raw.ProfileName
	e.Summary = raw.Summary
	e.FetchedAt = time.UnixMilli(raw.FetchedAt)
	return nil
}
