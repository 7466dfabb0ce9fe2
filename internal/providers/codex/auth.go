package codex

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strings"
)

type TokenStatus string

const (
	TokenOK         TokenStatus = "ok"
	TokenMissing    TokenStatus = "missing"
	TokenParseError TokenStatus = "parse_error"
	TokenIncomplete TokenStatus = "incomplete"
)

// TokenState is the result of reading a profile's auth.json. Only TokenOK
// carries a usable AccessToken and AccountID; Err is set for TokenParseError.
type TokenState struct {
	Status      TokenStatus
	AccessToken string
	AccountID   string
	Err         error
}

type authFile struct {
	AccountID string      `json:"account_id,omitempty"`
	Tokens    *authTokens `json:"tokens"`
}

type authTokens struct {
	AccessToken string `json:"access_token"`
	AccountID   string `json:"account_id,omitempty"`
}

// ReadToken extracts the bearer token and ChatGPT account id from a codex
// auth.json file. It never returns an error; failures are reported through
// TokenState.Status.
func ReadToken(path string) TokenState {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return TokenState{Status: TokenMissing}
		}
		return TokenState{Status: TokenParseError, Err: err}
	}

	var auth authFile
	if err := json.Unmarshal(data, &auth); err != nil {
		return TokenState{Status: TokenParseError, Err: err}
	}
	if auth.Tokens == nil {
		return TokenState{Status: TokenIncomplete}
	}

	token := strings.TrimSpace(auth.Tokens.AccessToken)
	accountID := firstNonEmpty(auth.Tokens.AccountID, auth.AccountID)
	if token == "" || accountID == "" {
		return TokenState{Status: TokenIncomplete}
	}
	return TokenState{Status: TokenOK, AccessToken: token, AccountID: accountID}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
