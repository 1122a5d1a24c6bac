// Package xoauth implements the OAuth Token Manager (C6) and the
// three-phase PKCE flow consumed by the OAuth HTTP endpoints (C11).
package xoauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wisbric/postflow/pkg/domain"
)

const (
	authorizeURL = "https://x.com/i/oauth2/authorize"
	tokenURL     = "https://api.x.com/2/oauth2/token"

	stateTTL     = 10 * time.Minute
	staleMargin  = 2 * time.Minute
)

var defaultScopes = []string{"tweet.write", "users.read", "offline.access", "tweet.read"}

// TokenStore is the slice of pkg/store the manager needs for tokens.
type TokenStore interface {
	UpsertXAuthToken(ctx context.Context, t domain.XAuthToken) error
	GetXAuthToken(ctx context.Context, accountID int64) (domain.XAuthToken, error)
}

// StateStore is the slice of pkg/store the manager needs for PKCE state.
type StateStore interface {
	SaveOAuthState(ctx context.Context, st domain.OAuthState) error
	ConsumeOAuthState(ctx context.Context, state string) (domain.OAuthState, error)
}

// Config holds the OAuth client configuration (§6 env vars).
type Config struct {
	ClientID     string
	ClientSecret string // optional
	RedirectURI  string
}

// Error is a classified xoauth failure, carrying the exact error code
// strings from §6/§7.
type Error struct {
	Code string
}

func (e *Error) Error() string { return e.Code }

// ErrStateInvalid corresponds to the oauth_state_invalid HTTP failure code.
var ErrStateInvalid = &Error{Code: "oauth_state_invalid"}

// Manager implements the three-phase flow from §4.6.
type Manager struct {
	cfg    Config
	tokens TokenStore
	states StateStore
	client *http.Client
}

// New builds a Manager with the §5 15-second OAuth timeout.
func New(cfg Config, tokens TokenStore, states StateStore) *Manager {
	return &Manager{cfg: cfg, tokens: tokens, states: states, client: &http.Client{Timeout: 15 * time.Second}}
}

// StartAuthorize implements phase 1: generates state+verifier, persists
// them, and returns the provider authorize URL to redirect the user to.
func (m *Manager) StartAuthorize(ctx context.Context, accountID int64, now time.Time) (string, error) {
	state, err := generateState()
	if err != nil {
		return "", err
	}
	verifier, err := generateVerifier()
	if err != nil {
		return "", err
	}

	if err := m.states.SaveOAuthState(ctx, domain.OAuthState{
		State:        state,
		AccountID:    accountID,
		CodeVerifier: verifier,
		ExpiresAt:    now.Add(stateTTL),
	}); err != nil {
		return "", err
	}

	q := url.Values{
		"response_type":         {"code"},
		"client_id":             {m.cfg.ClientID},
		"redirect_uri":          {m.cfg.RedirectURI},
		"scope":                 {joinScopes(defaultScopes)},
		"state":                 {state},
		"code_challenge":        {challenge(verifier)},
		"code_challenge_method": {"S256"},
	}
	return authorizeURL + "?" + q.Encode(), nil
}

// HandleCallback implements phase 2: looks up and single-use-consumes the
// state row, then exchanges the authorization code for tokens.
func (m *Manager) HandleCallback(ctx context.Context, state, code string, now time.Time) (int64, error) {
	st, err := m.states.ConsumeOAuthState(ctx, state)
	if err != nil {
		return 0, ErrStateInvalid
	}
	if !st.ExpiresAt.After(now) {
		return 0, ErrStateInvalid
	}

	payload := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {m.cfg.RedirectURI},
		"client_id":     {m.cfg.ClientID},
		"code_verifier": {st.CodeVerifier},
	}

	tok, err := m.tokenRequest(ctx, payload)
	if err != nil {
		return 0, err
	}

	if err := m.persistToken(ctx, st.AccountID, tok, now); err != nil {
		return 0, err
	}
	return st.AccountID, nil
}

// Refresh implements phase 3: exchanges the stored refresh_token for a new
// access token, overwriting the row.
func (m *Manager) Refresh(ctx context.Context, accountID int64, now time.Time) error {
	current, err := m.tokens.GetXAuthToken(ctx, accountID)
	if err != nil {
		return err
	}

	payload := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {current.RefreshToken},
		"client_id":     {m.cfg.ClientID},
	}

	tok, err := m.tokenRequest(ctx, payload)
	if err != nil {
		return err
	}
	return m.persistToken(ctx, accountID, tok, now)
}

// EnsureFresh returns a usable access token, refreshing first if the
// currently stored token is stale within the 2-minute clock-skew margin.
func (m *Manager) EnsureFresh(ctx context.Context, accountID int64, now time.Time) (string, error) {
	tok, err := m.tokens.GetXAuthToken(ctx, accountID)
	if err != nil {
		return "", err
	}
	if !tok.IsStale(now, staleMargin) {
		return tok.AccessToken, nil
	}
	if err := m.Refresh(ctx, accountID, now); err != nil {
		return "", err
	}
	tok, err = m.tokens.GetXAuthToken(ctx, accountID)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// tokenRequest POSTs a form-encoded request to the token endpoint,
// classifying failures into the exact §6/§7 error-code strings.
func (m *Manager) tokenRequest(ctx context.Context, payload url.Values) (tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewBufferString(payload.Encode()))
	if err != nil {
		return tokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if m.cfg.ClientSecret != "" {
		req.SetBasicAuth(m.cfg.ClientID, m.cfg.ClientSecret)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return tokenResponse{}, &Error{Code: fmt.Sprintf("x_oauth_token_request_network_error:%T", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return tokenResponse{}, &Error{Code: "x_oauth_token_request_failed:" + strconv.Itoa(resp.StatusCode)}
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return tokenResponse{}, &Error{Code: "x_oauth_token_invalid"}
	}
	return tok, nil
}

func (m *Manager) persistToken(ctx context.Context, accountID int64, tok tokenResponse, now time.Time) error {
	return m.tokens.UpsertXAuthToken(ctx, domain.XAuthToken{
		AccountID:    accountID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(tok.ExpiresIn) * time.Second),
		Scope:        tok.Scope,
		TokenType:    tok.TokenType,
	})
}

func joinScopes(scopes []string) string {
	out := ""
	for i, s := range scopes {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}
