package store

import (
	"context"
	"time"

	"github.com/wisbric/postflow/pkg/domain"
)

// UpsertXAuthToken writes the one-row-per-account OAuth token record, used
// both on initial authorization and every refresh.
func (s *Store) UpsertXAuthToken(ctx context.Context, t domain.XAuthToken) error {
	const q = `
		INSERT INTO x_auth_tokens (account_id, access_token, refresh_token, expires_at, scope, token_type, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scope = EXCLUDED.scope,
			token_type = EXCLUDED.token_type,
			updated_at = NOW()`
	_, err := s.pool.Exec(ctx, q, t.AccountID, t.AccessToken, t.RefreshToken, t.ExpiresAt, t.Scope, t.TokenType)
	return err
}

// GetXAuthToken loads the token row for an account.
func (s *Store) GetXAuthToken(ctx context.Context, accountID int64) (domain.XAuthToken, error) {
	const q = `
		SELECT account_id, access_token, refresh_token, expires_at, scope, token_type, updated_at
		FROM x_auth_tokens WHERE account_id = $1`
	var t domain.XAuthToken
	err := s.pool.QueryRow(ctx, q, accountID).Scan(&t.AccountID, &t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &t.Scope, &t.TokenType, &t.UpdatedAt)
	if err != nil {
		return domain.XAuthToken{}, mapNotFound(err)
	}
	return t, nil
}

// SaveOAuthState stores a PKCE authorization attempt, keyed by the random
// state value, for later lookup in the callback.
func (s *Store) SaveOAuthState(ctx context.Context, st domain.OAuthState) error {
	const q = `
		INSERT INTO oauth_states (state, account_id, code_verifier, expires_at)
		VALUES ($1, $2, $3, $4)`
	_, err := s.pool.Exec(ctx, q, st.State, st.AccountID, st.CodeVerifier, st.ExpiresAt)
	return err
}

// ConsumeOAuthState deletes and returns the state row in one statement, so a
// state value can only ever be redeemed once.
func (s *Store) ConsumeOAuthState(ctx context.Context, state string) (domain.OAuthState, error) {
	const q = `
		DELETE FROM oauth_states WHERE state = $1
		RETURNING state, account_id, code_verifier, expires_at, created_at`
	var st domain.OAuthState
	err := s.pool.QueryRow(ctx, q, state).Scan(&st.State, &st.AccountID, &st.CodeVerifier, &st.ExpiresAt, &st.CreatedAt)
	if err != nil {
		return domain.OAuthState{}, mapNotFound(err)
	}
	return st, nil
}

// PurgeExpiredOAuthStates deletes stale, unconsumed state rows. Nothing in
// this module calls it; pkg/xoauth's callback refuses an expired state on
// its own.
func (s *Store) PurgeExpiredOAuthStates(ctx context.Context, now time.Time) error {
	const q = `DELETE FROM oauth_states WHERE expires_at <= $1`
	_, err := s.pool.Exec(ctx, q, now)
	return err
}
