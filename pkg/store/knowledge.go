package store

import (
	"context"

	"github.com/wisbric/postflow/pkg/domain"
)

// UpsertAccountKnowledge creates or replaces the one knowledge row per
// account (persona/tone/strategy plus the NG-item and reference-account
// allowlists).
func (s *Store) UpsertAccountKnowledge(ctx context.Context, k domain.AccountKnowledge) error {
	const q = `
		INSERT INTO account_knowledges (account_id, persona, tone, strategy, ng_items, reference_accounts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id) DO UPDATE SET
			persona = EXCLUDED.persona,
			tone = EXCLUDED.tone,
			strategy = EXCLUDED.strategy,
			ng_items = EXCLUDED.ng_items,
			reference_accounts = EXCLUDED.reference_accounts`
	_, err := s.pool.Exec(ctx, q, k.AccountID, k.Persona, k.Tone, k.Strategy, k.NGItems, k.ReferenceAccounts)
	return err
}

// GetAccountKnowledge loads the one knowledge row for an account, if any.
// ErrNotFound means the account has never had its persona/tone/strategy
// configured — callers treat that as "no boilerplate context available."
func (s *Store) GetAccountKnowledge(ctx context.Context, accountID int64) (domain.AccountKnowledge, error) {
	const q = `
		SELECT id, account_id, persona, tone, strategy, ng_items, reference_accounts, created_at
		FROM account_knowledges WHERE account_id = $1`
	var k domain.AccountKnowledge
	err := s.pool.QueryRow(ctx, q, accountID).Scan(
		&k.ID, &k.AccountID, &k.Persona, &k.Tone, &k.Strategy, &k.NGItems, &k.ReferenceAccounts, &k.CreatedAt,
	)
	if err != nil {
		return domain.AccountKnowledge{}, mapNotFound(err)
	}
	return k, nil
}
