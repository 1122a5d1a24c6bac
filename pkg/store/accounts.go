package store

import (
	"context"

	"github.com/wisbric/postflow/pkg/domain"
)

// CreateAccount inserts a new account and returns its assigned ID.
func (s *Store) CreateAccount(ctx context.Context, a domain.Account) (int64, error) {
	const q = `
		INSERT INTO accounts (name, type, api_key_ref, media_assets_dir)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	var id int64
	err := s.pool.QueryRow(ctx, q, a.Name, a.Type, a.APIKeyRef, a.MediaAssetsDir).Scan(&id)
	return id, err
}

// GetAccount loads a single account by ID.
func (s *Store) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	const q = `
		SELECT id, name, type, api_key_ref, media_assets_dir, created_at
		FROM accounts WHERE id = $1`
	var a domain.Account
	err := s.pool.QueryRow(ctx, q, id).Scan(&a.ID, &a.Name, &a.Type, &a.APIKeyRef, &a.MediaAssetsDir, &a.CreatedAt)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}
