// Package store is the persistence layer (C1): hand-written SQL over
// pgxpool, no ORM/codegen — the same shape as a plain PostgresStore wrapping
// a connection pool, extended with one table per domain entity plus the
// Postgres-only SKIP LOCKED claim query needed by the publish worker.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the persistence layer backed by a pgxpool connection.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-connected pool. Callers construct the pool via
// internal/platform.NewPostgresPool, which performs the initial Ping.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying pgxpool, for callers (ledger, posting) that
// need to open their own transactions.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and *pgxpool.Conn.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrNotFound is returned by single-row lookups when no row matches.
var ErrNotFound = fmt.Errorf("not found")

// mapNotFound normalizes pgx.ErrNoRows to the package-level ErrNotFound so
// callers outside pkg/store never need to import pgx directly.
func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
