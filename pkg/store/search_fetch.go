package store

import (
	"context"
	"time"

	"github.com/wisbric/postflow/pkg/domain"
)

// RecordSearchLog appends a search attempt and returns its ID.
func (s *Store) RecordSearchLog(ctx context.Context, l domain.SearchLog) (int64, error) {
	const q = `
		INSERT INTO search_logs (agent_id, date, source, status, payload, cost_estimate)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	var id int64
	payload := l.Payload
	if payload == nil {
		payload = []byte("{}")
	}
	err := s.pool.QueryRow(ctx, q, l.AgentID, l.Date, l.Source, l.Status, payload, l.CostEstimate).Scan(&id)
	return id, err
}

// CountSearches counts search_logs rows for (agent, date, source) — every
// status counts, matching the search limiter's cap on attempts, not successes.
func (s *Store) CountSearches(ctx context.Context, agentID int64, date time.Time, source domain.SearchSource) (int, error) {
	const q = `SELECT COUNT(*) FROM search_logs WHERE agent_id = $1 AND date = $2 AND source = $3`
	var n int
	err := s.pool.QueryRow(ctx, q, agentID, date, source).Scan(&n)
	return n, err
}

// RecordFetchLog appends a page-fetch attempt and returns its ID.
func (s *Store) RecordFetchLog(ctx context.Context, l domain.FetchLog) (int64, error) {
	const q = `
		INSERT INTO fetch_logs (agent_id, date, url, status, payload, cost_estimate)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	var id int64
	payload := l.Payload
	if payload == nil {
		payload = []byte("{}")
	}
	err := s.pool.QueryRow(ctx, q, l.AgentID, l.Date, l.URL, l.Status, payload, l.CostEstimate).Scan(&id)
	return id, err
}

// CountFetches counts fetch_logs rows for (agent, date) with status
// succeeded or failed — skipped rows never count against the daily cap.
func (s *Store) CountFetches(ctx context.Context, agentID int64, date time.Time) (int, error) {
	const q = `
		SELECT COUNT(*) FROM fetch_logs
		WHERE agent_id = $1 AND date = $2 AND status IN ($3, $4)`
	var n int
	err := s.pool.QueryRow(ctx, q, agentID, date, domain.FetchSucceeded, domain.FetchFailed).Scan(&n)
	return n, err
}

// SaveTargetPostCandidate upserts a harvested URL for the planner to consume.
func (s *Store) SaveTargetPostCandidate(ctx context.Context, c domain.TargetPostCandidate) (int64, error) {
	const q = `
		INSERT INTO target_post_candidates (agent_id, date, url, text, post_created_at, used)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (agent_id, date, url) DO UPDATE SET text = EXCLUDED.text
		RETURNING id`
	var id int64
	err := s.pool.QueryRow(ctx, q, c.AgentID, c.Date, c.URL, c.Text, c.PostCreatedAt, c.Used).Scan(&id)
	return id, err
}

// NextUnusedTargetPostCandidate claims the oldest unused candidate for
// (agent, date) and marks it used, or returns ErrNotFound if none remain.
func (s *Store) NextUnusedTargetPostCandidate(ctx context.Context, agentID int64, date time.Time) (domain.TargetPostCandidate, error) {
	const q = `
		UPDATE target_post_candidates SET used = TRUE
		WHERE id = (
			SELECT id FROM target_post_candidates
			WHERE agent_id = $1 AND date = $2 AND used = FALSE
			ORDER BY id
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, agent_id, date, url, text, post_created_at, used`
	var c domain.TargetPostCandidate
	err := s.pool.QueryRow(ctx, q, agentID, date).Scan(&c.ID, &c.AgentID, &c.Date, &c.URL, &c.Text, &c.PostCreatedAt, &c.Used)
	if err != nil {
		return domain.TargetPostCandidate{}, mapNotFound(err)
	}
	return c, nil
}
