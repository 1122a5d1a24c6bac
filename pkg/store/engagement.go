package store

import (
	"context"
	"time"

	"github.com/wisbric/postflow/pkg/domain"
)

// RecordEngagementAction appends a like/reply/quote_rt attempt.
func (s *Store) RecordEngagementAction(ctx context.Context, a domain.EngagementAction) (int64, error) {
	const q = `
		INSERT INTO engagement_actions (agent_id, target_account_id, action_type, target_post_url, executed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	var id int64
	executedAt := a.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx, q, a.AgentID, a.TargetAccountID, a.ActionType, a.TargetPostURL, executedAt).Scan(&id)
	return id, err
}

// CountEngagementActions counts every engagement action for an agent within
// [dayStart, dayEnd), across all action types — the rate limiter's cap is
// global across like/reply/quote_rt per §4.3.
func (s *Store) CountEngagementActions(ctx context.Context, agentID int64, dayStart, dayEnd time.Time) (int, error) {
	const q = `
		SELECT COUNT(*) FROM engagement_actions
		WHERE agent_id = $1 AND executed_at >= $2 AND executed_at < $3`
	var n int
	err := s.pool.QueryRow(ctx, q, agentID, dayStart, dayEnd).Scan(&n)
	return n, err
}
