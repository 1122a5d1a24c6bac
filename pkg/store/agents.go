package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wisbric/postflow/pkg/domain"
)

// CreateAgent inserts a new agent under an account.
func (s *Store) CreateAgent(ctx context.Context, a domain.Agent) (int64, error) {
	toggles, err := json.Marshal(a.FeatureToggles)
	if err != nil {
		return 0, err
	}
	const q = `
		INSERT INTO agents (account_id, status, feature_toggles, daily_budget, split_x, split_llm)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	var id int64
	err = s.pool.QueryRow(ctx, q, a.AccountID, a.Status, toggles, a.DailyBudget, a.SplitX, a.SplitLLM).Scan(&id)
	return id, err
}

// GetAgent loads a single agent by ID.
func (s *Store) GetAgent(ctx context.Context, id int64) (domain.Agent, error) {
	const q = `
		SELECT id, account_id, status, feature_toggles, daily_budget, split_x, split_llm,
		       stop_reason, stopped_at, stop_until, created_at, last_heartbeat_at
		FROM agents WHERE id = $1`
	row := s.pool.QueryRow(ctx, q, id)
	return scanAgent(row)
}

// ListAgents returns every agent, ordered by ID, for GET /api/agents.
func (s *Store) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	const q = `
		SELECT id, account_id, status, feature_toggles, daily_budget, split_x, split_llm,
		       stop_reason, stopped_at, stop_until, created_at, last_heartbeat_at
		FROM agents ORDER BY id`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// ListRunnableAgents returns agents whose status is active, regardless of
// stop_until. The scheduler does not filter further; the daily routine and
// the publish worker each re-check runnability through pkg/guard.
func (s *Store) ListRunnableAgents(ctx context.Context) ([]domain.Agent, error) {
	const q = `
		SELECT id, account_id, status, feature_toggles, daily_budget, split_x, split_llm,
		       stop_reason, stopped_at, stop_until, created_at, last_heartbeat_at
		FROM agents WHERE status = $1 ORDER BY id`
	rows, err := s.pool.Query(ctx, q, domain.AgentActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// UpdateAgentToggles patches the budget/split/feature-toggle fields, the
// PATCH /api/agents/{id} surface.
func (s *Store) UpdateAgentToggles(ctx context.Context, id int64, toggles domain.FeatureToggles, dailyBudget, splitX, splitLLM *float64) error {
	raw, err := json.Marshal(toggles)
	if err != nil {
		return err
	}
	const q = `
		UPDATE agents SET
			feature_toggles = $2,
			daily_budget = COALESCE($3, daily_budget),
			split_x = COALESCE($4, split_x),
			split_llm = COALESCE($5, split_llm)
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id, raw, dailyBudget, splitX, splitLLM)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// StopAgent sets status=stopped, records the reason, and optionally a
// resume time (StopUntil nil means indefinite, per §9 Open Question 1).
func (s *Store) StopAgent(ctx context.Context, id int64, reason string, until *time.Time, now time.Time) error {
	const q = `
		UPDATE agents SET status = $2, stop_reason = $3, stopped_at = $4, stop_until = $5
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id, domain.AgentStopped, reason, now, until)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResumeAgent sets status back to active and clears the stop bookkeeping.
func (s *Store) ResumeAgent(ctx context.Context, id int64) error {
	const q = `
		UPDATE agents SET status = $2, stop_reason = NULL, stopped_at = NULL, stop_until = NULL
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id, domain.AgentActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateHeartbeat stamps last_heartbeat_at, called at the end of every
// daily-routine run (success, skip, or failure alike).
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64, now time.Time) error {
	const q = `UPDATE agents SET last_heartbeat_at = $2 WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, id, now)
	return err
}

// agentRow is satisfied by both pgx.Row and pgx.Rows.
type agentRow interface {
	Scan(dest ...any) error
}

func scanAgent(row agentRow) (domain.Agent, error) {
	var a domain.Agent
	var toggles []byte
	err := row.Scan(&a.ID, &a.AccountID, &a.Status, &toggles, &a.DailyBudget, &a.SplitX, &a.SplitLLM,
		&a.StopReason, &a.StoppedAt, &a.StopUntil, &a.CreatedAt, &a.LastHeartbeatAt)
	if err != nil {
		return domain.Agent{}, mapNotFound(err)
	}
	if len(toggles) > 0 {
		if err := json.Unmarshal(toggles, &a.FeatureToggles); err != nil {
			return domain.Agent{}, err
		}
	}
	return a, nil
}
