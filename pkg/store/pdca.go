package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wisbric/postflow/pkg/domain"
)

// UpsertDailyPDCA writes or replaces the per (agent, date) analytics/strategy
// blob produced by the daily routine's plan/do/check/act steps.
func (s *Store) UpsertDailyPDCA(ctx context.Context, p domain.DailyPDCA) error {
	analytics, err := marshalOrEmpty(p.AnalyticsSummary)
	if err != nil {
		return err
	}
	analysis, err := marshalOrEmpty(p.Analysis)
	if err != nil {
		return err
	}
	strategy, err := marshalOrEmpty(p.Strategy)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO daily_pdcas (agent_id, date, analytics_summary, analysis, strategy, posts_created, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (agent_id, date) DO UPDATE SET
			analytics_summary = EXCLUDED.analytics_summary,
			analysis = EXCLUDED.analysis,
			strategy = EXCLUDED.strategy,
			posts_created = EXCLUDED.posts_created,
			updated_at = NOW()`
	_, err = s.pool.Exec(ctx, q, p.AgentID, p.Date, analytics, analysis, strategy, p.PostsCreated)
	return err
}

// GetDailyPDCA loads the (agent, date) row, or a zero-value struct if the
// daily routine hasn't run yet for that day.
func (s *Store) GetDailyPDCA(ctx context.Context, agentID int64, date time.Time) (domain.DailyPDCA, error) {
	const q = `
		SELECT agent_id, date, analytics_summary, analysis, strategy, posts_created, updated_at
		FROM daily_pdcas WHERE agent_id = $1 AND date = $2`
	var p domain.DailyPDCA
	var analytics, analysis, strategy []byte
	err := s.pool.QueryRow(ctx, q, agentID, date).Scan(&p.AgentID, &p.Date, &analytics, &analysis, &strategy, &p.PostsCreated, &p.UpdatedAt)
	if err != nil {
		if mapNotFound(err) == ErrNotFound {
			return domain.DailyPDCA{AgentID: agentID, Date: date}, nil
		}
		return domain.DailyPDCA{}, err
	}
	if err := json.Unmarshal(analytics, &p.AnalyticsSummary); err != nil {
		return domain.DailyPDCA{}, err
	}
	if err := json.Unmarshal(analysis, &p.Analysis); err != nil {
		return domain.DailyPDCA{}, err
	}
	if err := json.Unmarshal(strategy, &p.Strategy); err != nil {
		return domain.DailyPDCA{}, err
	}
	return p, nil
}

// ListRecentPDCAs returns up to limit PDCA rows for an agent, most recent
// date first — the "last 7 PDCAs" block on GET /api/agents/{id}.
func (s *Store) ListRecentPDCAs(ctx context.Context, agentID int64, limit int) ([]domain.DailyPDCA, error) {
	const q = `
		SELECT agent_id, date, analytics_summary, analysis, strategy, posts_created, updated_at
		FROM daily_pdcas WHERE agent_id = $1 ORDER BY date DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, q, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DailyPDCA
	for rows.Next() {
		var p domain.DailyPDCA
		var analytics, analysis, strategy []byte
		if err := rows.Scan(&p.AgentID, &p.Date, &analytics, &analysis, &strategy, &p.PostsCreated, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(analytics, &p.AnalyticsSummary); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(analysis, &p.Analysis); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(strategy, &p.Strategy); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func marshalOrEmpty(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
