package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wisbric/postflow/pkg/domain"
)

// GetCostLog loads the (agent, date) spend row, returning a zero-value log
// with no error if none exists yet — the ledger treats a missing row as
// "nothing spent today".
func (s *Store) GetCostLog(ctx context.Context, agentID int64, date time.Time) (domain.CostLog, error) {
	const q = `
		SELECT id, agent_id, date, x_api_cost, x_api_cost_estimate, llm_cost, image_gen_cost,
		       total, x_usage_units, x_usage_raw, x_api_cost_actual, updated_at
		FROM cost_logs WHERE agent_id = $1 AND date = $2`
	var c domain.CostLog
	var raw []byte
	err := s.pool.QueryRow(ctx, q, agentID, date).Scan(&c.ID, &c.AgentID, &c.Date, &c.XAPICost, &c.XAPICostEstimate,
		&c.LLMCost, &c.ImageGenCost, &c.Total, &c.XUsageUnits, &raw, &c.XAPICostActual, &c.UpdatedAt)
	if err != nil {
		if mapNotFound(err) == ErrNotFound {
			return domain.CostLog{AgentID: agentID, Date: date}, nil
		}
		return domain.CostLog{}, err
	}
	c.XUsageRaw = json.RawMessage(raw)
	return c, nil
}

// AddSpend increments the x/llm/image-gen cost buckets and recomputes total
// for (agent, date), creating the row on first spend. This is the commit
// half of the budget ledger's two-phase reserve/commit.
func (s *Store) AddSpend(ctx context.Context, tx DBTX, agentID int64, date time.Time, xDelta, llmDelta, imageDelta float64) error {
	const q = `
		INSERT INTO cost_logs (agent_id, date, x_api_cost, llm_cost, image_gen_cost, total, updated_at)
		VALUES ($1, $2, $3, $4, $5, $3 + $4 + $5, NOW())
		ON CONFLICT (agent_id, date) DO UPDATE SET
			x_api_cost = cost_logs.x_api_cost + EXCLUDED.x_api_cost,
			llm_cost = cost_logs.llm_cost + EXCLUDED.llm_cost,
			image_gen_cost = cost_logs.image_gen_cost + EXCLUDED.image_gen_cost,
			total = cost_logs.total + EXCLUDED.total,
			updated_at = NOW()`
	_, err := tx.Exec(ctx, q, agentID, date, xDelta, llmDelta, imageDelta)
	return err
}

// AddSpendDirect is AddSpend against the pool directly, for callers (the
// daily routine, the publish worker) that commit a ledger outside of any
// wider transaction.
func (s *Store) AddSpendDirect(ctx context.Context, agentID int64, date time.Time, xDelta, llmDelta float64) error {
	return s.AddSpend(ctx, s.pool, agentID, date, xDelta, llmDelta, 0)
}

// SetXUsageActual records the reconciler's usage units, raw usage payload
// and computed actual cost for (agent, date); the running x_api_cost and
// x_api_cost_estimate columns are left unchanged.
func (s *Store) SetXUsageActual(ctx context.Context, agentID int64, date time.Time, units float64, raw json.RawMessage, actual float64) error {
	const q = `
		INSERT INTO cost_logs (agent_id, date, x_usage_units, x_usage_raw, x_api_cost_actual, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (agent_id, date) DO UPDATE SET
			x_usage_units = EXCLUDED.x_usage_units,
			x_usage_raw = EXCLUDED.x_usage_raw,
			x_api_cost_actual = EXCLUDED.x_api_cost_actual,
			updated_at = NOW()`
	_, err := s.pool.Exec(ctx, q, agentID, date, units, raw, actual)
	return err
}
