// Package ledger implements the per-agent, per-date budget ledger (C2):
// two-phase reserve/commit accounting against a daily limit and two
// sub-bucket limits (x, llm).
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/wisbric/postflow/pkg/domain"
)

// ErrBudgetExceeded is returned by Reserve when any of the three checks fail.
var ErrBudgetExceeded = errors.New("budget exceeded")

// CostReader is the read half of pkg/store the ledger needs: the committed
// spend for (agent, date).
type CostReader interface {
	GetCostLog(ctx context.Context, agentID int64, date time.Time) (domain.CostLog, error)
}

// Limits bounds a single ledger instance.
type Limits struct {
	Daily float64
	X     float64
	LLM   float64
}

// Ledger is created fresh per (agent, date, task) — it is NOT goroutine-safe
// and must never be shared across concurrent callers (§4.2, §5, §9).
type Ledger struct {
	store   CostReader
	agentID int64
	date    time.Time
	limits  Limits

	xReserved   float64
	llmReserved float64
}

// New constructs a ledger for one agent-date-task.
func New(store CostReader, agentID int64, date time.Time, limits Limits) *Ledger {
	return &Ledger{store: store, agentID: agentID, date: date, limits: limits}
}

// Status is the current committed-plus-reserved snapshot.
type Status struct {
	SpentX      float64
	SpentLLM    float64
	SpentTotal  float64
	ReservedX   float64
	ReservedLLM float64
}

// Reserve checks the three independent-and-joint caps from §4.2 against the
// committed spend (re-read from the store) plus in-memory reservations, and
// accumulates the reservation on success.
func (l *Ledger) Reserve(ctx context.Context, xCost, llmCost float64) error {
	log, err := l.store.GetCostLog(ctx, l.agentID, l.date)
	if err != nil {
		return err
	}

	spentX := log.XAPICost
	spentLLM := log.LLMCost
	spentTotal := log.Total

	if spentX+l.xReserved+xCost > l.limits.X {
		return ErrBudgetExceeded
	}
	if spentLLM+l.llmReserved+llmCost > l.limits.LLM {
		return ErrBudgetExceeded
	}
	if spentTotal+l.xReserved+l.llmReserved+xCost+llmCost > l.limits.Daily {
		return ErrBudgetExceeded
	}

	l.xReserved += xCost
	l.llmReserved += llmCost
	return nil
}

// Commit applies the current in-memory reservations as committed spend via
// the caller-supplied apply function (the daily routine and the publish
// worker pass store.Store.AddSpendDirect), then resets the reservations. A no-op when
// nothing has been reserved, per §4.2.
func (l *Ledger) Commit(ctx context.Context, apply func(ctx context.Context, agentID int64, date time.Time, xDelta, llmDelta float64) error) error {
	if l.xReserved == 0 && l.llmReserved == 0 {
		return nil
	}
	if err := apply(ctx, l.agentID, l.date, l.xReserved, l.llmReserved); err != nil {
		return err
	}
	l.Reset()
	return nil
}

// Status returns the current sums and reservations without mutating state.
func (l *Ledger) Status(ctx context.Context) (Status, error) {
	log, err := l.store.GetCostLog(ctx, l.agentID, l.date)
	if err != nil {
		return Status{}, err
	}
	return Status{
		SpentX:      log.XAPICost,
		SpentLLM:    log.LLMCost,
		SpentTotal:  log.Total,
		ReservedX:   l.xReserved,
		ReservedLLM: l.llmReserved,
	}, nil
}

// Reset clears in-memory reservations without committing — used when a
// transaction is rolled back or abandoned (§4.2: "a dropped transaction
// loses uncommitted reservations").
func (l *Ledger) Reset() {
	l.xReserved = 0
	l.llmReserved = 0
}

// Reserved reports the current in-memory reservation totals, for callers
// that need to pass them straight into a commit helper.
func (l *Ledger) Reserved() (x, llm float64) {
	return l.xReserved, l.llmReserved
}
