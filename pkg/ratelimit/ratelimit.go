// Package ratelimit implements the per-agent daily engagement rate limiter
// (C3): a single global-across-types cap on {like, reply, quote_rt}
// EngagementAction rows, with an in-loop attempt counter the caller
// maintains across a batch of claimed posts.
package ratelimit

import (
	"context"
	"time"
)

// ActionCounter is the read half of pkg/store the limiter needs.
type ActionCounter interface {
	CountEngagementActions(ctx context.Context, agentID int64, dayStart, dayEnd time.Time) (int, error)
}

// Limiter evaluates is_limited against a configurable daily cap (default 3,
// overridden per-agent by the reply_quote_daily_max feature toggle).
type Limiter struct {
	store ActionCounter
	limit int
}

// New builds a Limiter with the resolved daily cap for one agent.
func New(store ActionCounter, limit int) *Limiter {
	return &Limiter{store: store, limit: limit}
}

// IsLimited reports whether requested additional actions would push the
// agent's day total over the cap. attempts is the caller's in-loop counter
// of actions already committed to within the current batch but not yet
// reflected in the database.
func (l *Limiter) IsLimited(ctx context.Context, agentID int64, date time.Time, requested, attempts int) (bool, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	count, err := l.store.CountEngagementActions(ctx, agentID, dayStart, dayEnd)
	if err != nil {
		return false, err
	}
	return count+attempts+requested > l.limit, nil
}
