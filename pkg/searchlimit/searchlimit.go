// Package searchlimit implements the per-source daily search cap and the
// succeeded/failed-only daily fetch cap (C4).
package searchlimit

import (
	"context"
	"time"

	"github.com/wisbric/postflow/pkg/domain"
)

// SearchCounter is the read half of pkg/store the SearchLimiter needs.
type SearchCounter interface {
	CountSearches(ctx context.Context, agentID int64, date time.Time, source domain.SearchSource) (int, error)
}

// FetchCounter is the read half of pkg/store the FetchLimiter needs.
type FetchCounter interface {
	CountFetches(ctx context.Context, agentID int64, date time.Time) (int, error)
}

// SearchLimiter caps per-source (x, web) search attempts per agent-day.
// Stateless: counts are re-read on every call, per §4.4.
type SearchLimiter struct {
	store  SearchCounter
	xMax   int
	webMax int
}

// NewSearchLimiter builds a SearchLimiter with resolved per-source maxima.
func NewSearchLimiter(store SearchCounter, xMax, webMax int) *SearchLimiter {
	return &SearchLimiter{store: store, xMax: xMax, webMax: webMax}
}

// IsLimited reports whether requested more attempts on source would exceed
// that source's daily cap.
func (l *SearchLimiter) IsLimited(ctx context.Context, agentID int64, date time.Time, source domain.SearchSource, requested int) (bool, error) {
	count, err := l.store.CountSearches(ctx, agentID, date, source)
	if err != nil {
		return false, err
	}
	max := l.webMax
	if source == domain.SearchSourceX {
		max = l.xMax
	}
	return count+requested > max, nil
}

// FetchLimiter caps page-fetch attempts per agent-day, counting only
// succeeded/failed FetchLog rows (skipped never counts, per §4.4).
type FetchLimiter struct {
	store FetchCounter
	max   int
}

// NewFetchLimiter builds a FetchLimiter with the resolved daily cap
// (default 3).
func NewFetchLimiter(store FetchCounter, max int) *FetchLimiter {
	return &FetchLimiter{store: store, max: max}
}

// IsLimited reports whether requested more fetches would exceed the cap.
func (l *FetchLimiter) IsLimited(ctx context.Context, agentID int64, date time.Time, requested int) (bool, error) {
	count, err := l.store.CountFetches(ctx, agentID, date)
	if err != nil {
		return false, err
	}
	return count+requested > l.max, nil
}
