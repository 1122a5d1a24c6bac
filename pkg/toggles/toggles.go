// Package toggles is the narrow, allowlisted, range-checked reader over an
// agent's feature-toggle bag (§4.13). Unknown keys are refused at the JSON
// layer (domain.FeatureToggles only has typed fields for allowlisted keys,
// plus Raw for forward compatibility); invalid values here fall back to the
// default and log a single structured event.
package toggles

import (
	"log/slog"

	"github.com/wisbric/postflow/pkg/domain"
)

// Defaults mirrors the env-configured fallback values a Resolver applies
// when an agent has not overridden a toggle.
type Defaults struct {
	PostsPerDay        int
	XSearchMax         int
	WebSearchMax       int
	WebFetchMax        int
	PostingPollSeconds int
	ReplyQuoteDailyMax int
}

type rangeSpec struct {
	min, max int
}

var ranges = map[string]rangeSpec{
	"posts_per_day":         {0, 20},
	"x_search_max":          {0, 50},
	"web_search_max":        {0, 50},
	"web_fetch_max":         {0, 20},
	"posting_poll_seconds":  {1, 86400},
	"reply_quote_daily_max": {0, 100},
}

// Resolver reads an agent's toggles against Defaults, logging and falling
// back to the default on an out-of-range value.
type Resolver struct {
	defaults Defaults
	logger   *slog.Logger
}

// New builds a Resolver bound to the given defaults.
func New(defaults Defaults, logger *slog.Logger) *Resolver {
	return &Resolver{defaults: defaults, logger: logger}
}

func (r *Resolver) resolveInt(key string, value *int, fallback int) int {
	if value == nil {
		return fallback
	}
	rs, ok := ranges[key]
	if !ok {
		r.logger.Error("unknown feature toggle key", "key", key)
		return fallback
	}
	if *value < rs.min || *value > rs.max {
		r.logger.Error("feature toggle out of range", "key", key, "value", *value, "min", rs.min, "max", rs.max)
		return fallback
	}
	return *value
}

// PostsPerDay resolves posts_per_day, falling back to the configured default.
func (r *Resolver) PostsPerDay(t domain.FeatureToggles) int {
	return r.resolveInt("posts_per_day", t.PostsPerDay, r.defaults.PostsPerDay)
}

// XSearchMax resolves x_search_max.
func (r *Resolver) XSearchMax(t domain.FeatureToggles) int {
	return r.resolveInt("x_search_max", t.XSearchMax, r.defaults.XSearchMax)
}

// WebSearchMax resolves web_search_max.
func (r *Resolver) WebSearchMax(t domain.FeatureToggles) int {
	return r.resolveInt("web_search_max", t.WebSearchMax, r.defaults.WebSearchMax)
}

// WebFetchMax resolves web_fetch_max.
func (r *Resolver) WebFetchMax(t domain.FeatureToggles) int {
	return r.resolveInt("web_fetch_max", t.WebFetchMax, r.defaults.WebFetchMax)
}

// PostingPollSeconds resolves posting_poll_seconds.
func (r *Resolver) PostingPollSeconds(t domain.FeatureToggles) int {
	return r.resolveInt("posting_poll_seconds", t.PostingPollSeconds, r.defaults.PostingPollSeconds)
}

// ReplyQuoteDailyMax resolves reply_quote_daily_max.
func (r *Resolver) ReplyQuoteDailyMax(t domain.FeatureToggles) int {
	return r.resolveInt("reply_quote_daily_max", t.ReplyQuoteDailyMax, r.defaults.ReplyQuoteDailyMax)
}
