// Package scheduler implements the Scheduler (C9): a daily cron trigger
// that fans the daily routine out across every active agent, and an
// interval trigger that drains due posts, per spec §4.11.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wisbric/postflow/pkg/dailyroutine"
	"github.com/wisbric/postflow/pkg/domain"
	"github.com/wisbric/postflow/pkg/posting"
	"github.com/wisbric/postflow/pkg/toggles"
)

// Store is the slice of pkg/store the scheduler needs to enumerate agents.
type Store interface {
	ListRunnableAgents(ctx context.Context) ([]domain.Agent, error)
}

// DailyRunner is the C7 collaborator the cron trigger fans out to.
type DailyRunner interface {
	Run(ctx context.Context, agentID int64, baseDate time.Time) (dailyroutine.Result, error)
}

// PostRunner is the C8 collaborator the interval trigger drains.
type PostRunner interface {
	RunOnce(ctx context.Context, agentID int64, now time.Time) ([]posting.Outcome, error)
}

// Options carries the env-tunable timing knobs from §6.
type Options struct {
	TZ                 *time.Location
	DailyHour          int
	DailyMinute        int
	PostingPollSeconds int // fallback when no agent overrides posting_poll_seconds
	LogDir             string
}

// Scheduler owns the cron daily trigger and the interval posting trigger.
type Scheduler struct {
	store   Store
	daily   DailyRunner
	posting PostRunner
	toggles *toggles.Resolver
	opts    Options
	logger  *slog.Logger
	cron    *cron.Cron
}

// New builds a Scheduler. Call Start to begin both triggers, or RunDailyOnce/
// RunPostingOnce directly for the CLI's one-shot modes.
func New(store Store, daily DailyRunner, posting PostRunner, tg *toggles.Resolver, opts Options, logger *slog.Logger) *Scheduler {
	if opts.TZ == nil {
		opts.TZ = time.UTC
	}
	if opts.LogDir == "" {
		opts.LogDir = "apps/worker/logs"
	}
	return &Scheduler{store: store, daily: daily, posting: posting, toggles: tg, opts: opts, logger: logger}
}

// Start launches the cron daily trigger and the interval posting trigger,
// both running until ctx is cancelled. It blocks until ctx.Done().
func (s *Scheduler) Start(ctx context.Context) {
	spec := fmt.Sprintf("%d %d * * *", s.opts.DailyMinute, s.opts.DailyHour)
	c := cron.New(cron.WithLocation(s.opts.TZ))
	_, err := c.AddFunc(spec, func() { s.RunDailyOnce(ctx) })
	if err != nil {
		s.logger.Error("scheduler: invalid daily cron spec", "spec", spec, "error", err)
		return
	}
	s.cron = c
	c.Start()
	defer c.Stop()

	s.logger.Info("scheduler: daily cron trigger armed", "spec", spec, "tz", s.opts.TZ.String())

	interval := s.pollInterval(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("scheduler: interval posting trigger started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: stopped")
			return
		case <-ticker.C:
			s.RunPostingOnce(ctx)
		}
	}
}

// pollInterval is the minimum posting_poll_seconds across active agents,
// falling back to Options.PostingPollSeconds when no agents exist yet.
func (s *Scheduler) pollInterval(ctx context.Context) time.Duration {
	fallback := time.Duration(s.opts.PostingPollSeconds) * time.Second
	if fallback <= 0 {
		fallback = 30 * time.Second
	}
	agents, err := s.store.ListRunnableAgents(ctx)
	if err != nil || len(agents) == 0 {
		return fallback
	}
	min := -1
	for _, a := range agents {
		secs := s.toggles.PostingPollSeconds(a.FeatureToggles)
		if min == -1 || secs < min {
			min = secs
		}
	}
	if min <= 0 {
		return fallback
	}
	return time.Duration(min) * time.Second
}

// RunDailyOnce enumerates active agents (ordered by id asc) and runs C7 for
// each, in sequence — a per-agent failure is caught, written to a per-agent
// JSON log file, and never aborts the remaining agents.
func (s *Scheduler) RunDailyOnce(ctx context.Context) {
	now := time.Now().In(s.opts.TZ)
	agents, err := s.store.ListRunnableAgents(ctx)
	if err != nil {
		s.logger.Error("scheduler: listing runnable agents", "error", err)
		return
	}

	for _, a := range agents {
		s.runDailyForAgent(ctx, a.ID, now)
	}
}

func (s *Scheduler) runDailyForAgent(ctx context.Context, agentID int64, baseDate time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			s.writeRunLog(agentID, baseDate, map[string]any{
				"agent_id":  agentID,
				"base_date": baseDate.Format("2006-01-02"),
				"error":     map[string]string{"type": "panic", "message": fmt.Sprintf("%v", rec)},
			})
		}
	}()

	result, err := s.daily.Run(ctx, agentID, baseDate)
	if err != nil {
		s.logger.Error("scheduler: daily routine failed", "agent_id", agentID, "error", err)
		s.writeRunLog(agentID, baseDate, map[string]any{
			"agent_id":  agentID,
			"base_date": baseDate.Format("2006-01-02"),
			"error":     map[string]string{"type": fmt.Sprintf("%T", err), "message": err.Error()},
		})
		return
	}
	s.writeRunLog(agentID, baseDate, result)
}

// writeRunLog persists the per-agent JSON run file at
// apps/worker/logs/<agent_id>/<target_date>.json, per §6's persisted state
// layout, where target_date is the daily routine's target date, two days
// before baseDate. A failure to write is logged but never propagated — the run
// itself already completed (or failed) by the time this is called.
func (s *Scheduler) writeRunLog(agentID int64, baseDate time.Time, payload any) {
	dir := filepath.Join(s.opts.LogDir, fmt.Sprintf("%d", agentID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Error("scheduler: creating run log dir", "agent_id", agentID, "error", err)
		return
	}
	targetDate := baseDate.AddDate(0, 0, -2)
	path := filepath.Join(dir, targetDate.Format("2006-01-02")+".json")
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		s.logger.Error("scheduler: marshaling run log", "agent_id", agentID, "error", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Error("scheduler: writing run log", "agent_id", agentID, "path", path, "error", err)
	}
}

// RunPostingOnce drains due posts for every active agent, in sequence. A
// per-agent failure is caught and logged; it never aborts the remaining
// agents (mirrors RunDailyOnce's per-agent isolation).
func (s *Scheduler) RunPostingOnce(ctx context.Context) {
	now := time.Now().In(s.opts.TZ)
	agents, err := s.store.ListRunnableAgents(ctx)
	if err != nil {
		s.logger.Error("scheduler: listing runnable agents", "error", err)
		return
	}

	for _, a := range agents {
		s.runPostingForAgent(ctx, a.ID, now)
	}
}

func (s *Scheduler) runPostingForAgent(ctx context.Context, agentID int64, now time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("scheduler: posting worker panicked", "agent_id", agentID, "panic", rec)
		}
	}()

	outcomes, err := s.posting.RunOnce(ctx, agentID, now)
	if err != nil {
		s.logger.Error("scheduler: posting worker failed", "agent_id", agentID, "error", err)
		return
	}
	if len(outcomes) > 0 {
		s.logger.Info("scheduler: posting batch complete", "agent_id", agentID, "posts", len(outcomes))
	}
}
