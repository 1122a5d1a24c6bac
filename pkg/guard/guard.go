// Package guard implements the stop/resume circuit breaker (C5):
// runnability checks, audit emission, and idempotent auto-stop.
package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wisbric/postflow/internal/audit"
	"github.com/wisbric/postflow/pkg/domain"
	"github.com/wisbric/postflow/pkg/slack"
)

// AgentStore is the read/write slice of pkg/store the guard needs.
type AgentStore interface {
	GetAgent(ctx context.Context, id int64) (domain.Agent, error)
	StopAgent(ctx context.Context, id int64, reason string, until *time.Time, now time.Time) error
}

// PDCAAnnotator lets MaybeAutoStop record {auto_stop: {reason, source}}
// into today's analytics summary, per §4.5.
type PDCAAnnotator interface {
	GetDailyPDCA(ctx context.Context, agentID int64, date time.Time) (domain.DailyPDCA, error)
	UpsertDailyPDCA(ctx context.Context, p domain.DailyPDCA) error
}

// ConsecutiveFailureCounter matches internal/audit.Writer.ConsecutiveFailures.
type ConsecutiveFailureCounter interface {
	ConsecutiveFailures(ctx context.Context, agentID int64, source, eventType string, n int) (bool, error)
}

// AlertNotifier pages ops when an agent is auto-stopped. Guard treats it as
// best-effort: a notifier error never fails MaybeAutoStop and is discarded.
type AlertNotifier interface {
	PostAlert(ctx context.Context, alert slack.AlertInfo) (channelID, ts string, err error)
}

// AuditLogger is the slice of internal/audit.Writer that Guard needs.
type AuditLogger interface {
	Log(ctx context.Context, e audit.Entry) (int64, error)
}

const autoStopConsecutiveFailures = 3

// Guard composes the agent store, audit writer, and PDCA store behind the
// C5 operations.
type Guard struct {
	agents   AgentStore
	pdca     PDCAAnnotator
	audit    AuditLogger
	notifier AlertNotifier
}

// New builds a Guard.
func New(agents AgentStore, pdca PDCAAnnotator, auditWriter AuditLogger) *Guard {
	return &Guard{agents: agents, pdca: pdca, audit: auditWriter}
}

// SetNotifier wires an optional ops-alerting sink. Auto-stop works the same
// with or without one; a nil notifier (the default) just skips the page.
func (g *Guard) SetNotifier(n AlertNotifier) {
	g.notifier = n
}

// IsAgentRunnable implements §4.5's predicate directly against the
// database, never trusting a caller's possibly-stale in-memory Agent.
func (g *Guard) IsAgentRunnable(ctx context.Context, agentID int64, now time.Time) (bool, domain.Agent, error) {
	a, err := g.agents.GetAgent(ctx, agentID)
	if err != nil {
		return false, domain.Agent{}, err
	}
	return a.IsRunnable(now), a, nil
}

// RecordAudit appends an audit row; a thin pass-through kept on Guard so
// callers have one collaborator for all C5 operations.
func (g *Guard) RecordAudit(ctx context.Context, e audit.Entry) (int64, error) {
	return g.audit.Log(ctx, e)
}

// MaybeAutoStop is idempotent: if the agent is already stopped with this
// exact reason, it no-ops (no duplicate audit row), per the
// auto-stop-monotonicity invariant (§8).
func (g *Guard) MaybeAutoStop(ctx context.Context, agentID int64, now time.Time, reason, source string, payload map[string]any) error {
	a, err := g.agents.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}
	if a.Status == domain.AgentStopped && a.StopReason == reason {
		return nil
	}

	if err := g.agents.StopAgent(ctx, agentID, reason, nil, now); err != nil {
		return err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := g.audit.Log(ctx, audit.Entry{
		AgentID:   agentID,
		Date:      now,
		Source:    source,
		EventType: "auto_stop",
		Status:    audit.StatusTriggered,
		Reason:    reason,
		Payload:   raw,
	}); err != nil {
		return err
	}

	if err := g.annotatePDCA(ctx, agentID, now, reason, source); err != nil {
		return err
	}

	g.pageAutoStop(ctx, agentID, a.AccountID, reason, source)
	return nil
}

// pageAutoStop fires the ops alert for an auto-stop. Best-effort: swallows
// its own error rather than letting a Slack outage fail the stop itself.
func (g *Guard) pageAutoStop(ctx context.Context, agentID, accountID int64, reason, source string) {
	if g.notifier == nil {
		return
	}
	_, _, _ = g.notifier.PostAlert(ctx, slack.AlertInfo{
		AlertID:     fmt.Sprintf("auto_stop:%d:%s", agentID, reason),
		Title:       "Agent auto-stopped",
		Severity:    "warning",
		Description: fmt.Sprintf("source=%s reason=%s", source, reason),
		AgentID:     agentID,
		AccountID:   accountID,
		Reason:      reason,
	})
}

func (g *Guard) annotatePDCA(ctx context.Context, agentID int64, now time.Time, reason, source string) error {
	p, err := g.pdca.GetDailyPDCA(ctx, agentID, now)
	if err != nil {
		return err
	}
	if p.AnalyticsSummary == nil {
		p.AnalyticsSummary = map[string]any{}
	}
	p.AnalyticsSummary["auto_stop"] = map[string]any{
		"reason": reason,
		"source": source,
	}
	return g.pdca.UpsertDailyPDCA(ctx, p)
}

// ShouldAutoStop applies the trigger policy from §4.5/§8: true when the
// newest N audit rows for a (source, eventType) are all failures. Fewer
// than N rows is not a trigger; a failure run longer than N still triggers.
func ShouldAutoStop(ctx context.Context, counter ConsecutiveFailureCounter, agentID int64, source, eventType string) (bool, error) {
	return counter.ConsecutiveFailures(ctx, agentID, source, eventType, autoStopConsecutiveFailures)
}
