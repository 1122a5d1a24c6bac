// Package posting implements the Post Claim & Publish Worker (C8): claims
// due posts under SKIP LOCKED, runs each through the gated state machine
// from spec §4.9, and dispatches to the platform poster adapter.
package posting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wisbric/postflow/internal/audit"
	"github.com/wisbric/postflow/pkg/adapters"
	"github.com/wisbric/postflow/pkg/dailyroutine"
	"github.com/wisbric/postflow/pkg/domain"
	"github.com/wisbric/postflow/pkg/guard"
	"github.com/wisbric/postflow/pkg/ledger"
	"github.com/wisbric/postflow/pkg/ratelimit"
)

const (
	sourcePostingJobs     = "posting_jobs"
	sourceOAuth           = "oauth"
	eventPosting          = "posting"
	autoStopPostingReason = "auto_anomaly_posting_failures"
	autoStopOAuthReason   = "auto_anomaly_oauth_refresh_failures"
	defaultBatchSize      = 10
)

// Store is the slice of pkg/store the worker needs. WithClaimedPosts'
// signature is spelled out to match pkg/store.Store's exactly (an unnamed
// func type), so *store.Store satisfies this interface by duck typing.
type Store interface {
	WithClaimedPosts(ctx context.Context, agentID int64, now time.Time, limit int, fn func(ctx context.Context, posts []domain.Post, markPosted func(ctx context.Context, postID int64, externalID string, postedAt time.Time) error) error) error
	ExistsByContentHash(ctx context.Context, agentID int64, hash string, bucketDate time.Time) (bool, error)
	GetCostLog(ctx context.Context, agentID int64, date time.Time) (domain.CostLog, error)
	AddSpendDirect(ctx context.Context, agentID int64, date time.Time, xDelta, llmDelta float64) error
	CountEngagementActions(ctx context.Context, agentID int64, dayStart, dayEnd time.Time) (int, error)
	RecordEngagementAction(ctx context.Context, a domain.EngagementAction) (int64, error)
}

// DedupeCache is the optional Redis fast-path in front of
// Store.ExistsByContentHash (§4.9 step 3); a cache miss or nil Cache always
// falls through to the database check.
type DedupeCache interface {
	Seen(ctx context.Context, agentID int64, hash string) (bool, error)
	MarkSeen(ctx context.Context, agentID int64, hash string, ttl time.Duration)
}

// AuditLogger is the slice of internal/audit.Writer that Worker needs.
type AuditLogger interface {
	Log(ctx context.Context, e audit.Entry) (int64, error)
	ConsecutiveFailures(ctx context.Context, agentID int64, source, eventType string, n int) (bool, error)
}

// OAuthRefresher matches *xoauth.Manager's token-refresh entry point.
type OAuthRefresher interface {
	EnsureFresh(ctx context.Context, accountID int64, now time.Time) (string, error)
}

// Worker implements the per-agent claim-and-publish batch.
type Worker struct {
	store    Store
	guard    *guard.Guard
	oauth    OAuthRefresher
	poster   adapters.Poster
	audit    AuditLogger
	cache    DedupeCache
	batch    int
	replyCap int
}

// New builds a Worker.
func New(store Store, g *guard.Guard, oauthMgr OAuthRefresher, poster adapters.Poster, auditWriter AuditLogger, cache DedupeCache, batchSize, replyCap int) *Worker {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Worker{store: store, guard: g, oauth: oauthMgr, poster: poster, audit: auditWriter, cache: cache, batch: batchSize, replyCap: replyCap}
}

// Outcome reports the disposition of one claimed post.
type Outcome struct {
	PostID int64
	Status string // published, skipped, failed
	Reason string
}

// RunOnce processes up to batch size due posts for one agent.
func (w *Worker) RunOnce(ctx context.Context, agentID int64, now time.Time) ([]Outcome, error) {
	runnable, agent, err := w.guard.IsAgentRunnable(ctx, agentID, now)
	if err != nil {
		return nil, err
	}
	if !runnable {
		reason := "agent_stopped"
		if agent.Status != domain.AgentStopped {
			reason = fmt.Sprintf("agent_status_%s", agent.Status)
		}
		w.auditLog(ctx, agentID, now, audit.StatusSkipped, reason, nil)
		return nil, nil
	}

	limits := ledger.Limits{Daily: agent.DailyBudget, X: agent.SplitX, LLM: agent.SplitLLM}
	led := ledger.New(w.store, agentID, now, limits)
	rl := ratelimit.New(w.store, w.replyCap)

	var outcomes []Outcome
	attempts := 0

	err = w.store.WithClaimedPosts(ctx, agentID, now, w.batch, func(ctx context.Context, posts []domain.Post, markPosted func(ctx context.Context, postID int64, externalID string, postedAt time.Time) error) error {
		for _, p := range posts {
			out := w.processOne(ctx, markPosted, led, rl, agentID, agent, p, now, &attempts)
			outcomes = append(outcomes, out)
		}
		return nil
	})
	if err != nil {
		return outcomes, err
	}

	if err := led.Commit(ctx, w.store.AddSpendDirect); err != nil {
		return outcomes, err
	}

	return outcomes, nil
}

func (w *Worker) processOne(ctx context.Context, markPosted func(ctx context.Context, postID int64, externalID string, postedAt time.Time) error, led *ledger.Ledger, rl *ratelimit.Limiter, agentID int64, agent domain.Agent, p domain.Post, now time.Time, attempts *int) Outcome {
	// Gate 2: engagement rate (reply/quote only). Gate 1 (guard) was already
	// checked for the whole batch in RunOnce.
	if p.Type == domain.PostReply || p.Type == domain.PostQuoteRT {
		limited, err := rl.IsLimited(ctx, agentID, now, 1, *attempts)
		if err != nil {
			return w.fail(ctx, agentID, p, now, err)
		}
		if limited {
			return w.skip(ctx, agentID, p, now, "rate_limited")
		}
	}

	// Gate 3: content hash dedupe, Redis fast path in front of the DB check.
	hash := p.ContentHash
	if hash == "" {
		hash = contentHash(p)
	}
	if seen, ok := w.dedupeSeen(ctx, agentID, hash); ok && seen {
		return w.skip(ctx, agentID, p, now, "duplicate_content")
	}
	exists, err := w.store.ExistsByContentHash(ctx, agentID, hash, p.ContentBucketDate)
	if err != nil {
		return w.fail(ctx, agentID, p, now, err)
	}
	if exists {
		return w.skip(ctx, agentID, p, now, "duplicate_content")
	}

	// Gate 4: budget.
	if err := led.Reserve(ctx, 1.00, 0); err != nil {
		return w.skip(ctx, agentID, p, now, "budget_exceeded")
	}

	// Gate 5: target URL validity for reply/quote.
	if p.Type == domain.PostReply || p.Type == domain.PostQuoteRT {
		if !isValidStatusURL(p.TargetPostURL) {
			return w.skip(ctx, agentID, p, now, "invalid_target_url")
		}
	}

	accessToken, err := w.oauth.EnsureFresh(ctx, agent.AccountID, now)
	if err != nil {
		w.recordOAuthFailure(ctx, agentID, now, err)
		return w.fail(ctx, agentID, p, now, err)
	}

	externalID, err := w.publish(ctx, accessToken, p)
	if err != nil {
		return w.failAndMaybeAutoStop(ctx, agentID, p, now, err)
	}

	if err := markPosted(ctx, p.ID, externalID, now); err != nil {
		return w.fail(ctx, agentID, p, now, err)
	}
	if p.Type == domain.PostReply || p.Type == domain.PostQuoteRT {
		// A recorded action is already counted by the limiter's database
		// read; only one that failed to record is carried in attempts.
		if _, err := w.store.RecordEngagementAction(ctx, domain.EngagementAction{
			AgentID:       agentID,
			ActionType:    engagementType(p.Type),
			TargetPostURL: p.TargetPostURL,
			ExecutedAt:    now,
		}); err != nil {
			*attempts++
		}
	}
	w.markSeen(ctx, agentID, hash)
	w.auditLog(ctx, agentID, now, audit.StatusSuccess, "", nil)

	return Outcome{PostID: p.ID, Status: "published"}
}

func (w *Worker) publish(ctx context.Context, accessToken string, p domain.Post) (string, error) {
	switch p.Type {
	case domain.PostThread:
		return w.poster.PostThread(ctx, accessToken, p.ThreadParts)
	case domain.PostReply:
		return w.poster.PostReply(ctx, accessToken, p.TargetPostURL, p.Content)
	case domain.PostQuoteRT:
		return w.poster.PostQuoteRT(ctx, accessToken, p.TargetPostURL, p.Content)
	default:
		return w.poster.PostText(ctx, accessToken, p.Content)
	}
}

func engagementType(t domain.PostType) domain.EngagementActionType {
	if t == domain.PostQuoteRT {
		return domain.ActionQuoteRT
	}
	return domain.ActionReply
}

func (w *Worker) dedupeSeen(ctx context.Context, agentID int64, hash string) (seen bool, ok bool) {
	if w.cache == nil {
		return false, false
	}
	seen, err := w.cache.Seen(ctx, agentID, hash)
	if err != nil {
		return false, false
	}
	return seen, true
}

func (w *Worker) markSeen(ctx context.Context, agentID int64, hash string) {
	if w.cache == nil {
		return
	}
	w.cache.MarkSeen(ctx, agentID, hash, 24*time.Hour)
}

func (w *Worker) skip(ctx context.Context, agentID int64, p domain.Post, now time.Time, reason string) Outcome {
	w.auditLog(ctx, agentID, now, audit.StatusSkipped, reason, nil)
	return Outcome{PostID: p.ID, Status: "skipped", Reason: reason}
}

func (w *Worker) fail(ctx context.Context, agentID int64, p domain.Post, now time.Time, err error) Outcome {
	payload, _ := json.Marshal(map[string]string{"type": fmt.Sprintf("%T", err), "message": err.Error()})
	w.auditLog(ctx, agentID, now, audit.StatusFailed, "", payload)
	return Outcome{PostID: p.ID, Status: "failed", Reason: err.Error()}
}

// failAndMaybeAutoStop records the failure, then checks the last 3 posting
// audits for this agent; if all three are failed, arms auto-stop.
func (w *Worker) failAndMaybeAutoStop(ctx context.Context, agentID int64, p domain.Post, now time.Time, err error) Outcome {
	out := w.fail(ctx, agentID, p, now, err)
	triggered, checkErr := guard.ShouldAutoStop(ctx, auditCounter{w.audit}, agentID, sourcePostingJobs, eventPosting)
	if checkErr == nil && triggered {
		_ = w.guard.MaybeAutoStop(ctx, agentID, now, autoStopPostingReason, sourcePostingJobs, map[string]any{"event_type": eventPosting})
	}
	return out
}

func (w *Worker) recordOAuthFailure(ctx context.Context, agentID int64, now time.Time, err error) {
	payload, _ := json.Marshal(map[string]string{"message": err.Error()})
	_, _ = w.audit.Log(ctx, audit.Entry{AgentID: agentID, Date: now, Source: sourceOAuth, EventType: "refresh", Status: audit.StatusFailed, Payload: payload})
	triggered, checkErr := guard.ShouldAutoStop(ctx, auditCounter{w.audit}, agentID, sourceOAuth, "refresh")
	if checkErr == nil && triggered {
		_ = w.guard.MaybeAutoStop(ctx, agentID, now, autoStopOAuthReason, sourceOAuth, map[string]any{"event_type": "refresh"})
	}
}

func (w *Worker) auditLog(ctx context.Context, agentID int64, now time.Time, status, reason string, payload json.RawMessage) {
	_, _ = w.audit.Log(ctx, audit.Entry{AgentID: agentID, Date: now, Source: sourcePostingJobs, EventType: eventPosting, Status: status, Reason: reason, Payload: payload})
}

// auditCounter adapts AuditLogger to guard.ConsecutiveFailureCounter.
type auditCounter struct{ w AuditLogger }

func (a auditCounter) ConsecutiveFailures(ctx context.Context, agentID int64, source, eventType string, n int) (bool, error) {
	return a.w.ConsecutiveFailures(ctx, agentID, source, eventType, n)
}

// contentHash is the fallback for a claimed post that somehow arrives with
// no ContentHash set (every creation path in pkg/dailyroutine sets one, so
// this only guards against legacy/manually-inserted rows). Matches
// dailyroutine's own normalize-then-SHA-256 algorithm so a fallback hash and
// a planner-computed hash for the same text always collide on dedupe.
func contentHash(p domain.Post) string {
	text := p.Content
	if len(p.ThreadParts) > 0 {
		text = strings.Join(p.ThreadParts, " ")
	}
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return dailyroutine.ContentHash(normalized)
}
