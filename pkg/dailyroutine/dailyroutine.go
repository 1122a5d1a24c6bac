// Package dailyroutine implements the per-agent daily pipeline (C7): the
// observe → research → fetch/summarize → plan → reconcile sequence from
// spec §4.7, plus the content-mix planner from §4.8.
package dailyroutine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wisbric/postflow/internal/audit"
	"github.com/wisbric/postflow/pkg/adapters"
	"github.com/wisbric/postflow/pkg/domain"
	"github.com/wisbric/postflow/pkg/guard"
	"github.com/wisbric/postflow/pkg/ledger"
	"github.com/wisbric/postflow/pkg/ratelimit"
	"github.com/wisbric/postflow/pkg/searchlimit"
	"github.com/wisbric/postflow/pkg/toggles"
)

const sourceDailyRoutine = "daily_routine"

// Store is the slice of pkg/store the routine needs, kept as an interface
// so the package has no import-time dependency on pgx.
type Store interface {
	GetAgent(ctx context.Context, id int64) (domain.Agent, error)
	GetCostLog(ctx context.Context, agentID int64, date time.Time) (domain.CostLog, error)
	AddSpendDirect(ctx context.Context, agentID int64, date time.Time, xDelta, llmDelta float64) error
	CountEngagementActions(ctx context.Context, agentID int64, dayStart, dayEnd time.Time) (int, error)
	CountSearches(ctx context.Context, agentID int64, date time.Time, source domain.SearchSource) (int, error)
	CountFetches(ctx context.Context, agentID int64, date time.Time) (int, error)

	CreatePost(ctx context.Context, p domain.Post) (int64, error)
	ExistsByContentHash(ctx context.Context, agentID int64, hash string, bucketDate time.Time) (bool, error)
	UpsertPostByExternalID(ctx context.Context, p domain.Post) (int64, error)
	HasConfirmedMetrics(ctx context.Context, postID int64) (bool, error)
	InsertPostMetrics(ctx context.Context, m domain.PostMetrics) error

	RecordSearchLog(ctx context.Context, l domain.SearchLog) (int64, error)
	RecordFetchLog(ctx context.Context, l domain.FetchLog) (int64, error)
	SaveTargetPostCandidate(ctx context.Context, c domain.TargetPostCandidate) (int64, error)
	NextUnusedTargetPostCandidate(ctx context.Context, agentID int64, date time.Time) (domain.TargetPostCandidate, error)

	GetDailyPDCA(ctx context.Context, agentID int64, date time.Time) (domain.DailyPDCA, error)
	UpsertDailyPDCA(ctx context.Context, p domain.DailyPDCA) error

	GetAccountKnowledge(ctx context.Context, accountID int64) (domain.AccountKnowledge, error)
	UpdateHeartbeat(ctx context.Context, id int64, now time.Time) error
}

// Clients bundles the adapter set the routine dispatches to (§9 adapter
// polymorphism: fake or real, selected once at startup).
type Clients struct {
	Platform   adapters.Platform
	XSearch    adapters.Search
	WebSearch  adapters.Search
	Fetcher    adapters.Fetcher
	Summarizer adapters.Summarizer
	Targets    adapters.TargetPostSource
}

// Costs holds the env-tunable reservation amounts from §6.
type Costs struct {
	PlanLLM           float64
	XSearch           float64
	WebSearch         float64
	WebFetchLLM       float64
	WebSummarizeLLM   float64
	TargetPostFetch   float64
	ObservationX      float64
	ObservationLLM    float64
}

// Options carries the remaining env-tunable knobs from §6.
type Options struct {
	SearchTopK         int
	SearchSnippetLimit int
	ThreadRatio        float64
	ReplyRatio         float64
	QuoteRatio         float64
	AllowURLForValidation bool
	WorkerTZ           *time.Location
	PostHour           int
	PostMinute         int
	UseGeminiWebSearch bool
	UseGeminiSummarize bool
}

// AuditLogger is the slice of internal/audit.Writer that Runner needs.
type AuditLogger interface {
	Log(ctx context.Context, e audit.Entry) (int64, error)
}

// Runner composes the collaborators needed to execute one agent-day.
type Runner struct {
	store   Store
	guard   *guard.Guard
	clients Clients
	costs   Costs
	opts    Options
	toggles *toggles.Resolver
	audit   AuditLogger
}

// New builds a Runner.
func New(store Store, g *guard.Guard, clients Clients, costs Costs, opts Options, tg *toggles.Resolver, auditWriter AuditLogger) *Runner {
	return &Runner{store: store, guard: g, clients: clients, costs: costs, opts: opts, toggles: tg, audit: auditWriter}
}

// Result is the outcome of one run_daily_routine invocation, as logged to
// the per-agent JSON run file described in §6.
type Result struct {
	AgentID                 int64          `json:"agent_id"`
	BaseDate                string         `json:"base_date"`
	TargetDate              string         `json:"target_date"`
	Status                  string         `json:"status"`
	Reason                  string         `json:"reason,omitempty"`
	ConfirmedMetricsCreated int            `json:"confirmed_metrics_created"`
	PlannedPosts            int            `json:"planned_posts"`
	Cost                    CostSummary    `json:"cost"`
}

// CostSummary is the committed-spend block of the run result.
type CostSummary struct {
	XAPICost float64 `json:"x_api_cost"`
	LLMCost  float64 `json:"llm_cost"`
	Total    float64 `json:"total"`
}

func skip(agentID int64, baseDate, targetDate time.Time, reason string) Result {
	return Result{
		AgentID:    agentID,
		BaseDate:   baseDate.Format("2006-01-02"),
		TargetDate: targetDate.Format("2006-01-02"),
		Status:     "skip",
		Reason:     reason,
	}
}

// Run executes the full pipeline for one (agent, base_date), per §4.7.
// target_date = base_date - 2 days (platform confirmed-metrics availability).
func (r *Runner) Run(ctx context.Context, agentID int64, baseDate time.Time) (Result, error) {
	now := time.Now().UTC()
	targetDate := baseDate.AddDate(0, 0, -2)

	// Step 1: guard gate.
	runnable, agent, err := r.guard.IsAgentRunnable(ctx, agentID, now)
	if err != nil {
		return Result{}, err
	}
	if !runnable {
		reason := "agent_stopped"
		if agent.Status != domain.AgentStopped {
			reason = fmt.Sprintf("agent_status_%s", agent.Status)
		}
		r.auditSkip(ctx, agentID, now, "execution_skip", reason)
		return skip(agentID, baseDate, targetDate, reason), nil
	}

	defer func() { _ = r.store.UpdateHeartbeat(ctx, agentID, now) }()

	limits := ledger.Limits{Daily: agent.DailyBudget, X: agent.SplitX, LLM: agent.SplitLLM}
	led := ledger.New(r.store, agentID, targetDate, limits)

	// Step 2: pre-flight reservation.
	if err := led.Reserve(ctx, r.costs.ObservationX, r.costs.ObservationLLM); err != nil {
		return r.pdcaSkip(ctx, agentID, targetDate, baseDate, "budget_exceeded")
	}

	// Step 3: rate-limit gate on reply, requested=1.
	rl := ratelimit.New(r.store, r.toggles.ReplyQuoteDailyMax(agent.FeatureToggles))
	limited, err := rl.IsLimited(ctx, agentID, targetDate, 1, 0)
	if err != nil {
		return Result{}, err
	}
	if limited {
		return r.pdcaSkip(ctx, agentID, targetDate, baseDate, "rate_limited")
	}

	// Step 4: external posts ingest.
	confirmedCreated, err := r.ingestPosts(ctx, agentID, targetDate)
	if err != nil {
		if err == adapters.ErrMissingUserID {
			return r.pdcaSkip(ctx, agentID, targetDate, baseDate, "missing_user_id")
		}
		r.auditFailed(ctx, agentID, now, "posts_ingest", err)
	}

	// Step 5: target-post harvest (best-effort, never fatal to the pipeline).
	r.harvestTargets(ctx, led, agentID, targetDate)

	// Step 6-7: research + fetch/summarize.
	searchSrcLogs, searchSkips := r.research(ctx, led, agentID, targetDate, agent)

	// Step 8: plan next-day posts.
	plan := NewPlanner(r.opts)
	n := r.toggles.PostsPerDay(agent.FeatureToggles)
	planned, err := plan.Plan(ctx, led, r.store, agentID, agent.AccountID, targetDate, n, searchSrcLogs, r.costs.PlanLLM)
	if err != nil {
		r.auditFailed(ctx, agentID, now, "planning", err)
	}

	// Step 9: ledger commit.
	if err := led.Commit(ctx, r.store.AddSpendDirect); err != nil {
		return Result{}, err
	}

	// Step 11 (step 10 usage-reconcile is invoked by the caller, post-commit,
	// see pkg/usage): persist PDCA.
	status, _ := led.Status(ctx)
	pdca, _ := r.store.GetDailyPDCA(ctx, agentID, targetDate)
	if pdca.AnalyticsSummary == nil {
		pdca.AnalyticsSummary = map[string]any{}
	}
	pdca.AgentID = agentID
	pdca.Date = targetDate
	pdca.AnalyticsSummary["confirmed_metrics_created"] = confirmedCreated
	pdca.AnalyticsSummary["planned_posts"] = planned
	if len(searchSkips) > 0 {
		pdca.AnalyticsSummary["search"] = map[string]any{"skipped": searchSkips}
	}
	if err := r.store.UpsertDailyPDCA(ctx, pdca); err != nil {
		return Result{}, err
	}

	r.auditSuccess(ctx, agentID, now, "execution_complete")

	return Result{
		AgentID:                 agentID,
		BaseDate:                baseDate.Format("2006-01-02"),
		TargetDate:              targetDate.Format("2006-01-02"),
		Status:                  "success",
		ConfirmedMetricsCreated: confirmedCreated,
		PlannedPosts:            planned,
		Cost: CostSummary{
			XAPICost: status.SpentX,
			LLMCost:  status.SpentLLM,
			Total:    status.SpentTotal,
		},
	}, nil
}

func (r *Runner) pdcaSkip(ctx context.Context, agentID int64, targetDate, baseDate time.Time, reason string) (Result, error) {
	pdca, _ := r.store.GetDailyPDCA(ctx, agentID, targetDate)
	pdca.AgentID = agentID
	pdca.Date = targetDate
	if pdca.Analysis == nil {
		pdca.Analysis = map[string]any{}
	}
	pdca.Analysis["reason"] = reason
	if err := r.store.UpsertDailyPDCA(ctx, pdca); err != nil {
		return Result{}, err
	}
	r.auditSkip(ctx, agentID, time.Now().UTC(), "execution_skip", reason)
	return skip(agentID, baseDate, targetDate, reason), nil
}

func (r *Runner) auditSkip(ctx context.Context, agentID int64, now time.Time, eventType, reason string) {
	_, _ = r.audit.Log(ctx, audit.Entry{AgentID: agentID, Date: now, Source: sourceDailyRoutine, EventType: eventType, Status: audit.StatusSkipped, Reason: reason})
}

func (r *Runner) auditSuccess(ctx context.Context, agentID int64, now time.Time, eventType string) {
	_, _ = r.audit.Log(ctx, audit.Entry{AgentID: agentID, Date: now, Source: sourceDailyRoutine, EventType: eventType, Status: audit.StatusSuccess})
}

func (r *Runner) auditFailed(ctx context.Context, agentID int64, now time.Time, eventType string, err error) {
	payload, _ := json.Marshal(map[string]string{"type": fmt.Sprintf("%T", err), "message": err.Error()})
	_, _ = r.audit.Log(ctx, audit.Entry{AgentID: agentID, Date: now, Source: sourceDailyRoutine, EventType: eventType, Status: audit.StatusFailed, Payload: payload})
}

// ingestPosts implements step 4: upsert-by-external-id, then an idempotent
// confirmed-metrics insertion per post — re-running the routine for the same
// target_date must never duplicate a confirmed PostMetrics row.
func (r *Runner) ingestPosts(ctx context.Context, agentID int64, targetDate time.Time) (int, error) {
	if _, err := r.clients.Platform.ResolveUserID(ctx, agentID); err != nil {
		return 0, err
	}

	posts, err := r.clients.Platform.ListPosts(ctx, agentID, targetDate)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, p := range posts {
		postedAt := p.PostedAt
		postID, err := r.store.UpsertPostByExternalID(ctx, domain.Post{
			AgentID:           agentID,
			ExternalID:        p.ExternalID,
			Content:           p.Content,
			Type:              domain.PostTweet,
			PostedAt:          &postedAt,
			ContentHash:       ContentHash(p.Content),
			ContentBucketDate: targetDate,
		})
		if err != nil {
			return created, err
		}

		snap, err := r.clients.Platform.GetPostMetrics(ctx, agentID, p.ExternalID)
		if err != nil {
			continue
		}
		has, err := r.store.HasConfirmedMetrics(ctx, postID)
		if err != nil {
			return created, err
		}
		if has {
			continue
		}
		if err := r.store.InsertPostMetrics(ctx, domain.PostMetrics{
			PostID:         postID,
			CollectionType: domain.MetricsConfirmed,
			CollectedAt:    time.Now().UTC(),
			Impressions:    snap.Impressions,
			Likes:          snap.Likes,
			Replies:        snap.Replies,
			Retweets:       snap.Retweets,
			Clicks:         snap.Clicks,
			Engagements:    snap.Engagements,
		}); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// searchSkip records one skipped search source for the run's PDCA
// analytics_summary["search"]["skipped"] list.
type searchSkip struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// research implements steps 6-7: per-source search gated by SearchLimiter,
// then fetch & summarize gated by FetchLimiter, recording every attempt.
// Returns the accumulated search hits (snippets replaced by summaries where
// one was made) as the planner's facts,
// plus any sources skipped for rate-limit/budget/failure reasons.
func (r *Runner) research(ctx context.Context, led *ledger.Ledger, agentID int64, targetDate time.Time, agent domain.Agent) ([]adapters.SearchResult, []searchSkip) {
	var hits []adapters.SearchResult
	var hitSources []domain.SearchSource
	var skips []searchSkip

	xLimiter := searchlimit.NewSearchLimiter(r.store, r.toggles.XSearchMax(agent.FeatureToggles), r.toggles.WebSearchMax(agent.FeatureToggles))
	fetchLimiter := searchlimit.NewFetchLimiter(r.store, r.toggles.WebFetchMax(agent.FeatureToggles))

	sources := []struct {
		source domain.SearchSource
		client adapters.Search
		cost   float64
	}{
		{domain.SearchSourceX, r.clients.XSearch, r.costs.XSearch},
		{domain.SearchSourceWeb, r.clients.WebSearch, r.costs.WebSearch},
	}

	for _, src := range sources {
		if src.client == nil {
			continue
		}
		limited, err := xLimiter.IsLimited(ctx, agentID, targetDate, src.source, 1)
		if err != nil {
			continue
		}
		if limited {
			skips = append(skips, searchSkip{Source: string(src.source), Reason: "search_rate_limited"})
			continue
		}
		if err := led.Reserve(ctx, src.cost, 0); err != nil {
			skips = append(skips, searchSkip{Source: string(src.source), Reason: "search_budget_exceeded"})
			continue
		}
		results, err := src.client.Search(ctx, searchQuery(agent), r.opts.SearchTopK)
		status := domain.SearchLog{AgentID: agentID, Date: targetDate, Source: src.source, Status: "succeeded"}
		if err != nil {
			status.Status = "failed"
			skips = append(skips, searchSkip{Source: string(src.source), Reason: "gemini_search_failed"})
		} else {
			for range results {
				hitSources = append(hitSources, src.source)
			}
			hits = append(hits, results...)
		}
		_, _ = r.store.RecordSearchLog(ctx, status)
	}

	for i, hit := range hits {
		if i >= r.opts.SearchSnippetLimit {
			break
		}
		// Step 7 fetch-worthiness only evaluates web-search records; an
		// X-search hit never triggers a page fetch.
		if hitSources[i] != domain.SearchSourceWeb {
			continue
		}
		if r.clients.Fetcher == nil || !demandsPageFetch(hit.Snippet) {
			continue
		}
		limited, err := fetchLimiter.IsLimited(ctx, agentID, targetDate, 1)
		if err != nil || limited {
			continue
		}
		if err := led.Reserve(ctx, 0, r.costs.WebFetchLLM); err != nil {
			continue
		}

		res, err := r.clients.Fetcher.Fetch(ctx, hit.URL)
		logEntry := domain.FetchLog{AgentID: agentID, Date: targetDate, URL: hit.URL}
		if err != nil || res.Status != "succeeded" {
			logEntry.Status = domain.FetchFailed
			if res.FailureReason != "" {
				logEntry.Payload, _ = json.Marshal(map[string]string{"failure_reason": res.FailureReason})
			}
			_, _ = r.store.RecordFetchLog(ctx, logEntry)
			continue
		}
		logEntry.Status = domain.FetchSucceeded
		logEntry.Payload, _ = json.Marshal(map[string]any{"http_status": res.HTTPStatus, "content_type": res.ContentType, "content_length": res.ContentLength})
		_, _ = r.store.RecordFetchLog(ctx, logEntry)

		if r.clients.Summarizer != nil {
			if err := led.Reserve(ctx, 0, r.costs.WebSummarizeLLM); err == nil {
				if summary, err := r.clients.Summarizer.Summarize(ctx, res.ExtractedText); err == nil {
					hits[i].Snippet = summary
				}
			}
		}
	}

	return hits, skips
}

// demandsPageFetch applies the §4.7 step-7 heuristic: a small Japanese
// keyword set, or an ambiguous (short / ellipsised / "詳細") snippet.
var pageFetchKeywords = []string{"方法", "手順", "比較", "料金", "変更"}

func demandsPageFetch(snippet string) bool {
	for _, kw := range pageFetchKeywords {
		if strings.Contains(snippet, kw) {
			return true
		}
	}
	if len([]rune(snippet)) < 60 {
		return true
	}
	if strings.Contains(snippet, "...") || strings.Contains(snippet, "詳細") {
		return true
	}
	return false
}

func searchQuery(agent domain.Agent) string {
	return fmt.Sprintf("agent-%d", agent.ID)
}

func (r *Runner) harvestTargets(ctx context.Context, led *ledger.Ledger, agentID int64, targetDate time.Time) {
	if err := led.Reserve(ctx, r.costs.TargetPostFetch, 0); err != nil {
		return
	}
	if r.clients.Targets == nil {
		return
	}
	candidates, err := r.clients.Targets.ListCandidates(ctx, "", targetDate)
	if err != nil {
		return
	}
	for _, c := range candidates {
		_, _ = r.store.SaveTargetPostCandidate(ctx, domain.TargetPostCandidate{
			AgentID:       agentID,
			Date:          targetDate,
			URL:           c.URL,
			Text:          c.Text,
			PostCreatedAt: c.PostCreatedAt,
		})
	}
}
