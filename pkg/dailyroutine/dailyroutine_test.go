package dailyroutine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/wisbric/postflow/internal/audit"
	"github.com/wisbric/postflow/pkg/adapters"
	"github.com/wisbric/postflow/pkg/domain"
	"github.com/wisbric/postflow/pkg/guard"
	"github.com/wisbric/postflow/pkg/store"
	"github.com/wisbric/postflow/pkg/toggles"
)

// fakeDailyStore satisfies Store plus the narrow AgentStore/PDCAAnnotator
// slices guard.New needs, so one fake backs both collaborators.
type fakeDailyStore struct {
	agent           domain.Agent
	costLog         domain.CostLog
	engagementCount int
	searchCounts    map[domain.SearchSource]int
	fetchCount      int
	existsHashes    map[string]bool
	knowledge       domain.AccountKnowledge
	knowledgeErr    error
	pdca            domain.DailyPDCA
	heartbeats      []time.Time
	createdPosts    []domain.Post
}

func newFakeDailyStore(agent domain.Agent) *fakeDailyStore {
	return &fakeDailyStore{
		agent:        agent,
		searchCounts: map[domain.SearchSource]int{},
		existsHashes: map[string]bool{},
		knowledgeErr: store.ErrNotFound,
	}
}

func (f *fakeDailyStore) GetAgent(ctx context.Context, id int64) (domain.Agent, error) {
	return f.agent, nil
}

func (f *fakeDailyStore) StopAgent(ctx context.Context, id int64, reason string, until *time.Time, now time.Time) error {
	f.agent.Status = domain.AgentStopped
	f.agent.StopReason = reason
	return nil
}

func (f *fakeDailyStore) GetCostLog(ctx context.Context, agentID int64, date time.Time) (domain.CostLog, error) {
	return f.costLog, nil
}

func (f *fakeDailyStore) AddSpendDirect(ctx context.Context, agentID int64, date time.Time, xDelta, llmDelta float64) error {
	f.costLog.XAPICost += xDelta
	f.costLog.LLMCost += llmDelta
	f.costLog.Total += xDelta + llmDelta
	return nil
}

func (f *fakeDailyStore) CountEngagementActions(ctx context.Context, agentID int64, dayStart, dayEnd time.Time) (int, error) {
	return f.engagementCount, nil
}

func (f *fakeDailyStore) CountSearches(ctx context.Context, agentID int64, date time.Time, source domain.SearchSource) (int, error) {
	return f.searchCounts[source], nil
}

func (f *fakeDailyStore) CountFetches(ctx context.Context, agentID int64, date time.Time) (int, error) {
	return f.fetchCount, nil
}

func (f *fakeDailyStore) CreatePost(ctx context.Context, p domain.Post) (int64, error) {
	f.createdPosts = append(f.createdPosts, p)
	return int64(len(f.createdPosts)), nil
}

func (f *fakeDailyStore) ExistsByContentHash(ctx context.Context, agentID int64, hash string, bucketDate time.Time) (bool, error) {
	return f.existsHashes[hash], nil
}

func (f *fakeDailyStore) UpsertPostByExternalID(ctx context.Context, p domain.Post) (int64, error) {
	return 1, nil
}

func (f *fakeDailyStore) HasConfirmedMetrics(ctx context.Context, postID int64) (bool, error) {
	return false, nil
}

func (f *fakeDailyStore) InsertPostMetrics(ctx context.Context, m domain.PostMetrics) error {
	return nil
}

func (f *fakeDailyStore) RecordSearchLog(ctx context.Context, l domain.SearchLog) (int64, error) {
	return 1, nil
}

func (f *fakeDailyStore) RecordFetchLog(ctx context.Context, l domain.FetchLog) (int64, error) {
	return 1, nil
}

func (f *fakeDailyStore) SaveTargetPostCandidate(ctx context.Context, c domain.TargetPostCandidate) (int64, error) {
	return 1, nil
}

func (f *fakeDailyStore) NextUnusedTargetPostCandidate(ctx context.Context, agentID int64, date time.Time) (domain.TargetPostCandidate, error) {
	return domain.TargetPostCandidate{}, store.ErrNotFound
}

func (f *fakeDailyStore) GetDailyPDCA(ctx context.Context, agentID int64, date time.Time) (domain.DailyPDCA, error) {
	return f.pdca, nil
}

func (f *fakeDailyStore) UpsertDailyPDCA(ctx context.Context, p domain.DailyPDCA) error {
	f.pdca = p
	return nil
}

func (f *fakeDailyStore) GetAccountKnowledge(ctx context.Context, accountID int64) (domain.AccountKnowledge, error) {
	if f.knowledgeErr != nil {
		return domain.AccountKnowledge{}, f.knowledgeErr
	}
	return f.knowledge, nil
}

func (f *fakeDailyStore) UpdateHeartbeat(ctx context.Context, id int64, now time.Time) error {
	f.heartbeats = append(f.heartbeats, now)
	return nil
}

// fakeAuditLog records every entry it's given, in order.
type fakeAuditLog struct {
	entries []audit.Entry
}

func (f *fakeAuditLog) Log(ctx context.Context, e audit.Entry) (int64, error) {
	f.entries = append(f.entries, e)
	return int64(len(f.entries)), nil
}

func testOptions() Options {
	return Options{
		SearchTopK:         3,
		SearchSnippetLimit: 5,
		ThreadRatio:        0.2,
		ReplyRatio:         0.2,
		QuoteRatio:         0.2,
		WorkerTZ:           time.UTC,
		PostHour:           9,
		PostMinute:         0,
	}
}

func testToggles() *toggles.Resolver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return toggles.New(toggles.Defaults{
		PostsPerDay:        4,
		XSearchMax:         10,
		WebSearchMax:       10,
		WebFetchMax:        5,
		PostingPollSeconds: 30,
		ReplyQuoteDailyMax: 3,
	}, logger)
}

func testClients() Clients {
	return Clients{
		Platform:   adapters.NewFakePlatform(),
		XSearch:    &adapters.FakeSearch{Results: []adapters.SearchResult{{Title: "t", Snippet: "a complete long snippet with no keyword and no ellipsis at all here", URL: "https://example.com/a"}}},
		WebSearch:  &adapters.FakeSearch{Results: []adapters.SearchResult{{Title: "t", Snippet: "a complete long snippet with no keyword and no ellipsis at all here", URL: "https://example.com/b"}}},
		Fetcher:    &adapters.FakeFetcher{Result: adapters.FetchResult{Status: "succeeded"}},
		Summarizer: adapters.FakeSummarizer{},
		Targets:    &adapters.FakeTargetPostSource{},
	}
}

func testCosts() Costs {
	return Costs{
		PlanLLM:         0.5,
		XSearch:         0.1,
		WebSearch:       0.1,
		WebFetchLLM:     0.1,
		WebSummarizeLLM: 0.1,
		TargetPostFetch: 0.1,
		ObservationX:    0.2,
		ObservationLLM:  0.2,
	}
}

func newTestRunner(fs *fakeDailyStore, al *fakeAuditLog) *Runner {
	g := guard.New(fs, fs, al)
	return New(fs, g, testClients(), testCosts(), testOptions(), testToggles(), al)
}

func TestRunHappyPath(t *testing.T) {
	agent := domain.Agent{ID: 1, AccountID: 10, Status: domain.AgentActive, DailyBudget: 100, SplitX: 100, SplitLLM: 100}
	fs := newFakeDailyStore(agent)
	al := &fakeAuditLog{}
	r := newTestRunner(fs, al)

	baseDate := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	result, err := r.Run(context.Background(), agent.ID, baseDate)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Status != "success" {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.PlannedPosts == 0 {
		t.Fatal("expected at least one planned post")
	}
	if len(fs.heartbeats) != 1 {
		t.Fatalf("expected exactly one heartbeat stamp, got %d", len(fs.heartbeats))
	}
	found := false
	for _, e := range al.entries {
		if e.EventType == "execution_complete" && e.Status == audit.StatusSuccess {
			found = true
		}
	}
	if !found {
		t.Fatal("expected an execution_complete success audit row")
	}
}

func TestRunSkipsOnBudgetExceeded(t *testing.T) {
	agent := domain.Agent{ID: 1, AccountID: 10, Status: domain.AgentActive, DailyBudget: 0, SplitX: 0, SplitLLM: 0}
	fs := newFakeDailyStore(agent)
	al := &fakeAuditLog{}
	r := newTestRunner(fs, al)

	baseDate := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	result, err := r.Run(context.Background(), agent.ID, baseDate)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Status != "skip" || result.Reason != "budget_exceeded" {
		t.Fatalf("expected budget_exceeded skip, got %+v", result)
	}
	if len(fs.heartbeats) != 1 {
		t.Fatal("the heartbeat defer is armed as soon as gate 1 passes, regardless of later skips")
	}
}

func TestRunSkipsOnRateLimit(t *testing.T) {
	agent := domain.Agent{ID: 1, AccountID: 10, Status: domain.AgentActive, DailyBudget: 100, SplitX: 100, SplitLLM: 100}
	fs := newFakeDailyStore(agent)
	fs.engagementCount = 3 // already at the default reply_quote_daily_max cap
	al := &fakeAuditLog{}
	r := newTestRunner(fs, al)

	baseDate := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	result, err := r.Run(context.Background(), agent.ID, baseDate)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Status != "skip" || result.Reason != "rate_limited" {
		t.Fatalf("expected rate_limited skip, got %+v", result)
	}
	if len(fs.heartbeats) != 1 {
		t.Fatal("the rate-limit skip happens after the heartbeat defer is armed")
	}
}
