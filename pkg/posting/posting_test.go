package posting

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wisbric/postflow/internal/audit"
	"github.com/wisbric/postflow/pkg/adapters"
	"github.com/wisbric/postflow/pkg/dailyroutine"
	"github.com/wisbric/postflow/pkg/domain"
	"github.com/wisbric/postflow/pkg/guard"
)

// fakePostingStore satisfies Store plus the narrow AgentStore/PDCAAnnotator
// slices guard.New needs, so one fake backs both collaborators. pending
// models the claimable rows; posted tracks which ids a prior claim has
// already marked, so a re-run's WithClaimedPosts never hands one back out.
type fakePostingStore struct {
	agent           domain.Agent
	costLog         domain.CostLog
	engagementCount int
	existsHashes    map[string]bool
	pending         []domain.Post
	posted          map[int64]bool
	pdca            domain.DailyPDCA
}

func newFakePostingStore(agent domain.Agent) *fakePostingStore {
	return &fakePostingStore{agent: agent, existsHashes: map[string]bool{}, posted: map[int64]bool{}}
}

func (f *fakePostingStore) GetAgent(ctx context.Context, id int64) (domain.Agent, error) {
	return f.agent, nil
}

func (f *fakePostingStore) StopAgent(ctx context.Context, id int64, reason string, until *time.Time, now time.Time) error {
	f.agent.Status = domain.AgentStopped
	f.agent.StopReason = reason
	return nil
}

func (f *fakePostingStore) GetDailyPDCA(ctx context.Context, agentID int64, date time.Time) (domain.DailyPDCA, error) {
	return f.pdca, nil
}

func (f *fakePostingStore) UpsertDailyPDCA(ctx context.Context, p domain.DailyPDCA) error {
	f.pdca = p
	return nil
}

func (f *fakePostingStore) WithClaimedPosts(ctx context.Context, agentID int64, now time.Time, limit int, fn func(ctx context.Context, posts []domain.Post, markPosted func(ctx context.Context, postID int64, externalID string, postedAt time.Time) error) error) error {
	var batch []domain.Post
	for _, p := range f.pending {
		if !f.posted[p.ID] {
			batch = append(batch, p)
		}
	}
	markPosted := func(ctx context.Context, postID int64, externalID string, postedAt time.Time) error {
		f.posted[postID] = true
		return nil
	}
	return fn(ctx, batch, markPosted)
}

func (f *fakePostingStore) ExistsByContentHash(ctx context.Context, agentID int64, hash string, bucketDate time.Time) (bool, error) {
	return f.existsHashes[hash], nil
}

func (f *fakePostingStore) GetCostLog(ctx context.Context, agentID int64, date time.Time) (domain.CostLog, error) {
	return f.costLog, nil
}

func (f *fakePostingStore) AddSpendDirect(ctx context.Context, agentID int64, date time.Time, xDelta, llmDelta float64) error {
	f.costLog.XAPICost += xDelta
	f.costLog.LLMCost += llmDelta
	f.costLog.Total += xDelta + llmDelta
	return nil
}

func (f *fakePostingStore) CountEngagementActions(ctx context.Context, agentID int64, dayStart, dayEnd time.Time) (int, error) {
	return f.engagementCount, nil
}

func (f *fakePostingStore) RecordEngagementAction(ctx context.Context, a domain.EngagementAction) (int64, error) {
	return 1, nil
}

// fakeAuditLog records every entry it's given and answers
// ConsecutiveFailures from that history, matching ConsecutiveFailures'
// contract (docs on internal/audit.Writer): true only when the newest n
// matching entries are all failures.
type fakeAuditLog struct {
	entries []audit.Entry
}

func (f *fakeAuditLog) Log(ctx context.Context, e audit.Entry) (int64, error) {
	f.entries = append(f.entries, e)
	return int64(len(f.entries)), nil
}

func (f *fakeAuditLog) ConsecutiveFailures(ctx context.Context, agentID int64, source, eventType string, n int) (bool, error) {
	matched := 0
	for i := len(f.entries) - 1; i >= 0 && matched < n; i-- {
		e := f.entries[i]
		if e.AgentID != agentID || e.Source != source || e.EventType != eventType {
			continue
		}
		matched++
		if e.Status != audit.StatusFailed {
			return false, nil
		}
	}
	return matched == n, nil
}

// fakeOAuth lets tests force EnsureFresh to fail deterministically, without
// touching the network the real xoauth.Manager would call out to.
type fakeOAuth struct {
	err error
}

func (f *fakeOAuth) EnsureFresh(ctx context.Context, accountID int64, now time.Time) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "test-access-token", nil
}

func newTestWorker(fs *fakePostingStore, poster adapters.Poster, oauth OAuthRefresher, al *fakeAuditLog) *Worker {
	g := guard.New(fs, fs, al)
	return New(fs, g, oauth, poster, al, nil, 10, 3)
}

func TestRunOnceClaimIdempotence(t *testing.T) {
	agent := domain.Agent{ID: 1, AccountID: 10, Status: domain.AgentActive, DailyBudget: 100, SplitX: 100, SplitLLM: 100}
	fs := newFakePostingStore(agent)
	poster := adapters.NewFakePlatform()
	al := &fakeAuditLog{}
	w := newTestWorker(fs, poster, &fakeOAuth{}, al)

	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	fs.pending = []domain.Post{{ID: 1, AgentID: agent.ID, Type: domain.PostTweet, Content: "hello world", ContentHash: dailyroutine.ContentHash("hello world"), ContentBucketDate: now}}

	outcomes, err := w.RunOnce(context.Background(), agent.ID, now)
	if err != nil {
		t.Fatalf("first RunOnce returned error: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Status != "published" {
		t.Fatalf("expected the post to publish on first claim, got %+v", outcomes)
	}

	outcomes, err = w.RunOnce(context.Background(), agent.ID, now)
	if err != nil {
		t.Fatalf("second RunOnce returned error: %v", err)
	}
	if len(outcomes) != 0 {
		t.Fatalf("expected an already-posted row never to be reclaimed, got %+v", outcomes)
	}
	if poster.Count() != 1 {
		t.Fatalf("expected exactly one publish across both runs, got %d", poster.Count())
	}
}

func TestRunOnceSkipsInvalidTargetURL(t *testing.T) {
	agent := domain.Agent{ID: 1, AccountID: 10, Status: domain.AgentActive, DailyBudget: 100, SplitX: 100, SplitLLM: 100}
	fs := newFakePostingStore(agent)
	poster := adapters.NewFakePlatform()
	al := &fakeAuditLog{}
	w := newTestWorker(fs, poster, &fakeOAuth{}, al)

	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	fs.pending = []domain.Post{{ID: 1, AgentID: agent.ID, Type: domain.PostReply, Content: "a reply", TargetPostURL: "not-a-url", ContentHash: dailyroutine.ContentHash("a reply"), ContentBucketDate: now}}

	outcomes, err := w.RunOnce(context.Background(), agent.ID, now)
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Status != "skipped" || outcomes[0].Reason != "invalid_target_url" {
		t.Fatalf("expected an invalid_target_url skip, got %+v", outcomes)
	}
	if poster.Count() != 0 {
		t.Fatal("a post with an invalid target URL must never reach the poster")
	}
}

func TestRunOnceOAuthFailuresCascadeToAutoStop(t *testing.T) {
	agent := domain.Agent{ID: 1, AccountID: 10, Status: domain.AgentActive, DailyBudget: 100, SplitX: 100, SplitLLM: 100}
	fs := newFakePostingStore(agent)
	poster := adapters.NewFakePlatform()
	al := &fakeAuditLog{}
	oauth := &fakeOAuth{err: errors.New("refresh denied")}
	w := newTestWorker(fs, poster, oauth, al)

	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		fs.pending = []domain.Post{{
			ID:                int64(100 + i),
			AgentID:           agent.ID,
			Type:              domain.PostTweet,
			Content:           fmt.Sprintf("post %d", i),
			ContentHash:       dailyroutine.ContentHash(fmt.Sprintf("post %d", i)),
			ContentBucketDate: now,
		}}
		if _, err := w.RunOnce(context.Background(), agent.ID, now); err != nil {
			t.Fatalf("RunOnce %d returned error: %v", i, err)
		}
	}

	if fs.agent.Status != domain.AgentStopped {
		t.Fatalf("expected the agent auto-stopped after 3 consecutive oauth refresh failures, got status %q", fs.agent.Status)
	}
	if fs.agent.StopReason != autoStopOAuthReason {
		t.Fatalf("expected stop reason %q, got %q", autoStopOAuthReason, fs.agent.StopReason)
	}
	if poster.Count() != 0 {
		t.Fatal("no post should ever reach the poster while oauth refresh keeps failing")
	}
}
