package adapters

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// FakePlatform is a deterministic, in-memory Platform+Poster. It is the only
// platform implementation in this build, so internal/app wires it whatever
// USE_REAL_X says, and the test suite uses it too (§9: adapters are
// injected, the core never branches on identity).
type FakePlatform struct {
	mu         sync.Mutex
	posts      map[int64][]ExternalPost
	postSeq    int64
	UserID     string
	DailyUsage float64
}

// NewFakePlatform builds a FakePlatform with no seeded posts.
func NewFakePlatform() *FakePlatform {
	return &FakePlatform{posts: map[int64][]ExternalPost{}, UserID: "fake-user"}
}

// ResolveUserID always succeeds with a deterministic id unless UserID is
// explicitly cleared, letting tests exercise the MissingUserId path.
func (f *FakePlatform) ResolveUserID(ctx context.Context, agentID int64) (string, error) {
	if f.UserID == "" {
		return "", ErrMissingUserID
	}
	return f.UserID, nil
}

// ListPosts returns whatever has been seeded for the agent; target_date is
// accepted but unused by the fake (determinism is the caller's job).
func (f *FakePlatform) ListPosts(ctx context.Context, agentID int64, targetDate time.Time) ([]ExternalPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ExternalPost(nil), f.posts[agentID]...), nil
}

// GetPostMetrics returns a fixed deterministic snapshot.
func (f *FakePlatform) GetPostMetrics(ctx context.Context, agentID int64, externalID string) (PostMetricsSnapshot, error) {
	return PostMetricsSnapshot{Impressions: 100, Likes: 10, Replies: 1, Retweets: 2, Clicks: 5, Engagements: 18}, nil
}

// GetDailyUsage returns the configured fixed usage amount.
func (f *FakePlatform) GetDailyUsage(ctx context.Context, agentID int64, date time.Time) (float64, []byte, error) {
	return f.DailyUsage, []byte(`{}`), nil
}

// PostText appends a deterministic external id and records the post.
func (f *FakePlatform) PostText(ctx context.Context, accessToken, content string) (string, error) {
	return f.record(0, content), nil
}

// PostThread posts all parts, returning the root id. Matches §4.9's
// "must succeed for all parts" contract — the fake never partially fails.
func (f *FakePlatform) PostThread(ctx context.Context, accessToken string, parts []string) (string, error) {
	if len(parts) == 0 {
		return "", fmt.Errorf("thread has no parts")
	}
	root := f.record(0, parts[0])
	for _, p := range parts[1:] {
		f.record(0, p)
	}
	return root, nil
}

// PostReply records a reply against a target URL.
func (f *FakePlatform) PostReply(ctx context.Context, accessToken, targetURL, content string) (string, error) {
	return f.record(0, content), nil
}

// PostQuoteRT records a quote-retweet against a target URL.
func (f *FakePlatform) PostQuoteRT(ctx context.Context, accessToken, targetURL, content string) (string, error) {
	return f.record(0, content), nil
}

func (f *FakePlatform) record(agentID int64, content string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postSeq++
	id := "ext-" + strconv.FormatInt(f.postSeq, 10)
	f.posts[agentID] = append(f.posts[agentID], ExternalPost{ExternalID: id, Content: content, PostedAt: time.Now().UTC()})
	return id
}

// Count reports how many posts the fake has recorded, for assertions in
// scenario 4's "poster counter = 1" expectation.
func (f *FakePlatform) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ps := range f.posts {
		n += len(ps)
	}
	return n
}

// FakeSearch returns a fixed, deterministic result set regardless of query.
type FakeSearch struct {
	Results []SearchResult
}

// Search returns up to topK of the fixed results.
func (f *FakeSearch) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK > len(f.Results) {
		topK = len(f.Results)
	}
	return f.Results[:topK], nil
}

// FakeFetcher returns a fixed successful FetchResult.
type FakeFetcher struct {
	Result FetchResult
}

// Fetch returns the configured fixed result, ignoring url.
func (f *FakeFetcher) Fetch(ctx context.Context, url string) (FetchResult, error) {
	r := f.Result
	r.URL = url
	return r, nil
}

// FakeSummarizer returns a truncated prefix of the text, deterministically.
type FakeSummarizer struct{}

// Summarize returns a deterministic short summary.
func (FakeSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	const max = 120
	if len(text) <= max {
		return text, nil
	}
	return text[:max], nil
}

// FakeTargetPostSource returns no candidates by default; tests set Results.
type FakeTargetPostSource struct {
	Results []CandidatePost
}

// ListCandidates returns the configured fixed candidates.
func (f *FakeTargetPostSource) ListCandidates(ctx context.Context, handle string, date time.Time) ([]CandidatePost, error) {
	return f.Results, nil
}
