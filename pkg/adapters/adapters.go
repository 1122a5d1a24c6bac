// Package adapters isolates the external-platform, LLM, search, fetch and
// summarize clients behind narrow interfaces (C12, §9's adapter
// polymorphism note). The core never branches on adapter identity beyond a
// startup selection between fake and real implementations.
package adapters

import (
	"context"
	"time"
)

// ErrMissingUserID is returned by Platform.ResolveUserID when the agent has no
// resolvable external user id configured; the daily routine's ingest step
// (§4.7 step 4) calls ResolveUserID before ListPosts.
var ErrMissingUserID = errPlain("missing_user_id")

type errPlain string

func (e errPlain) Error() string { return string(e) }

// ExternalPost is one post as reported back by the platform adapter.
type ExternalPost struct {
	ExternalID string
	Content    string
	PostedAt   time.Time
}

// PostMetricsSnapshot is the metrics the platform reports for one post.
type PostMetricsSnapshot struct {
	Impressions int64
	Likes       int64
	Replies     int64
	Retweets    int64
	Clicks      int64
	Engagements int64
}

// Platform is the read side of the external social platform: the
// {resolve_user_id, list_posts, get_post_metrics, get_daily_usage}
// capability set from §9.
type Platform interface {
	ResolveUserID(ctx context.Context, agentID int64) (string, error)
	ListPosts(ctx context.Context, agentID int64, targetDate time.Time) ([]ExternalPost, error)
	GetPostMetrics(ctx context.Context, agentID int64, externalID string) (PostMetricsSnapshot, error)
	GetDailyUsage(ctx context.Context, agentID int64, date time.Time) (units float64, raw []byte, err error)
}

// Poster is the write side of the external social platform: the
// {post_text, post_thread, post_reply, post_quote_rt} capability set, used
// by the publish worker (§4.9 step 6).
type Poster interface {
	PostText(ctx context.Context, accessToken, content string) (externalID string, err error)
	PostThread(ctx context.Context, accessToken string, parts []string) (rootExternalID string, err error)
	PostReply(ctx context.Context, accessToken, targetURL, content string) (externalID string, err error)
	PostQuoteRT(ctx context.Context, accessToken, targetURL, content string) (externalID string, err error)
}

// SearchResult is one normalized search hit (§4.7 step 6).
type SearchResult struct {
	Title   string
	Snippet string
	URL     string
}

// Search is the narrow search-source interface; implementations exist for
// the x-source and the web-source (each gated independently by
// pkg/searchlimit).
type Search interface {
	Search(ctx context.Context, query string, topK int) ([]SearchResult, error)
}

// FetchResult is the contract from §4.12.
type FetchResult struct {
	URL            string
	Status         string // succeeded, failed, max_bytes_exceeded, ...
	HTTPStatus     int
	ContentType    string
	ContentLength  int64
	ExtractedText  string
	FailureReason  string
}

// Fetcher fetches and extracts text from a single URL (§4.12).
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// Summarizer condenses extracted text into a short summary (§4.7 step 7).
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// TargetPostSource harvests candidate URLs for configured target handles
// (§4.7 step 5).
type TargetPostSource interface {
	ListCandidates(ctx context.Context, handle string, date time.Time) ([]CandidatePost, error)
}

// CandidatePost is one harvested target post.
type CandidatePost struct {
	URL           string
	Text          string
	PostCreatedAt *time.Time
}
