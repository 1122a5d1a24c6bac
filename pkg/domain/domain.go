// Package domain holds the relational entities shared across the posting
// orchestrator: accounts, agents, posts and their metrics, cost and audit
// logs, and the OAuth token/state rows. These are plain structs — the
// corresponding SQL lives in pkg/store and migrations/.
package domain

import (
	"encoding/json"
	"time"
)

// AccountType distinguishes individual from business accounts.
type AccountType string

const (
	AccountIndividual AccountType = "individual"
	AccountBusiness   AccountType = "business"
)

// Account is the top-level tenant: one account owns many agents.
type Account struct {
	ID             int64
	Name           string
	Type           AccountType
	APIKeyRef      string // opaque reference into the secret store, never the raw key
	MediaAssetsDir string
	CreatedAt      time.Time
}

// AgentStatus mirrors §3/§9 Open Question 1: all three non-active values are
// equally non-runnable; only manual stop or auto-stop ever populate StopUntil.
type AgentStatus string

const (
	AgentActive   AgentStatus = "active"
	AgentPaused   AgentStatus = "paused"
	AgentDisabled AgentStatus = "disabled"
	AgentStopped  AgentStatus = "stopped"
)

// FeatureToggles is the allowlisted, range-checked toggle bag described by
// the feature-toggle resolver. Raw is tagged `json:"-"`, so JSON decoding
// never fills it: the API decoder refuses unknown keys and a read from the
// database drops them. Nothing in the core reads Raw.
type FeatureToggles struct {
	PostsPerDay         *int `json:"posts_per_day,omitempty"`
	XSearchMax          *int `json:"x_search_max,omitempty"`
	WebSearchMax        *int `json:"web_search_max,omitempty"`
	WebFetchMax         *int `json:"web_fetch_max,omitempty"`
	PostingPollSeconds  *int `json:"posting_poll_seconds,omitempty"`
	ReplyQuoteDailyMax  *int `json:"reply_quote_daily_max,omitempty"`

	Raw map[string]json.RawMessage `json:"-"`
}

// Agent is a tenant's automation profile. One-to-many under an Account.
type Agent struct {
	ID             int64
	AccountID      int64
	Status         AgentStatus
	FeatureToggles FeatureToggles
	DailyBudget    float64
	SplitX         float64
	SplitLLM       float64
	StopReason     string
	StoppedAt      *time.Time
	StopUntil      *time.Time
	CreatedAt      time.Time
	LastHeartbeatAt *time.Time
}

// AccountKnowledge is a per-account freeform notes record: persona, tone,
// strategy, and a couple of small allowlists. The content planner falls
// back to it as boilerplate context when no search/fetch facts are
// available for a run.
type AccountKnowledge struct {
	ID                int64
	AccountID         int64
	Persona           string
	Tone              string
	Strategy          string
	NGItems           []string
	ReferenceAccounts []string
	CreatedAt         time.Time
}

// IsRunnable implements the guard predicate directly on the entity so callers
// that already hold an Agent don't need to round-trip through the store.
// The authoritative check still lives in pkg/guard, which re-reads from the
// database to avoid acting on stale in-memory state.
func (a Agent) IsRunnable(now time.Time) bool {
	if a.Status != AgentActive {
		return false
	}
	if a.StopUntil == nil {
		return true
	}
	return !a.StopUntil.After(now)
}

// PostType enumerates the kinds of posts the publish worker can dispatch.
type PostType string

const (
	PostTweet   PostType = "tweet"
	PostThread  PostType = "thread"
	PostReply   PostType = "reply"
	PostQuoteRT PostType = "quote_rt"
	PostPoll    PostType = "poll"
)

// Post is a single planned or published unit of content.
type Post struct {
	ID                int64
	AgentID           int64
	ExternalID        string // optional, unique within agent when present
	Content           string
	Type              PostType
	MediaURLs         []string
	ScheduledAt       *time.Time
	PostedAt          *time.Time
	TargetPostURL     string // required for reply/quote_rt
	ThreadParts       []string
	AllowURL          bool
	ContentHash       string // 64-hex sha256
	ContentBucketDate time.Time
	CreatedAt         time.Time
}

// MetricsCollectionType distinguishes a transient snapshot from
// platform-authoritative confirmed metrics.
type MetricsCollectionType string

const (
	MetricsSnapshot  MetricsCollectionType = "snapshot"
	MetricsConfirmed MetricsCollectionType = "confirmed"
)

// PostMetrics is one observation of a post's engagement counters.
type PostMetrics struct {
	ID             int64
	PostID         int64
	CollectionType MetricsCollectionType
	CollectedAt    time.Time
	Impressions    int64
	Likes          int64
	Replies        int64
	Retweets       int64
	Clicks         int64
	Engagements    int64
}

// CostLog is the per (agent, date) spend ledger row. AgentID 0 is reserved
// for app-wide rollups (e.g. the usage reconciler's external-usage row).
type CostLog struct {
	ID               int64
	AgentID          int64
	Date             time.Time
	XAPICost         float64
	XAPICostEstimate float64
	LLMCost          float64
	ImageGenCost     float64
	Total            float64
	XUsageUnits      float64
	XUsageRaw        json.RawMessage
	XAPICostActual   *float64
	UpdatedAt        time.Time
}

// EngagementActionType enumerates the reply/quote/like actions counted by
// the rate limiter.
type EngagementActionType string

const (
	ActionLike    EngagementActionType = "like"
	ActionReply   EngagementActionType = "reply"
	ActionQuoteRT EngagementActionType = "quote_rt"
)

// EngagementAction is an append-only record of an engagement attempt.
type EngagementAction struct {
	ID             int64
	AgentID        int64
	TargetAccountID string
	ActionType     EngagementActionType
	TargetPostURL  string
	ExecutedAt     time.Time
}

// SearchSource distinguishes the platform-native search from general web search.
type SearchSource string

const (
	SearchSourceX   SearchSource = "x"
	SearchSourceWeb SearchSource = "web"
)

// SearchLog is an append-only record of one search attempt, counted toward
// the daily per-source cap.
type SearchLog struct {
	ID           int64
	AgentID      int64
	Date         time.Time
	Source       SearchSource
	Status       string // succeeded, failed, skipped
	Payload      json.RawMessage
	CostEstimate float64
	CreatedAt    time.Time
}

// FetchStatus enumerates FetchLog outcomes. Only Succeeded/Failed count
// against the daily fetch cap; Skipped does not.
type FetchStatus string

const (
	FetchSucceeded FetchStatus = "succeeded"
	FetchFailed    FetchStatus = "failed"
	FetchSkipped   FetchStatus = "skipped"
)

// FetchLog is an append-only record of one page-fetch attempt.
type FetchLog struct {
	ID           int64
	AgentID      int64
	Date         time.Time
	URL          string
	Status       FetchStatus
	Payload      json.RawMessage
	CostEstimate float64
	CreatedAt    time.Time
}

// TargetPostCandidate is a harvested URL that may be consumed by the
// content planner for a reply/quote_rt draft.
type TargetPostCandidate struct {
	ID            int64
	AgentID       int64
	Date          time.Time
	URL           string
	Text          string
	PostCreatedAt *time.Time
	Used          bool
}

// DailyPDCA is the upserted per (agent, date) analytics/strategy blob.
type DailyPDCA struct {
	AgentID          int64
	Date             time.Time
	AnalyticsSummary map[string]any
	Analysis         map[string]any
	Strategy         map[string]any
	PostsCreated     []int64
	UpdatedAt        time.Time
}

// XAuthToken is the one-row-per-account OAuth token record.
type XAuthToken struct {
	AccountID    int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
	TokenType    string
	UpdatedAt    time.Time
}

// IsStale reports whether the token needs a refresh, applying the 2-minute
// clock-skew margin described by the OAuth token manager.
func (t XAuthToken) IsStale(now time.Time, margin time.Duration) bool {
	return !t.ExpiresAt.After(now.Add(margin))
}

// OAuthState is a short-lived PKCE state row, deleted on consumption or expiry.
type OAuthState struct {
	State        string
	AccountID    int64
	CodeVerifier string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}
