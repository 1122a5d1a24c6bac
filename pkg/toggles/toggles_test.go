package toggles

import (
	"log/slog"
	"io"
	"testing"

	"github.com/wisbric/postflow/pkg/domain"
)

func testResolver() *Resolver {
	return New(Defaults{PostsPerDay: 4, XSearchMax: 10, WebSearchMax: 10, WebFetchMax: 3, PostingPollSeconds: 60, ReplyQuoteDailyMax: 3},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func intPtr(v int) *int { return &v }

func TestPostsPerDayFallsBackWhenUnset(t *testing.T) {
	r := testResolver()
	if got := r.PostsPerDay(domain.FeatureToggles{}); got != 4 {
		t.Fatalf("got %d, want default 4", got)
	}
}

func TestPostsPerDayUsesOverrideWithinRange(t *testing.T) {
	r := testResolver()
	if got := r.PostsPerDay(domain.FeatureToggles{PostsPerDay: intPtr(8)}); got != 8 {
		t.Fatalf("got %d, want 8", got)
	}
}

func TestPostsPerDayFallsBackWhenOutOfRange(t *testing.T) {
	r := testResolver()
	if got := r.PostsPerDay(domain.FeatureToggles{PostsPerDay: intPtr(99)}); got != 4 {
		t.Fatalf("got %d, want fallback default 4 for out-of-range override", got)
	}
}

func TestReplyQuoteDailyMaxRange(t *testing.T) {
	r := testResolver()
	if got := r.ReplyQuoteDailyMax(domain.FeatureToggles{ReplyQuoteDailyMax: intPtr(101)}); got != 3 {
		t.Fatalf("got %d, want fallback default 3", got)
	}
}
