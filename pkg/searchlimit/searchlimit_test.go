package searchlimit

import (
	"context"
	"testing"
	"time"

	"github.com/wisbric/postflow/pkg/domain"
)

type fakeSearchCounter struct{ count int }

func (f *fakeSearchCounter) CountSearches(ctx context.Context, agentID int64, date time.Time, source domain.SearchSource) (int, error) {
	return f.count, nil
}

type fakeFetchCounter struct{ count int }

func (f *fakeFetchCounter) CountFetches(ctx context.Context, agentID int64, date time.Time) (int, error) {
	return f.count, nil
}

var testDate = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

func TestSearchLimiterUsesPerSourceMax(t *testing.T) {
	l := NewSearchLimiter(&fakeSearchCounter{count: 5}, 5, 50)
	limited, err := l.IsLimited(context.Background(), 1, testDate, domain.SearchSourceX, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !limited {
		t.Fatal("expected x-source limited at its own max of 5")
	}
	limited, err = l.IsLimited(context.Background(), 1, testDate, domain.SearchSourceWeb, 1)
	if err != nil {
		t.Fatal(err)
	}
	if limited {
		t.Fatal("expected web source not limited, independent cap")
	}
}

func TestFetchLimiterDefaultCapThree(t *testing.T) {
	l := NewFetchLimiter(&fakeFetchCounter{count: 3}, 3)
	limited, err := l.IsLimited(context.Background(), 1, testDate, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !limited {
		t.Fatal("expected limited at the default cap of 3")
	}
}
