package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wisbric/postflow/pkg/domain"
)

type fakeCostReader struct {
	log domain.CostLog
	err error
}

func (f *fakeCostReader) GetCostLog(ctx context.Context, agentID int64, date time.Time) (domain.CostLog, error) {
	return f.log, f.err
}

var testDate = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

func TestReserveSucceedsWithinAllLimits(t *testing.T) {
	l := New(&fakeCostReader{}, 1, testDate, Limits{Daily: 10, X: 5, LLM: 5})
	if err := l.Reserve(context.Background(), 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReserveFailsOnXBucketOverflow(t *testing.T) {
	l := New(&fakeCostReader{}, 1, testDate, Limits{Daily: 10, X: 1, LLM: 5})
	if err := l.Reserve(context.Background(), 2, 0); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("got %v, want ErrBudgetExceeded", err)
	}
}

func TestReserveFailsOnLLMBucketOverflow(t *testing.T) {
	l := New(&fakeCostReader{}, 1, testDate, Limits{Daily: 10, X: 5, LLM: 1})
	if err := l.Reserve(context.Background(), 0, 2); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("got %v, want ErrBudgetExceeded", err)
	}
}

func TestReserveFailsOnDailyOverflowEvenWithRoomInBuckets(t *testing.T) {
	// Open Question 2: daily_budget need not equal split_x + split_llm; the
	// smaller of the three bounds wins.
	l := New(&fakeCostReader{}, 1, testDate, Limits{Daily: 2, X: 10, LLM: 10})
	if err := l.Reserve(context.Background(), 1, 1.5); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("got %v, want ErrBudgetExceeded", err)
	}
}

func TestReserveAccountsForExistingCommittedSpend(t *testing.T) {
	l := New(&fakeCostReader{log: domain.CostLog{XAPICost: 4, Total: 4}}, 1, testDate, Limits{Daily: 10, X: 5, LLM: 5})
	if err := l.Reserve(context.Background(), 2, 0); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("got %v, want ErrBudgetExceeded", err)
	}
}

func TestReserveAccumulatesAcrossMultipleCalls(t *testing.T) {
	l := New(&fakeCostReader{}, 1, testDate, Limits{Daily: 3, X: 5, LLM: 5})
	if err := l.Reserve(context.Background(), 1, 1); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := l.Reserve(context.Background(), 1, 0); err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if err := l.Reserve(context.Background(), 1, 0); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("third reserve should exceed daily limit, got %v", err)
	}
}

func TestCommitIsNoOpWhenNothingReserved(t *testing.T) {
	l := New(&fakeCostReader{}, 1, testDate, Limits{Daily: 10, X: 5, LLM: 5})
	called := false
	err := l.Commit(context.Background(), func(ctx context.Context, agentID int64, date time.Time, x, llm float64) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatal("expected apply not to be called when nothing was reserved")
	}
}

func TestCommitResetsReservationsOnSuccess(t *testing.T) {
	l := New(&fakeCostReader{}, 1, testDate, Limits{Daily: 10, X: 5, LLM: 5})
	if err := l.Reserve(context.Background(), 1, 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	var gotX, gotLLM float64
	err := l.Commit(context.Background(), func(ctx context.Context, agentID int64, date time.Time, x, llm float64) error {
		gotX, gotLLM = x, llm
		return nil
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if gotX != 1 || gotLLM != 2 {
		t.Fatalf("commit applied (%v, %v), want (1, 2)", gotX, gotLLM)
	}
	x, llm := l.Reserved()
	if x != 0 || llm != 0 {
		t.Fatalf("expected reservations reset, got (%v, %v)", x, llm)
	}
}
