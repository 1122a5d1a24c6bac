package usage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/wisbric/postflow/internal/audit"
	"github.com/wisbric/postflow/pkg/adapters"
)

type fakeStore struct {
	units  float64
	actual float64
	called bool
}

func (f *fakeStore) SetXUsageActual(ctx context.Context, agentID int64, date time.Time, units float64, raw json.RawMessage, actual float64) error {
	f.called = true
	f.units = units
	f.actual = actual
	return nil
}

type fakePlatform struct {
	units float64
	err   error
}

func (f *fakePlatform) ResolveUserID(ctx context.Context, agentID int64) (string, error) {
	return "", nil
}

func (f *fakePlatform) ListPosts(ctx context.Context, agentID int64, targetDate time.Time) ([]adapters.ExternalPost, error) {
	return nil, nil
}

func (f *fakePlatform) GetPostMetrics(ctx context.Context, agentID int64, externalID string) (adapters.PostMetricsSnapshot, error) {
	return adapters.PostMetricsSnapshot{}, nil
}

func (f *fakePlatform) GetDailyUsage(ctx context.Context, agentID int64, date time.Time) (units float64, raw []byte, err error) {
	if f.err != nil {
		return 0, nil, f.err
	}
	return f.units, []byte(`{}`), nil
}

type fakeAuditLogger struct {
	entries []audit.Entry
}

func (f *fakeAuditLogger) Log(ctx context.Context, e audit.Entry) (int64, error) {
	f.entries = append(f.entries, e)
	return int64(len(f.entries)), nil
}

func TestReconcileComputesRoundedActualCost(t *testing.T) {
	store := &fakeStore{}
	platform := &fakePlatform{units: 123.456}
	logger := &fakeAuditLogger{}
	price := 0.015
	r := New(store, platform, logger, &price)

	if err := r.Reconcile(context.Background(), 1, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	if !store.called {
		t.Fatal("expected SetXUsageActual to be called")
	}
	if store.actual != 1.85 {
		t.Fatalf("got actual=%v, want 1.85", store.actual)
	}
	if len(logger.entries) != 1 || logger.entries[0].Status != audit.StatusSuccess {
		t.Fatalf("expected one success audit entry, got %+v", logger.entries)
	}
}

func TestReconcileSwallowsPlatformError(t *testing.T) {
	store := &fakeStore{}
	platform := &fakePlatform{err: errors.New("boom")}
	logger := &fakeAuditLogger{}
	r := New(store, platform, logger, nil)

	if err := r.Reconcile(context.Background(), 1, time.Now()); err != nil {
		t.Fatalf("expected nil error (non-fatal contract), got %v", err)
	}
	if store.called {
		t.Fatal("expected SetXUsageActual not to be called on platform failure")
	}
	if len(logger.entries) != 1 || logger.entries[0].Status != audit.StatusFailed {
		t.Fatalf("expected one failed audit entry, got %+v", logger.entries)
	}
}

func TestReconcileNoUnitPriceRecordsZeroActual(t *testing.T) {
	store := &fakeStore{}
	platform := &fakePlatform{units: 999}
	logger := &fakeAuditLogger{}
	r := New(store, platform, logger, nil)

	if err := r.Reconcile(context.Background(), 1, time.Now()); err != nil {
		t.Fatal(err)
	}
	if store.actual != 0 {
		t.Fatalf("got actual=%v, want 0 (no unit price configured)", store.actual)
	}
}
