package guard

import (
	"context"
	"testing"
	"time"

	"github.com/wisbric/postflow/pkg/domain"
)

type fakeAgentStore struct {
	agent   domain.Agent
	stopped bool
	reason  string
}

func (f *fakeAgentStore) GetAgent(ctx context.Context, id int64) (domain.Agent, error) {
	return f.agent, nil
}

func (f *fakeAgentStore) StopAgent(ctx context.Context, id int64, reason string, until *time.Time, now time.Time) error {
	f.stopped = true
	f.reason = reason
	f.agent.Status = domain.AgentStopped
	f.agent.StopReason = reason
	return nil
}

func TestIsAgentRunnableTrueForActiveWithNoStopUntil(t *testing.T) {
	store := &fakeAgentStore{agent: domain.Agent{Status: domain.AgentActive}}
	g := New(store, nil, nil)
	runnable, _, err := g.IsAgentRunnable(context.Background(), 1, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !runnable {
		t.Fatal("expected active agent to be runnable")
	}
}

func TestIsAgentRunnableFalseForPaused(t *testing.T) {
	store := &fakeAgentStore{agent: domain.Agent{Status: domain.AgentPaused}}
	g := New(store, nil, nil)
	runnable, _, err := g.IsAgentRunnable(context.Background(), 1, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if runnable {
		t.Fatal("expected paused agent to be non-runnable")
	}
}
