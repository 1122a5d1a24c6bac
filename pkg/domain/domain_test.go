package domain

import (
	"testing"
	"time"
)

func TestAgentIsRunnableRequiresActiveStatus(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	a := Agent{Status: AgentPaused}
	if a.IsRunnable(now) {
		t.Fatal("expected paused agent to be non-runnable")
	}
}

func TestAgentIsRunnableActiveWithNoStopUntil(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	a := Agent{Status: AgentActive}
	if !a.IsRunnable(now) {
		t.Fatal("expected active agent with no stop_until to be runnable")
	}
}

func TestAgentIsRunnableRespectsFutureStopUntil(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	a := Agent{Status: AgentActive, StopUntil: &future}
	if a.IsRunnable(now) {
		t.Fatal("expected agent stopped until a future time to be non-runnable")
	}
}

func TestAgentIsRunnableAllowsPastStopUntil(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	a := Agent{Status: AgentActive, StopUntil: &past}
	if !a.IsRunnable(now) {
		t.Fatal("expected agent with elapsed stop_until to be runnable again")
	}
}

func TestXAuthTokenIsStaleWithinMargin(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	tok := XAuthToken{ExpiresAt: now.Add(90 * time.Second)}
	if !tok.IsStale(now, 2*time.Minute) {
		t.Fatal("expected token expiring within the 2-minute margin to be stale")
	}
}

func TestXAuthTokenNotStaleOutsideMargin(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	tok := XAuthToken{ExpiresAt: now.Add(10 * time.Minute)}
	if tok.IsStale(now, 2*time.Minute) {
		t.Fatal("expected token expiring well outside the margin to not be stale")
	}
}
