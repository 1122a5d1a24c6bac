package audit

import (
	"testing"
)

func TestConsecutiveFailuresLogic(t *testing.T) {
	// consecutiveFailures mirrors the decision table inside ConsecutiveFailuresTx
	// without requiring a database round-trip.
	consecutiveFailures := func(recs []Record, limit int) bool {
		if len(recs) < limit {
			return false
		}
		for _, r := range recs {
			if r.Status != StatusFailed {
				return false
			}
		}
		return true
	}

	tests := []struct {
		name  string
		recs  []Record
		limit int
		want  bool
	}{
		{
			name:  "fewer than limit rows",
			recs:  []Record{{Status: StatusFailed}, {Status: StatusFailed}},
			limit: 3,
			want:  false,
		},
		{
			name:  "exactly three consecutive failures",
			recs:  []Record{{Status: StatusFailed}, {Status: StatusFailed}, {Status: StatusFailed}},
			limit: 3,
			want:  true,
		},
		{
			name:  "three rows but one success breaks the streak",
			recs:  []Record{{Status: StatusFailed}, {Status: StatusSuccess}, {Status: StatusFailed}},
			limit: 3,
			want:  false,
		},
		{
			name:  "more rows than limit, all failed",
			recs:  []Record{{Status: StatusFailed}, {Status: StatusFailed}, {Status: StatusFailed}, {Status: StatusFailed}},
			limit: 3,
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := consecutiveFailures(tt.recs, tt.limit); got != tt.want {
				t.Errorf("consecutiveFailures() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntryDefaultsPayload(t *testing.T) {
	e := Entry{AgentID: 1, Source: "daily_routine", EventType: "execution_skip", Status: StatusSkipped}
	if e.Payload != nil {
		t.Fatalf("expected nil payload before LogTx normalizes it")
	}
}
