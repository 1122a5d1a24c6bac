package agentsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/postflow/pkg/domain"
)

type fakeStore struct {
	agents map[int64]domain.Agent
}

func (f *fakeStore) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	var out []domain.Agent
	for _, a := range f.agents {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) GetAgent(ctx context.Context, id int64) (domain.Agent, error) {
	a, ok := f.agents[id]
	if !ok {
		return domain.Agent{}, errNotFound{}
	}
	return a, nil
}

func (f *fakeStore) GetCostLog(ctx context.Context, agentID int64, date time.Time) (domain.CostLog, error) {
	return domain.CostLog{AgentID: agentID, Date: date}, nil
}

func (f *fakeStore) UpdateAgentToggles(ctx context.Context, id int64, toggles domain.FeatureToggles, dailyBudget, splitX, splitLLM *float64) error {
	a, ok := f.agents[id]
	if !ok {
		return errNotFound{}
	}
	a.FeatureToggles = toggles
	if dailyBudget != nil {
		a.DailyBudget = *dailyBudget
	}
	f.agents[id] = a
	return nil
}

func (f *fakeStore) StopAgent(ctx context.Context, id int64, reason string, until *time.Time, now time.Time) error {
	a, ok := f.agents[id]
	if !ok {
		return errNotFound{}
	}
	a.Status = domain.AgentStopped
	a.StopReason = reason
	f.agents[id] = a
	return nil
}

func (f *fakeStore) ResumeAgent(ctx context.Context, id int64) error {
	a, ok := f.agents[id]
	if !ok {
		return errNotFound{}
	}
	a.Status = domain.AgentActive
	f.agents[id] = a
	return nil
}

func (f *fakeStore) ListRecentPDCAs(ctx context.Context, agentID int64, limit int) ([]domain.DailyPDCA, error) {
	return nil, nil
}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

type fakeAuditHandler struct{ called bool }

func (f *fakeAuditHandler) HandleList(w http.ResponseWriter, r *http.Request, agentID int64) {
	f.called = true
	w.WriteHeader(http.StatusOK)
}

func newTestRouter(store Store) chi.Router {
	h := NewHandler(store, nil, &fakeAuditHandler{}, Defaults{PostsPerDay: 4})
	router := chi.NewRouter()
	router.Mount("/agents", h.Routes())
	router.Get("/config/defaults", h.RouteConfigDefaults)
	return router
}

func TestPatchEmptyBodyRejected(t *testing.T) {
	store := &fakeStore{agents: map[int64]domain.Agent{1: {ID: 1}}}
	router := newTestRouter(store)

	r := httptest.NewRequest(http.MethodPatch, "/agents/1", strings.NewReader("{}"))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestPatchUpdatesDailyBudget(t *testing.T) {
	store := &fakeStore{agents: map[int64]domain.Agent{1: {ID: 1, DailyBudget: 5}}}
	router := newTestRouter(store)

	r := httptest.NewRequest(http.MethodPatch, "/agents/1", strings.NewReader(`{"daily_budget": 12.5}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if store.agents[1].DailyBudget != 12.5 {
		t.Fatalf("got daily_budget=%v, want 12.5", store.agents[1].DailyBudget)
	}
}

func TestGetUnknownAgentReturns404(t *testing.T) {
	store := &fakeStore{agents: map[int64]domain.Agent{}}
	router := newTestRouter(store)

	r := httptest.NewRequest(http.MethodGet, "/agents/99", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestStopRequiresReason(t *testing.T) {
	store := &fakeStore{agents: map[int64]domain.Agent{1: {ID: 1}}}
	router := newTestRouter(store)

	r := httptest.NewRequest(http.MethodPost, "/agents/1/stop", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestStopThenResume(t *testing.T) {
	store := &fakeStore{agents: map[int64]domain.Agent{1: {ID: 1, Status: domain.AgentActive}}}
	router := newTestRouter(store)

	r := httptest.NewRequest(http.MethodPost, "/agents/1/stop", strings.NewReader(`{"reason":"manual"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("stop status = %d, want %d; body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if store.agents[1].Status != domain.AgentStopped {
		t.Fatalf("got status=%v, want stopped", store.agents[1].Status)
	}

	r = httptest.NewRequest(http.MethodPost, "/agents/1/resume", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("resume status = %d, want %d", w.Code, http.StatusOK)
	}
	if store.agents[1].Status != domain.AgentActive {
		t.Fatalf("got status=%v, want active", store.agents[1].Status)
	}
}

func TestConfigDefaults(t *testing.T) {
	router := newTestRouter(&fakeStore{agents: map[int64]domain.Agent{}})

	r := httptest.NewRequest(http.MethodGet, "/config/defaults", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"posts_per_day":4`) {
		t.Fatalf("expected posts_per_day=4 in body, got %s", w.Body.String())
	}
}
