// Package agentsapi implements the dashboard's agent management routes
// (§6): GET/PATCH on agents, stop/resume, and the static config-defaults
// block. It has no business logic of its own beyond request shaping — every
// mutation is a thin layer over pkg/store, audited the way the teacher logs
// a mutation diff on its own resource handlers.
package agentsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/postflow/internal/audit"
	"github.com/wisbric/postflow/internal/httpserver"
	"github.com/wisbric/postflow/pkg/domain"
)

// Store is the slice of pkg/store this handler needs.
type Store interface {
	ListAgents(ctx context.Context) ([]domain.Agent, error)
	GetAgent(ctx context.Context, id int64) (domain.Agent, error)
	GetCostLog(ctx context.Context, agentID int64, date time.Time) (domain.CostLog, error)
	UpdateAgentToggles(ctx context.Context, id int64, toggles domain.FeatureToggles, dailyBudget, splitX, splitLLM *float64) error
	StopAgent(ctx context.Context, id int64, reason string, until *time.Time, now time.Time) error
	ResumeAgent(ctx context.Context, id int64) error
	ListRecentPDCAs(ctx context.Context, agentID int64, limit int) ([]domain.DailyPDCA, error)
}

// AuditHandler serves GET /api/agents/{id}/audit, mounted by the caller
// under the same {id} route this package owns.
type AuditHandler interface {
	HandleList(w http.ResponseWriter, r *http.Request, agentID int64)
}

// Defaults is the static block returned by GET /api/config/defaults.
type Defaults struct {
	PostsPerDay        int     `json:"posts_per_day"`
	XSearchMax         int     `json:"x_search_max"`
	WebSearchMax       int     `json:"web_search_max"`
	WebFetchMax        int     `json:"web_fetch_max"`
	PostingPollSeconds int     `json:"posting_poll_seconds"`
	ReplyQuoteDailyMax int     `json:"reply_quote_daily_max"`
	PlanThreadRatio    float64 `json:"plan_thread_ratio"`
	PlanReplyRatio     float64 `json:"plan_reply_ratio"`
	PlanQuoteRatio     float64 `json:"plan_quote_ratio"`
}

// Handler wires the agents dashboard routes together.
type Handler struct {
	store    Store
	audit    *audit.Writer
	auditH   AuditHandler
	defaults Defaults
	now      func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(store Store, auditWriter *audit.Writer, auditHandler AuditHandler, defaults Defaults) *Handler {
	return &Handler{store: store, audit: auditWriter, auditH: auditHandler, defaults: defaults, now: time.Now}
}

// Routes returns the chi.Router to mount at /api/agents.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Patch("/", h.handlePatch)
		r.Post("/stop", h.handleStop)
		r.Post("/resume", h.handleResume)
		r.Get("/audit", h.handleAudit)
	})
	return r
}

// RouteConfigDefaults returns the handler for GET /api/config/defaults,
// mounted separately since it does not sit under /api/agents.
func (h *Handler) RouteConfigDefaults(w http.ResponseWriter, r *http.Request) {
	httpserver.Respond(w, http.StatusOK, h.defaults)
}

func parseAgentID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	agents, err := h.store.ListAgents(r.Context())
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list agents")
		return
	}

	today := h.now().UTC().Truncate(24 * time.Hour)
	appWide, err := h.store.GetCostLog(r.Context(), 0, today)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to load app-wide usage")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"date": today.Format("2006-01-02"),
		"app_wide_usage": map[string]any{
			"x_usage_units":     appWide.XUsageUnits,
			"x_api_cost_actual": appWide.XAPICostActual,
		},
		"agents": agents,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseAgentID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "agent_not_found", "invalid agent id")
		return
	}

	agent, err := h.store.GetAgent(r.Context(), id)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "agent_not_found", "agent not found")
		return
	}

	pdcas, err := h.store.ListRecentPDCAs(r.Context(), id, 7)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to load pdca history")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"agent": agent,
		"pdcas": pdcas,
	})
}

// patchRequest is the PATCH /api/agents/{id} body. At least one field must
// be set, per §6's "empty/invalid → 400" rule.
type patchRequest struct {
	DailyBudget    *float64               `json:"daily_budget,omitempty" validate:"omitempty,gte=0"`
	FeatureToggles *domain.FeatureToggles `json:"feature_toggles,omitempty"`
}

func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request) {
	id, err := parseAgentID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "agent_not_found", "invalid agent id")
		return
	}

	var req patchRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	if req.DailyBudget == nil && req.FeatureToggles == nil {
		httpserver.RespondError(w, http.StatusBadRequest, "empty_patch", "at least one of daily_budget or feature_toggles is required")
		return
	}

	toggles := domain.FeatureToggles{}
	if req.FeatureToggles != nil {
		toggles = *req.FeatureToggles
	} else {
		current, err := h.store.GetAgent(r.Context(), id)
		if err != nil {
			httpserver.RespondError(w, http.StatusNotFound, "agent_not_found", "agent not found")
			return
		}
		toggles = current.FeatureToggles
	}

	if err := h.store.UpdateAgentToggles(r.Context(), id, toggles, req.DailyBudget, nil, nil); err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "agent_not_found", "agent not found")
		return
	}

	h.auditPatch(r.Context(), id, req)

	agent, err := h.store.GetAgent(r.Context(), id)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to reload agent")
		return
	}
	httpserver.Respond(w, http.StatusOK, agent)
}

func (h *Handler) auditPatch(ctx context.Context, id int64, req patchRequest) {
	if h.audit == nil {
		return
	}
	payload, _ := json.Marshal(req)
	_, _ = h.audit.Log(ctx, audit.Entry{
		AgentID:   id,
		Date:      h.now().UTC(),
		Source:    "dashboard_api",
		EventType: "agent_patch",
		Status:    audit.StatusSuccess,
		Payload:   payload,
	})
}

type stopRequest struct {
	Reason string     `json:"reason"`
	Until  *time.Time `json:"until,omitempty"`
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	id, err := parseAgentID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "agent_not_found", "invalid agent id")
		return
	}

	var req stopRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	if req.Reason == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "reason_required", "reason is required")
		return
	}

	now := h.now().UTC()
	if err := h.store.StopAgent(r.Context(), id, req.Reason, req.Until, now); err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "agent_not_found", "agent not found")
		return
	}

	if h.audit != nil {
		payload, _ := json.Marshal(req)
		_, _ = h.audit.Log(r.Context(), audit.Entry{AgentID: id, Date: now, Source: "dashboard_api", EventType: "agent_stop", Status: audit.StatusSuccess, Payload: payload})
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	id, err := parseAgentID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "agent_not_found", "invalid agent id")
		return
	}

	if err := h.store.ResumeAgent(r.Context(), id); err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "agent_not_found", "agent not found")
		return
	}

	if h.audit != nil {
		_, _ = h.audit.Log(r.Context(), audit.Entry{AgentID: id, Date: h.now().UTC(), Source: "dashboard_api", EventType: "agent_resume", Status: audit.StatusSuccess})
	}

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "active"})
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	id, err := parseAgentID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "agent_not_found", "invalid agent id")
		return
	}
	h.auditH.HandleList(w, r, id)
}
