package xoauth

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/wisbric/postflow/internal/httpserver"
	"github.com/wisbric/postflow/pkg/domain"
)

// TokenStatusStore is the read slice the status handler needs.
type TokenStatusStore interface {
	GetXAuthToken(ctx context.Context, accountID int64) (domain.XAuthToken, error)
}

// Handler exposes the §6 `/oauth/x/*` dashboard routes.
type Handler struct {
	manager *Manager
	status  TokenStatusStore
	now     func() time.Time
}

// NewHandler builds a Handler. now defaults to time.Now when nil.
func NewHandler(manager *Manager, status TokenStatusStore) *Handler {
	return &Handler{manager: manager, status: status, now: time.Now}
}

func (h *Handler) clock() time.Time {
	if h.now != nil {
		return h.now().UTC()
	}
	return time.Now().UTC()
}

func parseAccountID(r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("account_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}

// HandleStart implements GET /oauth/x/start?account_id=….
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseAccountID(r)
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "account_not_found", "account_id is required")
		return
	}
	u, err := h.manager.StartAuthorize(r.Context(), accountID, h.clock())
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to start authorization")
		return
	}
	http.Redirect(w, r, u, http.StatusFound)
}

// HandleCallback implements GET /oauth/x/callback?state=…&code=….
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "oauth_state_invalid", "state and code are required")
		return
	}

	accountID, err := h.manager.HandleCallback(r.Context(), state, code, h.clock())
	if err == ErrStateInvalid {
		httpserver.RespondError(w, http.StatusBadRequest, "oauth_state_invalid", "state is invalid or expired")
		return
	}
	if xerr, ok := err.(*Error); ok {
		httpserver.RespondError(w, http.StatusBadGateway, xerr.Code, "token exchange failed")
		return
	}
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "token exchange failed")
		return
	}

	http.Redirect(w, r, "/accounts/"+strconv.FormatInt(accountID, 10)+"/auth/x?connected=1", http.StatusFound)
}

// HandleRefresh implements POST /oauth/x/refresh?account_id=….
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseAccountID(r)
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "account_not_found", "account_id is required")
		return
	}

	if err := h.manager.Refresh(r.Context(), accountID, h.clock()); err != nil {
		if xerr, ok := err.(*Error); ok {
			httpserver.RespondError(w, http.StatusBadGateway, xerr.Code, "refresh failed")
			return
		}
		httpserver.RespondError(w, http.StatusNotFound, "x_auth_token_not_found", "no token on file for this account")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"status": "refreshed"})
}

// HandleStatus implements GET /oauth/x/status?account_id=….
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseAccountID(r)
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "account_not_found", "account_id is required")
		return
	}

	tok, err := h.status.GetXAuthToken(r.Context(), accountID)
	if err != nil {
		httpserver.Respond(w, http.StatusOK, map[string]any{"connected": false})
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"connected":  true,
		"expires_at": tok.ExpiresAt,
		"scope":      tok.Scope,
		"token_type": tok.TokenType,
	})
}
