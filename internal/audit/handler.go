package audit

import (
	"net/http"
	"strconv"

	"github.com/wisbric/postflow/internal/httpserver"
)

// Handler exposes the audit trail for GET /api/agents/{id}/audit.
type Handler struct {
	writer *Writer
}

// NewHandler creates an audit Handler.
func NewHandler(writer *Writer) *Handler {
	return &Handler{writer: writer}
}

// HandleList handles GET /api/agents/{id}/audit?limit=1..200. agentID is
// parsed by the caller (the agents handler owns the {id} route parameter)
// and passed in directly.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request, agentID int64) {
	const defaultLimit = 50
	const maxLimit = 200

	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "limit must be an integer between 1 and 200")
			return
		}
		limit = n
	}

	entries, err := h.writer.List(r.Context(), agentID, limit)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list audit log")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"agent_id": agentID,
		"entries":  entries,
	})
}
