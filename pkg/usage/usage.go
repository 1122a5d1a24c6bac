// Package usage implements the Usage Reconciler (C10): reads the platform's
// authoritative usage-units endpoint and overwrites the app-wide
// (agent_id=0, date) CostLog row, treating any failure as non-fatal.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/wisbric/postflow/internal/audit"
	"github.com/wisbric/postflow/pkg/adapters"
)

const (
	appWideAgentID = 0
	sourceUsage    = "usage_reconciler"
	eventReconcile = "reconcile"
)

// Store is the slice of pkg/store the reconciler needs.
type Store interface {
	SetXUsageActual(ctx context.Context, agentID int64, date time.Time, units float64, raw json.RawMessage, actual float64) error
}

// AuditLogger is the slice of internal/audit the reconciler needs; satisfied
// by *audit.Writer, and fakeable in tests without a live pool.
type AuditLogger interface {
	Log(ctx context.Context, e audit.Entry) (int64, error)
}

// Reconciler ties the platform usage endpoint to the app-wide CostLog row.
type Reconciler struct {
	store     Store
	platform  adapters.Platform
	audit     AuditLogger
	unitPrice *float64 // nil when no per-unit price is configured
}

// New builds a Reconciler. unitPrice is nil when USAGE_UNIT_PRICE is unset,
// in which case x_api_cost_actual is recorded as 0; the column is not left
// null.
func New(store Store, platform adapters.Platform, auditLogger AuditLogger, unitPrice *float64) *Reconciler {
	return &Reconciler{store: store, platform: platform, audit: auditLogger, unitPrice: unitPrice}
}

// Reconcile reads units for one agent-date from the platform and persists
// them; errors are logged to the audit trail and swallowed, never returned,
// per §4.10's "non-fatal" contract — the caller logs the outcome to PDCA.
func (r *Reconciler) Reconcile(ctx context.Context, agentID int64, date time.Time) error {
	units, raw, err := r.platform.GetDailyUsage(ctx, agentID, date)
	if err != nil {
		r.auditFailed(ctx, date, err)
		return nil
	}

	actual := 0.0
	if r.unitPrice != nil {
		actual = math.Round(units*(*r.unitPrice)*100) / 100
	}

	if err := r.store.SetXUsageActual(ctx, appWideAgentID, date, units, raw, actual); err != nil {
		r.auditFailed(ctx, date, err)
		return nil
	}

	_, _ = r.audit.Log(ctx, audit.Entry{AgentID: appWideAgentID, Date: date, Source: sourceUsage, EventType: eventReconcile, Status: audit.StatusSuccess})
	return nil
}

func (r *Reconciler) auditFailed(ctx context.Context, date time.Time, err error) {
	payload, _ := json.Marshal(map[string]string{"type": fmt.Sprintf("%T", err), "message": err.Error()})
	_, _ = r.audit.Log(ctx, audit.Entry{AgentID: appWideAgentID, Date: date, Source: sourceUsage, EventType: eventReconcile, Status: audit.StatusFailed, Payload: payload})
}
