// Package audit provides the append-only AuditLog writer (C1/C5). Writes are
// synchronous, unlike the teacher's buffered async writer: the auto-stop
// trigger policy (three consecutive failures for a source+event_type) reads
// back the rows it just wrote within the same call, which a batched
// background flush cannot guarantee.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Status values for an AuditLog row.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	StatusTriggered = "triggered"
)

// Entry is a single audit log row to be written.
type Entry struct {
	AgentID   int64 // 0 permitted for app-wide events
	Date      time.Time
	Source    string
	EventType string
	Status    string
	Reason    string // optional
	Payload   json.RawMessage
}

// Record is an AuditLog row as read back from the store.
type Record struct {
	ID        int64
	AgentID   int64
	Date      time.Time
	Source    string
	EventType string
	Status    string
	Reason    string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx, and *pgxpool.Conn, letting
// callers write audit rows either standalone or inside an existing
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Writer writes AuditLog rows synchronously.
type Writer struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewWriter creates a synchronous audit Writer.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	return &Writer{pool: pool, logger: logger}
}

// Log writes an audit entry using the pool directly (outside any caller transaction).
func (w *Writer) Log(ctx context.Context, e Entry) (int64, error) {
	return w.LogTx(ctx, w.pool, e)
}

// LogTx writes an audit entry using the given DBTX, so it can participate in
// a caller's transaction (e.g. the posting worker's per-post transaction).
func (w *Writer) LogTx(ctx context.Context, tx DBTX, e Entry) (int64, error) {
	if e.Payload == nil {
		e.Payload = json.RawMessage(`{}`)
	}
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO audit_logs (agent_id, date, source, event_type, status, reason, payload)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		RETURNING id
	`, e.AgentID, e.Date, e.Source, e.EventType, e.Status, e.Reason, e.Payload).Scan(&id)
	if err != nil {
		w.logger.Error("writing audit log entry", "error", err, "agent_id", e.AgentID, "source", e.Source, "event_type", e.EventType)
		return 0, fmt.Errorf("writing audit log entry: %w", err)
	}
	return id, nil
}

// Recent returns the most recent `limit` audit rows for (agent_id, source,
// event_type), newest first.
func (w *Writer) Recent(ctx context.Context, agentID int64, source, eventType string, limit int) ([]Record, error) {
	return w.RecentTx(ctx, w.pool, agentID, source, eventType, limit)
}

// RecentTx is Recent scoped to the given DBTX.
func (w *Writer) RecentTx(ctx context.Context, tx DBTX, agentID int64, source, eventType string, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, agent_id, date, source, event_type, status, COALESCE(reason, ''), payload, created_at
		FROM audit_logs
		WHERE agent_id = $1 AND source = $2 AND event_type = $3
		ORDER BY id DESC
		LIMIT $4
	`, agentID, source, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent audit logs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.AgentID, &r.Date, &r.Source, &r.EventType, &r.Status, &r.Reason, &r.Payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit log row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ConsecutiveFailures reports whether the last `limit` audit rows for
// (agent_id, source, event_type) all have status=failed. Returns false if
// fewer than `limit` rows exist. Only the newest `limit` rows are read, so a
// longer run of failures ending at the newest row also reports true.
func (w *Writer) ConsecutiveFailures(ctx context.Context, agentID int64, source, eventType string, limit int) (bool, error) {
	return w.ConsecutiveFailuresTx(ctx, w.pool, agentID, source, eventType, limit)
}

// ConsecutiveFailuresTx is ConsecutiveFailures scoped to the given DBTX.
func (w *Writer) ConsecutiveFailuresTx(ctx context.Context, tx DBTX, agentID int64, source, eventType string, limit int) (bool, error) {
	recs, err := w.RecentTx(ctx, tx, agentID, source, eventType, limit)
	if err != nil {
		return false, err
	}
	if len(recs) < limit {
		return false, nil
	}
	for _, r := range recs {
		if r.Status != StatusFailed {
			return false, nil
		}
	}
	return true, nil
}

// List returns up to limit audit rows for an agent, newest first, for the
// dashboard GET /api/agents/{id}/audit endpoint.
func (w *Writer) List(ctx context.Context, agentID int64, limit int) ([]Record, error) {
	rows, err := w.pool.Query(ctx, `
		SELECT id, agent_id, date, source, event_type, status, COALESCE(reason, ''), payload, created_at
		FROM audit_logs
		WHERE agent_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit logs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.AgentID, &r.Date, &r.Source, &r.EventType, &r.Status, &r.Reason, &r.Payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit log row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
