// Package sqlite keeps the reservation intent log in an append-only SQLite table.
// WAL mode lets the reconciler scan while placement keeps appending.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-coordinator/internal/domain/intent"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so recorded_at compares correctly as TEXT.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS reservation_intents (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    intent_id   TEXT    NOT NULL,
    order_id    TEXT    NOT NULL,
    line_index  INTEGER NOT NULL,
    product_id  INTEGER NOT NULL,
    units       INTEGER NOT NULL,
    status      TEXT    NOT NULL,
    trace_id    TEXT    NOT NULL DEFAULT '',
    span_id     TEXT    NOT NULL DEFAULT '',
    recorded_at TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reservation_intents_intent ON reservation_intents(intent_id, id);
CREATE INDEX IF NOT EXISTS idx_reservation_intents_order ON reservation_intents(order_id);
CREATE INDEX IF NOT EXISTS idx_reservation_intents_trace ON reservation_intents(trace_id);
`

// IntentLog is the SQLite implementation of intent.Log.
type IntentLog struct {
	db *sql.DB
}

var _ intent.Log = (*IntentLog)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*IntentLog, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &IntentLog{db: db}, nil
}

func (l *IntentLog) Close() error {
	return l.db.Close()
}

func (l *IntentLog) Append(ctx context.Context, e *intent.Entry) error {
	const q = `
		INSERT INTO reservation_intents
			(intent_id, order_id, line_index, product_id, units, status, trace_id, span_id, recorded_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?)`

	recorded := e.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}
	_, err := l.db.ExecContext(ctx, q,
		e.IntentID,
		e.OrderID,
		e.LineIndex,
		e.ProductID,
		e.Units,
		string(e.Status),
		e.TraceID,
		e.SpanID,
		formatTime(recorded),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append intent %q: %w", e.IntentID, err)
	}
	return nil
}

func (l *IntentLog) Stale(ctx context.Context, cutoff time.Time) ([]intent.Entry, error) {
	const q = `
		SELECT r.intent_id, r.order_id, r.line_index, r.product_id, r.units, r.status,
		       r.trace_id, r.span_id, r.recorded_at
		FROM   reservation_intents r
		JOIN  (SELECT intent_id, MAX(id) AS id FROM reservation_intents GROUP BY intent_id) latest
		       ON latest.id = r.id
		WHERE  r.status IN (?, ?)
		  AND  r.recorded_at < ?
		ORDER  BY r.recorded_at, r.id`

	rows, err := l.db.QueryContext(ctx, q,
		string(intent.StatusPending), string(intent.StatusReserved), formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan stale intents: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// History returns every transition recorded for intentID, oldest first.
func (l *IntentLog) History(ctx context.Context, intentID string) ([]intent.Entry, error) {
	const q = `
		SELECT intent_id, order_id, line_index, product_id, units, status,
		       trace_id, span_id, recorded_at
		FROM   reservation_intents
		WHERE  intent_id = ?
		ORDER  BY id`

	rows, err := l.db.QueryContext(ctx, q, intentID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: history for %q: %w", intentID, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]intent.Entry, error) {
	out := make([]intent.Entry, 0)
	for rows.Next() {
		var (
			e        intent.Entry
			status   string
			recorded string
		)
		if err := rows.Scan(&e.IntentID, &e.OrderID, &e.LineIndex, &e.ProductID, &e.Units,
			&status, &e.TraceID, &e.SpanID, &recorded); err != nil {
			return nil, fmt.Errorf("sqlite: scan intent: %w", err)
		}
		t, err := time.Parse(timeLayout, recorded)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse recorded_at %q: %w", recorded, err)
		}
		e.Status = intent.Status(status)
		e.RecordedAt = t
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate intents: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
