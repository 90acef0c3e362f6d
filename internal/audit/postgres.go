package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/leonanthomaz/firecloud-console/internal/ids"
)

// Recorder appends audit events to Postgres in addition to the JSON log.
// A nil Recorder degrades to log-only, so callers never branch on wiring.
type Recorder struct {
	db *sql.DB
}

// Open connects the recorder to Postgres via the pgx stdlib driver.
func Open(dsn string) (*Recorder, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Recorder{db: db}, nil
}

// NewRecorder wraps an existing handle. Used by tests.
func NewRecorder(db *sql.DB) *Recorder { return &Recorder{db: db} }

// Close releases the database handle.
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// DB exposes the handle for readiness probes.
func (r *Recorder) DB() *sql.DB {
	if r == nil {
		return nil
	}
	return r.db
}

// Record writes the event to the log line sink and, when a database is
// attached, appends it to audit_events. The log write happens first so an
// insert failure never silences the event entirely.
func (r *Recorder) Record(ctx context.Context, event string, fields map[string]any) error {
	if err := LogEvent(ctx, event, fields); err != nil {
		return err
	}
	if r == nil || r.db == nil {
		return nil
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("audit: marshal fields: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		insert into audit_events(id, occurred_at, request_id, actor, event, fields)
		values ($1, $2, $3, $4, $5, $6)
	`, ids.New(), time.Now().UTC(), RequestIDFromContext(ctx), ActorFromContext(ctx), event, payload)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}
