package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/trailtail/internal/history"
)

// Sink writes rendered events to a SQLite database.
type Sink struct {
	db *sql.DB
}

// New creates a new SQLite archive sink.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}

	// Handle sqlite:// prefix
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)

	sink := &Sink{db: db}
	if err := sink.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sink, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_events(
			session_id TEXT NOT NULL,
			observed_at TIMESTAMP NOT NULL DEFAULT (CURRENT_TIMESTAMP),
			event_id TEXT NOT NULL,
			event_time TIMESTAMP NOT NULL,
			source TEXT NOT NULL,
			action TEXT NOT NULL,
			actor TEXT,
			error_code TEXT,
			annotation TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_time ON audit_events(event_time);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_event ON audit_events(event_id);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e history.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events(session_id, observed_at, event_id, event_time, source, action, actor, error_code, annotation)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.SessionID, e.ObservedAt.UTC(), e.EventID, e.EventTime.UTC(), e.Source, e.Action,
		nullable(e.Actor), nullable(e.ErrorCode), nullable(e.Annotation))
	return err
}

// Count returns the number of archived rows for an event id.
func (s *Sink) Count(ctx context.Context, eventID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events WHERE event_id = ?`, eventID).Scan(&n)
	return n, err
}

func (s *Sink) Name() string { return "sqlite" }

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
