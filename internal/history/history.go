package history

import (
	"context"
	"errors"
	"time"

	"github.com/loykin/trailtail/internal/event"
)

// Entry is one rendered audit event exported to an archive.
// SessionID distinguishes tail runs; the same event may be archived by
// several sessions since the cursor is not persisted.
type Entry struct {
	SessionID  string    `json:"session_id"`
	ObservedAt time.Time `json:"observed_at"`
	EventID    string    `json:"event_id"`
	EventTime  time.Time `json:"event_time"`
	Source     string    `json:"source"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	ErrorCode  string    `json:"error_code,omitempty"`
	Annotation string    `json:"annotation,omitempty"`
}

// NewEntry builds the archive entry for a rendered event.
func NewEntry(session string, observed time.Time, ev event.Event, annotation string) Entry {
	return Entry{
		SessionID:  session,
		ObservedAt: observed.UTC(),
		EventID:    ev.Key(),
		EventTime:  ev.Time.UTC(),
		Source:     ev.Source,
		Action:     ev.Action,
		Actor:      ev.Actor,
		ErrorCode:  ev.ErrorCode,
		Annotation: annotation,
	}
}

// Sink is a destination for rendered events (databases, search indexes).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Entry) error
}

// Named sinks report a short label used in logs and metrics.
type Named interface {
	Name() string
}

// NameOf returns the sink label, or "sink" when it has none.
func NameOf(s Sink) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return "sink"
}

// Multi fans an entry out to every sink. All sinks are attempted; the
// returned error joins the individual failures.
type Multi []Sink

func (m Multi) Send(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Name() string { return "multi" }

// Close closes every sink that implements io.Closer.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
