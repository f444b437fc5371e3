package event

import (
	"strings"
	"time"
)

// Resource is a reference to an AWS resource touched by an event.
type Resource struct {
	Type string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
}

// Event is one audit record as returned by the lookup API.
// Events are never modified after they are received.
type Event struct {
	ID                string         `json:"id,omitempty"`
	Time              time.Time      `json:"time"`
	Source            string         `json:"source"`
	Action            string         `json:"action"`
	Actor             string         `json:"actor,omitempty"`
	ErrorCode         string         `json:"error_code,omitempty"`
	ErrorMessage      string         `json:"error_message,omitempty"`
	Resources         []Resource     `json:"resources,omitempty"`
	RequestParameters map[string]any `json:"request_parameters,omitempty"`
	// RawDetail is the full JSON document for the event. It may be absent or malformed.
	RawDetail []byte `json:"-"`
}

// Key identifies an event for de-duplication. The source-provided ID wins;
// otherwise the timestamp, source, action and actor are combined.
func (e Event) Key() string {
	if e.ID != "" {
		return e.ID
	}
	var b strings.Builder
	b.WriteString(e.Time.UTC().Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(e.Source)
	b.WriteByte('|')
	b.WriteString(e.Action)
	b.WriteByte('|')
	b.WriteString(e.Actor)
	return b.String()
}

// Failed reports whether the event carries an error code.
func (e Event) Failed() bool { return e.ErrorCode != "" }
