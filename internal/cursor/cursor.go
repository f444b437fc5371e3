// Package cursor tracks how far a tail session has consumed the event stream.
//
// The lookup API is inclusive on the window start, and the window start is
// moved to the newest timestamp seen, so every boundary event is fetched at
// least twice. The cursor remembers the identity of every event it has let
// through at or after the window start and rejects those on later polls.
package cursor

import (
	"time"

	"github.com/loykin/trailtail/internal/event"
)

// Cursor is owned by a single loop and is not safe for concurrent use.
type Cursor struct {
	start time.Time
	seen  map[string]time.Time
}

// New returns a cursor whose first window starts at start.
func New(start time.Time) *Cursor {
	return &Cursor{start: start, seen: make(map[string]time.Time)}
}

// WindowStart is the lower bound of the next query.
func (c *Cursor) WindowStart() time.Time { return c.start }

// Seen reports how many boundary identities are currently remembered.
func (c *Cursor) Seen() int { return len(c.seen) }

// Result is the outcome of filtering one batch.
type Result struct {
	Fresh      []event.Event
	Duplicates int
	Stale      int
}

// Filter drops events already let through and events older than the window
// start, marks the rest as seen and returns them in input order. The batch
// must already be sorted oldest first.
func (c *Cursor) Filter(batch []event.Event) Result {
	var r Result
	for _, ev := range batch {
		if ev.Time.Before(c.start) {
			r.Stale++
			continue
		}
		k := ev.Key()
		if _, dup := c.seen[k]; dup {
			r.Duplicates++
			continue
		}
		c.seen[k] = ev.Time
		r.Fresh = append(r.Fresh, ev)
	}
	return r
}

// Forget unmarks events Filter let through but the caller never consumed,
// so a later poll returns them as fresh.
func (c *Cursor) Forget(evs []event.Event) {
	for _, ev := range evs {
		delete(c.seen, ev.Key())
	}
}

// Advance moves the window start to the newest timestamp in batch. An empty
// batch leaves the cursor unchanged. The start never moves backward and never
// past now. Identities older than the new start are forgotten since the
// source will not return them again.
func (c *Cursor) Advance(batch []event.Event, now time.Time) bool {
	if len(batch) == 0 {
		return false
	}
	newest := batch[0].Time
	for _, ev := range batch[1:] {
		if ev.Time.After(newest) {
			newest = ev.Time
		}
	}
	if newest.After(now) {
		newest = now
	}
	if !newest.After(c.start) {
		return false
	}
	c.start = newest
	for k, ts := range c.seen {
		if ts.Before(c.start) {
			delete(c.seen, k)
		}
	}
	return true
}
