// Package render formats tail lines and writes them to the output stream.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Columns holds the fixed widths of the tail line. Widths do not change
// during a run.
type Columns struct {
	Age      int
	Source   int
	Action   int
	Actor    int
	ActorMax int
}

// DefaultColumns mirrors the classic live-tail layout.
var DefaultColumns = Columns{Age: 6, Source: 15, Action: 30, Actor: 18, ActorMax: 15}

// ClockLayout is the format of the wall-clock column.
const ClockLayout = "15:04:05"

// DefaultSourceSuffix is stripped from event sources before display.
const DefaultSourceSuffix = ".amazonaws.com"

// SystemActor is shown for events without a user name.
const SystemActor = "system"

// Line is a single formatted event. It is never retained after writing.
type Line struct {
	Age        string
	Clock      string
	Source     string
	Action     string
	Actor      string
	Annotation string
}

// Renderer writes whole lines to w. Each call issues exactly one Write.
type Renderer struct {
	w       io.Writer
	cols    Columns
	loc     *time.Location
	suffix  string
	mu      sync.Mutex
	written int
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithColumns overrides the column widths. Non-positive widths keep the default.
func WithColumns(c Columns) Option {
	return func(r *Renderer) {
		if c.Age > 0 {
			r.cols.Age = c.Age
		}
		if c.Source > 0 {
			r.cols.Source = c.Source
		}
		if c.Action > 0 {
			r.cols.Action = c.Action
		}
		if c.Actor > 0 {
			r.cols.Actor = c.Actor
		}
		if c.ActorMax > 0 {
			r.cols.ActorMax = c.ActorMax
		}
	}
}

// WithLocation sets the zone of the clock column.
func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithSourceSuffix sets the suffix stripped from sources; empty disables stripping.
func WithSourceSuffix(s string) Option {
	return func(r *Renderer) { r.suffix = s }
}

// New returns a Renderer writing to w.
func New(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{w: w, cols: DefaultColumns, loc: time.Local, suffix: DefaultSourceSuffix}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Columns returns the widths in effect.
func (r *Renderer) Columns() Columns { return r.cols }

// Line builds the display fields for one event.
func (r *Renderer) Line(age string, ts time.Time, source, action, actor, annotation string) Line {
	if actor == "" {
		actor = SystemActor
	}
	if r.suffix != "" {
		source = strings.TrimSuffix(source, r.suffix)
	}
	return Line{
		Age:        age,
		Clock:      ts.In(r.loc).Format(ClockLayout),
		Source:     source,
		Action:     action,
		Actor:      clip(actor, r.cols.ActorMax),
		Annotation: annotation,
	}
}

// Format lays out l according to the column widths, without a trailing newline.
func (r *Renderer) Format(l Line) string {
	return fmt.Sprintf("%*s %s %-*s %-*s %-*s%s",
		r.cols.Age, l.Age,
		l.Clock,
		r.cols.Source, l.Source,
		r.cols.Action, l.Action,
		r.cols.Actor, l.Actor,
		l.Annotation)
}

// Write renders l as one line.
func (r *Renderer) Write(l Line) error {
	s := r.Format(l)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.WriteString(r.w, s+"\n"); err != nil {
		return err
	}
	r.written++
	return nil
}

// Banner writes the startup header.
func (r *Renderer) Banner(title string, details ...string) error {
	lines := append([]string{title + " - Press Ctrl+C to stop"}, details...)
	lines = append(lines, "Waiting for new events...", strings.Repeat("-", 70))
	return r.println(strings.Join(lines, "\n"))
}

// Notice writes a non-fatal status message, e.g. a failed poll.
func (r *Renderer) Notice(format string, args ...any) error {
	return r.println("! " + fmt.Sprintf(format, args...))
}

// Stopped writes the shutdown message.
func (r *Renderer) Stopped() error {
	return r.println("\nStopped")
}

// Written is the number of event lines written so far.
func (r *Renderer) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

func (r *Renderer) println(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := io.WriteString(r.w, s+"\n")
	return err
}

func clip(s string, max int) string {
	if max <= 0 {
		return s
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	return string(rs[:max])
}
