// Package tail runs the live-tail polling loop: query the source from the
// cursor's window start, render what is new, advance, sleep, repeat.
package tail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/trailtail/internal/age"
	"github.com/loykin/trailtail/internal/cursor"
	"github.com/loykin/trailtail/internal/event"
	"github.com/loykin/trailtail/internal/history"
	"github.com/loykin/trailtail/internal/metrics"
	"github.com/loykin/trailtail/internal/render"
	"github.com/loykin/trailtail/internal/summary"
)

// Defaults applied by New for zero-valued options.
const (
	DefaultInterval       = 5 * time.Second
	DefaultQueryTimeout   = 30 * time.Second
	DefaultArchiveTimeout = 10 * time.Second
)

// Source answers windowed lookups. Events at or after start are returned,
// in any order; the CloudTrail source returns them newest first.
type Source interface {
	LookupEvents(ctx context.Context, start time.Time) ([]event.Event, error)
}

// Checker is implemented by sources that can validate credentials and
// parameters before the first poll.
type Checker interface {
	Check(ctx context.Context) error
}

// Options configure a Loop. They are read once by New.
type Options struct {
	Interval     time.Duration
	Lookback     time.Duration
	QueryTimeout time.Duration
	// MaxConsecutiveFailures ends the run once more transient failures than
	// this happen in a row. Zero retries forever.
	MaxConsecutiveFailures int
	// Simple selects the coarse age format and the reduced summary rules.
	Simple bool
	// ResourceMax truncates resource names in annotations; see summary.Options.
	ResourceMax int

	// Title and Details make up the startup banner; no banner without a title.
	Title   string
	Details []string

	Archive history.Sink
	// ArchiveTimeout bounds each archive write.
	ArchiveTimeout time.Duration
	SessionID      string
	Logger         *slog.Logger
	Now            func() time.Time
}

// State names the phase the loop is in.
type State string

const (
	StateInit     State = "init"
	StatePolling  State = "polling"
	StateSleeping State = "sleeping"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// Snapshot is an immutable view of the loop, published after every cycle.
type Snapshot struct {
	SessionID           string    `json:"session_id"`
	State               State     `json:"state"`
	StartedAt           time.Time `json:"started_at"`
	WindowStart         time.Time `json:"window_start"`
	Polls               int       `json:"polls"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Rendered            int       `json:"rendered"`
	Duplicates          int       `json:"duplicates"`
	Stale               int       `json:"stale"`
	Tracked             int       `json:"tracked"`
	LastPoll            time.Time `json:"last_poll,omitzero"`
	LastError           string    `json:"last_error,omitempty"`
}

// Loop owns the cursor and is driven by a single goroutine through Run.
type Loop struct {
	src  Source
	out  *render.Renderer
	sum  *summary.Summarizer
	opts Options
	log  *slog.Logger

	snap atomic.Pointer[Snapshot]
	// mutable cycle state, touched only by Run
	cur  *cursor.Cursor
	stat Snapshot
}

// New builds a loop reading from src and writing through out.
func New(src Source, out *render.Renderer, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.ArchiveTimeout <= 0 {
		opts.ArchiveTimeout = DefaultArchiveTimeout
	}
	if opts.Lookback < 0 {
		opts.Lookback = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	l := &Loop{
		src:  src,
		out:  out,
		opts: opts,
		log:  log.With("session", opts.SessionID),
		sum: summary.New(summary.Options{
			ResourceMax: opts.ResourceMax,
			Simple:      opts.Simple,
			Logger:      log,
		}),
	}
	l.stat = Snapshot{SessionID: opts.SessionID, State: StateInit}
	l.publish()
	return l
}

// SessionID identifies this run in logs and archived records.
func (l *Loop) SessionID() string { return l.opts.SessionID }

// Snapshot returns the latest published state. Safe for concurrent use.
func (l *Loop) Snapshot() Snapshot { return *l.snap.Load() }

func (l *Loop) publish() {
	s := l.stat
	if l.cur != nil {
		s.WindowStart = l.cur.WindowStart()
		s.Tracked = l.cur.Seen()
	}
	l.snap.Store(&s)
}

func (l *Loop) setState(st State) {
	l.stat.State = st
	l.publish()
}

// Run polls until ctx is cancelled, in which case it returns nil. It returns
// a *ConfigError when the preflight check fails, a write error when the
// output breaks, and the last error when MaxConsecutiveFailures is exceeded.
// Lookup failures after startup are always retried. Run must not be called
// more than once.
func (l *Loop) Run(ctx context.Context) error {
	if c, ok := l.src.(Checker); ok {
		if err := c.Check(ctx); err != nil {
			if ctx.Err() != nil {
				l.setState(StateStopped)
				return nil
			}
			l.fail(err)
			if IsConfig(err) {
				return err
			}
			return &ConfigError{Op: "preflight", Err: err}
		}
	}

	started := l.opts.Now()
	l.cur = cursor.New(started.Add(-l.opts.Lookback))
	l.stat.StartedAt = started
	l.publish()
	l.log.Info("tail started",
		"window_start", l.cur.WindowStart(), "interval", l.opts.Interval, "simple", l.opts.Simple)

	if l.opts.Title != "" {
		details := append([]string(nil), l.opts.Details...)
		details = append(details, "Starting from: "+l.cur.WindowStart().Format(time.RFC3339))
		if err := l.out.Banner(l.opts.Title, details...); err != nil {
			return fmt.Errorf("write banner: %w", err)
		}
	}

	failures := 0
	for {
		if ctx.Err() != nil {
			return l.stopped()
		}
		l.setState(StatePolling)
		err := l.poll(ctx)
		switch {
		case err == nil:
			failures = 0
			l.stat.LastError = ""
		case ctx.Err() != nil:
			return l.stopped()
		case IsTemporary(err):
			failures++
			l.stat.LastError = err.Error()
			l.log.Warn("poll failed", "err", err, "consecutive", failures)
			_ = l.out.Notice("poll failed, retrying in %s: %v", l.opts.Interval, err)
			if limit := l.opts.MaxConsecutiveFailures; limit > 0 && failures > limit {
				l.stat.ConsecutiveFailures = failures
				l.fail(err)
				return fmt.Errorf("giving up after %d consecutive failures: %w", failures, err)
			}
		default:
			l.fail(err)
			return err
		}
		l.stat.ConsecutiveFailures = failures
		l.setState(StateSleeping)

		if !sleep(ctx, l.opts.Interval) {
			return l.stopped()
		}
	}
}

func (l *Loop) stopped() error {
	l.log.Info("tail stopped", "rendered", l.stat.Rendered, "polls", l.stat.Polls)
	l.setState(StateStopped)
	return nil
}

func (l *Loop) fail(err error) {
	l.stat.LastError = err.Error()
	l.setState(StateFailed)
}

// poll runs one lookup/render/advance cycle. Lookup failures leave the
// cursor untouched. Cancellation stops rendering between events and the
// cursor only covers what was written.
func (l *Loop) poll(ctx context.Context) error {
	start := l.cur.WindowStart()
	began := time.Now()
	pctx, cancel := context.WithTimeout(ctx, l.opts.QueryTimeout)
	batch, err := l.src.LookupEvents(pctx, start)
	cancel()
	metrics.ObservePollDuration(time.Since(began).Seconds())
	l.stat.Polls++
	l.stat.LastPoll = l.opts.Now()
	if err != nil {
		metrics.IncPoll(metrics.PollError)
		return classify("lookup", err)
	}

	ordered := Order(batch)
	res := l.cur.Filter(ordered)
	now := l.opts.Now()
	for i, ev := range res.Fresh {
		if err := ctx.Err(); err != nil {
			l.cur.Forget(res.Fresh[i:])
			l.cur.Advance(res.Fresh[:i], now)
			return err
		}
		if err := l.emit(ctx, ev, now); err != nil {
			return err
		}
	}
	l.cur.Advance(ordered, now)

	if len(res.Fresh) == 0 {
		metrics.IncPoll(metrics.PollEmpty)
	} else {
		metrics.IncPoll(metrics.PollOK)
	}
	metrics.AddSkipped("duplicate", res.Duplicates)
	metrics.AddSkipped("stale", res.Stale)
	metrics.SetCursorLag(now.Sub(l.cur.WindowStart()).Seconds())

	l.stat.Duplicates += res.Duplicates
	l.stat.Stale += res.Stale
	l.log.Debug("poll complete",
		"window_start", start, "fetched", len(batch), "rendered", len(res.Fresh),
		"duplicates", res.Duplicates, "stale", res.Stale, "next_start", l.cur.WindowStart())
	return nil
}

// emit renders one event and hands it to the archive. Archive failures are
// logged and counted; they never stop the tail.
func (l *Loop) emit(ctx context.Context, ev event.Event, now time.Time) error {
	annotation := l.sum.Summarize(ev)
	a := age.Format(ev.Time, now)
	if l.opts.Simple {
		a = age.FormatCoarse(ev.Time, now)
	}
	if err := l.out.Write(l.out.Line(a, ev.Time, ev.Source, ev.Action, ev.Actor, annotation)); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	l.stat.Rendered++
	metrics.IncRendered(ev.Source)

	if l.opts.Archive == nil {
		return nil
	}
	actx, cancel := context.WithTimeout(ctx, l.opts.ArchiveTimeout)
	defer cancel()
	if err := l.opts.Archive.Send(actx, history.NewEntry(l.opts.SessionID, now, ev, annotation)); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		name := history.NameOf(l.opts.Archive)
		metrics.IncArchiveError(name)
		l.log.Warn("archive write failed", "sink", name, "event", ev.Key(), "err", err)
	}
	return nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
