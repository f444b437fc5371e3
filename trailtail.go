// Package trailtail follows an AWS CloudTrail event stream and prints each
// new event as one aligned line, optionally archiving it and exposing the
// tail's progress over HTTP.
package trailtail

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	cfg "github.com/loykin/trailtail/internal/config"
	"github.com/loykin/trailtail/internal/event"
	"github.com/loykin/trailtail/internal/history"
	"github.com/loykin/trailtail/internal/history/factory"
	"github.com/loykin/trailtail/internal/metrics"
	"github.com/loykin/trailtail/internal/render"
	iapi "github.com/loykin/trailtail/internal/server"
	"github.com/loykin/trailtail/internal/source/cloudtrail"
	"github.com/loykin/trailtail/internal/tail"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Event = event.Event

type Resource = event.Resource

type Source = tail.Source

type Checker = tail.Checker

type Options = tail.Options

type Snapshot = tail.Snapshot

type State = tail.State

type SourceError = tail.SourceError

type ConfigError = tail.ConfigError

type Config = cfg.Config

type ArchiveSink = history.Sink

type ArchiveEntry = history.Entry

type CloudTrailOptions = cloudtrail.Options

type CloudTrailSource = cloudtrail.Source

type Columns = render.Columns

type StatusServer = iapi.Server

// DefaultColumns is the standard line layout.
var DefaultColumns = render.DefaultColumns

// Tail is a thin facade over internal/tail.Loop bound to a line renderer.
type Tail struct {
	inner *tail.Loop
	out   *render.Renderer
}

// TailOption tunes the line renderer of a Tail.
type TailOption = render.Option

// WithColumns sets the column widths.
func WithColumns(c Columns) TailOption { return render.WithColumns(c) }

// WithLocation sets the zone of the clock column.
func WithLocation(loc *time.Location) TailOption { return render.WithLocation(loc) }

// NewTail builds a tail reading from src and printing to w.
func NewTail(src Source, w io.Writer, opts Options, ro ...TailOption) *Tail {
	out := render.New(w, ro...)
	return &Tail{inner: tail.New(src, out, opts), out: out}
}

func (t *Tail) Run(ctx context.Context) error { return t.inner.Run(ctx) }
func (t *Tail) Snapshot() Snapshot            { return t.inner.Snapshot() }
func (t *Tail) SessionID() string             { return t.inner.SessionID() }
func (t *Tail) Written() int                  { return t.out.Written() }

// Stopped prints the shutdown message.
func (t *Tail) Stopped() error { return t.out.Stopped() }

// IsTemporary reports whether err is a retryable source failure.
func IsTemporary(err error) bool { return tail.IsTemporary(err) }

// IsConfig reports whether err is a configuration failure.
func IsConfig(err error) bool { return tail.IsConfig(err) }

// NewCloudTrailSource resolves the shared AWS configuration and returns a
// source backed by the CloudTrail LookupEvents API.
func NewCloudTrailSource(ctx context.Context, opts CloudTrailOptions) (*CloudTrailSource, error) {
	return cloudtrail.Load(ctx, opts)
}

// NewArchive opens one sink per DSN. It returns nil when dsns is empty.
func NewArchive(dsns []string) (ArchiveSink, error) {
	return factory.NewSinkFromDSNs(dsns)
}

// CloseArchive closes s when it holds resources.
func CloseArchive(s ArchiveSink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewConfigViper returns a viper instance with defaults and TRAILTAIL_
// environment overrides registered. Bind flags to it before LoadConfig.
func NewConfigViper() *viper.Viper { return cfg.New() }

// LoadConfig reads the optional TOML file at path through v and validates
// the merged result.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	c, err := cfg.Load(v, path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetupLogger builds the diagnostic logger described by c.
func SetupLogger(c *Config, stderr io.Writer) (*slog.Logger, io.Closer) {
	return c.Logger().Setup(stderr)
}

// NewStatusServer serves /healthz, /status and /metrics for t on addr.
func NewStatusServer(addr, basePath string, t *Tail, log *slog.Logger) (*StatusServer, error) {
	return iapi.NewServer(addr, basePath, t.inner, log)
}

// StatusHandler returns the /healthz, /status and /metrics routes for t,
// for mounting into an existing server.
func StatusHandler(t *Tail, basePath string) http.Handler {
	return iapi.NewRouter(t.inner, basePath).Handler()
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
