package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll results used as the "result" label of polls_total.
const (
	PollOK    = "ok"
	PollEmpty = "empty"
	PollError = "error"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trailtail",
			Subsystem: "tail",
			Name:      "polls_total",
			Help:      "Number of lookup polls by result.",
		}, []string{"result"},
	)
	pollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "trailtail",
			Subsystem: "tail",
			Name:      "poll_duration_seconds",
			Help:      "Latency of a single lookup poll including pagination.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	eventsRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trailtail",
			Subsystem: "tail",
			Name:      "events_rendered_total",
			Help:      "Number of events written to the output, by event source.",
		}, []string{"source"},
	)
	eventsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trailtail",
			Subsystem: "tail",
			Name:      "events_skipped_total",
			Help:      "Number of fetched events not rendered, by reason (duplicate, stale).",
		}, []string{"reason"},
	)
	cursorLag = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trailtail",
			Subsystem: "tail",
			Name:      "cursor_lag_seconds",
			Help:      "Distance between now and the current window start.",
		},
	)
	malformedDetail = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trailtail",
			Subsystem: "summary",
			Name:      "malformed_detail_total",
			Help:      "Number of events whose raw detail payload could not be parsed.",
		},
	)
	archiveErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trailtail",
			Subsystem: "archive",
			Name:      "errors_total",
			Help:      "Number of failed archive writes, by sink.",
		}, []string{"sink"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{polls, pollDuration, eventsRendered, eventsSkipped, cursorLag, malformedDetail, archiveErrors}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncPoll(result string) {
	if regOK.Load() {
		polls.WithLabelValues(result).Inc()
	}
}

func ObservePollDuration(seconds float64) {
	if regOK.Load() {
		pollDuration.Observe(seconds)
	}
}

func IncRendered(source string) {
	if regOK.Load() {
		eventsRendered.WithLabelValues(source).Inc()
	}
}

func AddSkipped(reason string, n int) {
	if regOK.Load() && n > 0 {
		eventsSkipped.WithLabelValues(reason).Add(float64(n))
	}
}

func SetCursorLag(seconds float64) {
	if regOK.Load() {
		cursorLag.Set(seconds)
	}
}

func IncMalformedDetail() {
	if regOK.Load() {
		malformedDetail.Inc()
	}
}

func IncArchiveError(sink string) {
	if regOK.Load() {
		archiveErrors.WithLabelValues(sink).Inc()
	}
}
