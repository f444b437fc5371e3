// Package summary turns a semi-structured audit event into the short
// annotation printed at the end of a tail line.
package summary

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/loykin/trailtail/internal/event"
	"github.com/loykin/trailtail/internal/metrics"
)

// Defaults for resource name truncation.
const (
	DefaultResourceMax         = 30
	DefaultFallbackResourceMax = 25
)

// Options tunes the summarizer. The zero value is usable.
type Options struct {
	// ResourceMax truncates resource names in the "-> name" annotation.
	// Zero selects DefaultResourceMax, a negative value disables truncation.
	ResourceMax int
	// FallbackResourceMax applies when the raw detail payload cannot be parsed.
	FallbackResourceMax int
	// Simple drops the request-parameter rules.
	Simple bool
	Logger *slog.Logger
}

// Summarizer evaluates an ordered rule chain; the first rule that produces
// an annotation wins.
type Summarizer struct {
	opts  Options
	rules []rule
	log   *slog.Logger
}

// view is the merged, parsed form of an event the rules operate on.
type view struct {
	ev           event.Event
	errorCode    string
	errorMessage string
	params       map[string]any
}

type rule func(v view) (string, bool)

// detail is the subset of the CloudTrail event document the rules need.
type detail struct {
	ErrorCode         string `json:"errorCode"`
	ErrorMessage      string `json:"errorMessage"`
	RequestParameters any    `json:"requestParameters"`
}

// New builds a Summarizer from opts.
func New(opts Options) *Summarizer {
	if opts.ResourceMax == 0 {
		opts.ResourceMax = DefaultResourceMax
	}
	if opts.FallbackResourceMax == 0 {
		opts.FallbackResourceMax = DefaultFallbackResourceMax
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Summarizer{opts: opts, log: log}
	s.rules = []rule{errorRule, s.resourceRule}
	if !opts.Simple {
		s.rules = append(s.rules, paramRule)
	}
	return s
}

// Summarize returns the annotation for ev, possibly empty. It never fails:
// a malformed detail payload degrades to the resource-only fallback.
func (s *Summarizer) Summarize(ev event.Event) string {
	v, err := s.parse(ev)
	if err != nil {
		metrics.IncMalformedDetail()
		s.log.Debug("event detail unparseable, using resource fallback",
			"event", ev.Key(), "action", ev.Action, "err", err)
		return s.fallback(ev)
	}
	for _, r := range s.rules {
		if msg, ok := r(v); ok {
			return msg
		}
	}
	return ""
}

func (s *Summarizer) parse(ev event.Event) (view, error) {
	v := view{
		ev:           ev,
		errorCode:    ev.ErrorCode,
		errorMessage: ev.ErrorMessage,
		params:       ev.RequestParameters,
	}
	if len(ev.RawDetail) == 0 {
		return v, nil
	}
	var d detail
	if err := json.Unmarshal(ev.RawDetail, &d); err != nil {
		return view{}, fmt.Errorf("decode event detail: %w", err)
	}
	if v.errorCode == "" {
		v.errorCode = d.ErrorCode
	}
	if v.errorMessage == "" {
		v.errorMessage = d.ErrorMessage
	}
	if v.params == nil {
		if m, ok := d.RequestParameters.(map[string]any); ok {
			v.params = m
		}
	}
	return v, nil
}

func (s *Summarizer) fallback(ev event.Event) string {
	if name := firstResourceName(ev); name != "" {
		return " -> " + truncate(name, s.opts.FallbackResourceMax)
	}
	return ""
}

func errorRule(v view) (string, bool) {
	if v.errorCode == "" {
		return "", false
	}
	msg := v.errorMessage
	if msg == "" {
		msg = v.errorCode
	}
	return " ERROR: " + msg, true
}

func (s *Summarizer) resourceRule(v view) (string, bool) {
	name := firstResourceName(v.ev)
	if name == "" {
		return "", false
	}
	return " -> " + truncate(name, s.opts.ResourceMax), true
}

// paramProbe maps a request parameter key to its annotation.
type paramProbe struct {
	key    string
	label  string
	counts bool
}

var paramProbes = []paramProbe{
	{key: "name", label: "name"},
	{key: "clusterName", label: "cluster"},
	{key: "instanceIds", label: "instances", counts: true},
	{key: "groupNames", label: "groups", counts: true},
	{key: "bucketName", label: "bucket"},
	{key: "functionName", label: "function"},
	{key: "roleName", label: "role"},
	{key: "userName", label: "user"},
	{key: "tableName", label: "table"},
}

// paramRule matches only when params is a mapping; when it is, the first
// probe decides and an empty annotation is a terminal answer.
func paramRule(v view) (string, bool) {
	if v.params == nil {
		return "", false
	}
	for _, p := range paramProbes {
		val, ok := v.params[p.key]
		if !ok {
			continue
		}
		if p.counts {
			return fmt.Sprintf(" %s=%d", p.label, count(val)), true
		}
		return fmt.Sprintf(" %s=%v", p.label, val), true
	}
	return "", true
}

// count is the length of a sequence; any other present value counts as one.
func count(val any) int {
	if val == nil {
		return 0
	}
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len()
	default:
		return 1
	}
}

func firstResourceName(ev event.Event) string {
	if len(ev.Resources) == 0 {
		return ""
	}
	return ev.Resources[0].Name
}

func truncate(s string, max int) string {
	if max < 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
