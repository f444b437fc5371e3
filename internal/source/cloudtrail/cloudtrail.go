// Package cloudtrail adapts the CloudTrail LookupEvents API to tail.Source.
package cloudtrail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/aws/smithy-go"

	"github.com/loykin/trailtail/internal/event"
	"github.com/loykin/trailtail/internal/tail"
)

// MaxPageSize is the largest page LookupEvents accepts.
const MaxPageSize = 50

// fatalCodes are API error codes a retry cannot fix.
var fatalCodes = map[string]struct{}{
	"AccessDenied":                     {},
	"AccessDeniedException":            {},
	"ExpiredToken":                     {},
	"ExpiredTokenException":            {},
	"InvalidClientTokenId":             {},
	"InvalidSignatureException":        {},
	"UnrecognizedClientException":      {},
	"InvalidLookupAttributesException": {},
	"InvalidTimeRangeException":        {},
	"InvalidMaxResultsException":       {},
	"InvalidEventCategoryException":    {},
	"OperationNotPermittedException":   {},
	"UnsupportedOperationException":    {},
	"OptInRequired":                    {},
	"SignatureDoesNotMatch":            {},
	"MissingAuthenticationToken":       {},
	"NotAuthorized":                    {},
}

// Options selects the AWS account and tunes pagination.
type Options struct {
	Profile string
	Region  string
	// PageSize is the MaxResults of each request, capped at MaxPageSize.
	PageSize int32
	Logger   *slog.Logger
}

// Source fetches events through a LookupEvents client.
type Source struct {
	api      cloudtrail.LookupEventsAPIClient
	creds    aws.CredentialsProvider
	region   string
	profile  string
	pageSize int32
	log      *slog.Logger
}

// Load resolves the shared AWS configuration for opts.Profile and
// opts.Region and returns a Source backed by a CloudTrail client.
func Load(ctx context.Context, opts Options) (*Source, error) {
	var lo []func(*config.LoadOptions) error
	if opts.Profile != "" {
		lo = append(lo, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		lo = append(lo, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, lo...)
	if err != nil {
		return nil, &tail.ConfigError{Op: "load aws config", Err: err}
	}
	s := New(cloudtrail.NewFromConfig(cfg), opts)
	s.creds = cfg.Credentials
	s.region = cfg.Region
	return s, nil
}

// New wraps an existing client. Region and credentials are only consulted
// by Check.
func New(api cloudtrail.LookupEventsAPIClient, opts Options) *Source {
	size := opts.PageSize
	if size <= 0 || size > MaxPageSize {
		size = MaxPageSize
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Source{
		api:      api,
		region:   opts.Region,
		profile:  opts.Profile,
		pageSize: size,
		log:      log,
	}
}

// Region is the resolved AWS region.
func (s *Source) Region() string { return s.region }

// Profile is the shared config profile in use, empty for the default chain.
func (s *Source) Profile() string { return s.profile }

// Check verifies that a region is set, that credentials resolve and that a
// minimal lookup is accepted.
func (s *Source) Check(ctx context.Context) error {
	if s.region == "" {
		return &tail.ConfigError{Op: "region", Err: errors.New("no AWS region configured; set --region or AWS_REGION")}
	}
	if s.creds != nil {
		if _, err := s.creds.Retrieve(ctx); err != nil {
			return &tail.ConfigError{Op: "credentials", Err: err}
		}
	}
	now := time.Now()
	_, err := s.api.LookupEvents(ctx, &cloudtrail.LookupEventsInput{
		StartTime:  aws.Time(now.Add(-time.Minute)),
		MaxResults: aws.Int32(1),
	})
	if err != nil {
		return classify("preflight", err)
	}
	return nil
}

// LookupEvents returns every event at or after start, newest first, reading
// all pages. Every failure is transient: credentials that expire mid-session
// may be refreshed before the next poll.
func (s *Source) LookupEvents(ctx context.Context, start time.Time) ([]event.Event, error) {
	in := &cloudtrail.LookupEventsInput{StartTime: aws.Time(start)}
	p := cloudtrail.NewLookupEventsPaginator(s.api, in, func(o *cloudtrail.LookupEventsPaginatorOptions) {
		o.Limit = s.pageSize
	})

	var out []event.Event
	pages := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			if code, ok := fatalCode(err); ok {
				s.log.Warn("lookup rejected", "code", code, "pages", pages)
			}
			return nil, &tail.SourceError{Op: "lookup", Err: err}
		}
		pages++
		for _, e := range page.Events {
			out = append(out, convert(e))
		}
	}
	s.log.Debug("lookup complete", "start", start, "pages", pages, "events", len(out))
	return out, nil
}

// classify separates configuration failures from transient ones using the
// API error code. Only the preflight check uses it.
func classify(op string, err error) error {
	if _, ok := fatalCode(err); ok {
		return &tail.ConfigError{Op: op, Err: err}
	}
	return &tail.SourceError{Op: op, Err: err}
}

func fatalCode(err error) (string, bool) {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return "", false
	}
	_, ok := fatalCodes[ae.ErrorCode()]
	return ae.ErrorCode(), ok
}

// trailDetail holds the fields lifted out of the CloudTrailEvent document.
type trailDetail struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func convert(e types.Event) event.Event {
	ev := event.Event{
		ID:     aws.ToString(e.EventId),
		Time:   aws.ToTime(e.EventTime),
		Source: aws.ToString(e.EventSource),
		Action: aws.ToString(e.EventName),
		Actor:  aws.ToString(e.Username),
	}
	for _, r := range e.Resources {
		ev.Resources = append(ev.Resources, event.Resource{
			Type: aws.ToString(r.ResourceType),
			Name: aws.ToString(r.ResourceName),
		})
	}
	if e.CloudTrailEvent != nil {
		ev.RawDetail = []byte(*e.CloudTrailEvent)
		var d trailDetail
		// malformed documents are left to the summarizer's fallback
		if err := json.Unmarshal(ev.RawDetail, &d); err == nil {
			ev.ErrorCode = d.ErrorCode
			ev.ErrorMessage = d.ErrorMessage
		}
	}
	return ev
}

// String describes the account selection for banners and logs.
func (s *Source) String() string {
	profile := s.profile
	if profile == "" {
		profile = "default"
	}
	return fmt.Sprintf("profile=%s region=%s", profile, s.region)
}
