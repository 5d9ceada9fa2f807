package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/calweather/internal/instrumentation"
)

// Client wraps the Google Calendar service for one user.
type Client struct {
	svc     *calendar.Service
	metrics *instrumentation.Metrics
}

// NewClient creates a Calendar client that sends requests through
// httpClient, which must authenticate them. Extra options are applied after
// the HTTP client, e.g. option.WithEndpoint in tests. metrics may be nil.
func NewClient(ctx context.Context, httpClient *http.Client, metrics *instrumentation.Metrics, opts ...option.ClientOption) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("http client cannot be nil")
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc, metrics: metrics}, nil
}

// ListUpcomingEvents lists at most maxResults single events starting at or
// after now, ordered by start time.
func (c *Client) ListUpcomingEvents(ctx context.Context, calendarID string, maxResults int64, now time.Time) (events []EventSummary, err error) {
	ctx, done := c.observe(ctx, instrumentation.OperationList)
	defer func() { done(err) }()

	if calendarID == "" {
		calendarID = DefaultCalendarID
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	resp, err := c.svc.Events.List(calendarID).
		TimeMin(now.UTC().Format(time.RFC3339)).
		MaxResults(maxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events = make([]EventSummary, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, toEventSummary(item))
	}
	return events, nil
}

// CreateEvent creates a timed event and returns it as stored by Google.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, input EventInput) (summary *EventSummary, err error) {
	ctx, done := c.observe(ctx, instrumentation.OperationCreate)
	defer func() { done(err) }()

	if calendarID == "" {
		calendarID = DefaultCalendarID
	}
	if input.TimeZone == "" {
		input.TimeZone = DefaultTimeZone
	}

	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start:       &calendar.EventDateTime{DateTime: input.Start, TimeZone: input.TimeZone},
		End:         &calendar.EventDateTime{DateTime: input.End, TimeZone: input.TimeZone},
	}

	created, err := c.svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	result := toEventSummary(created)
	return &result, nil
}

// observe starts an upstream span and returns a func that ends it and
// records the outcome.
func (c *Client) observe(ctx context.Context, operation string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := instrumentation.StartUpstreamSpan(ctx, instrumentation.ServiceCalendar, operation)
	return ctx, func(err error) {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		c.metrics.RecordUpstreamOperation(ctx, instrumentation.ServiceCalendar, operation, status, time.Since(start))
		span.End()
	}
}
