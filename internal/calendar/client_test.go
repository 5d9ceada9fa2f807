package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), srv.Client(), nil, option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresHTTPClient(t *testing.T) {
	_, err := NewClient(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestListUpcomingEvents(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600))

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "5", q.Get("maxResults"))
		assert.Equal(t, "startTime", q.Get("orderBy"))
		assert.Equal(t, "true", q.Get("singleEvents"))
		assert.Equal(t, "2026-03-01T11:30:00Z", q.Get("timeMin"))

		_ = json.NewEncoder(w).Encode(calendar.Events{Items: []*calendar.Event{
			{
				Id:       "ev1",
				Summary:  "Standup",
				Location: "Room 1",
				Start:    &calendar.EventDateTime{DateTime: "2026-03-02T09:00:00Z"},
				End:      &calendar.EventDateTime{DateTime: "2026-03-02T09:15:00Z"},
			},
			{
				Id:    "ev2",
				Start: &calendar.EventDateTime{Date: "2026-03-03"},
				End:   &calendar.EventDateTime{Date: "2026-03-04"},
			},
		}})
	})

	events, err := client.ListUpcomingEvents(context.Background(), "", 5, now)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, EventSummary{
		ID:       "ev1",
		Summary:  "Standup",
		Start:    "2026-03-02T09:00:00Z",
		End:      "2026-03-02T09:15:00Z",
		Location: "Room 1",
	}, events[0])

	assert.Equal(t, "No title", events[1].Summary)
	assert.Equal(t, "2026-03-03", events[1].Start)
	assert.Equal(t, "2026-03-04", events[1].End)
}

func TestListUpcomingEventsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/team@example.com/events", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("maxResults"))
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	events, err := client.ListUpcomingEvents(context.Background(), "team@example.com", 0, time.Now())
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestListUpcomingEventsAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"forbidden"}}`))
	})

	_, err := client.ListUpcomingEvents(context.Background(), "primary", 10, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list events")
}

func TestCreateEvent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)

		var got calendar.Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "Review", got.Summary)
		assert.Equal(t, "Quarterly", got.Description)
		assert.Empty(t, got.Location)
		assert.Equal(t, "2026-03-05T10:00:00", got.Start.DateTime)
		assert.Equal(t, "UTC", got.Start.TimeZone)
		assert.Equal(t, "2026-03-05T11:00:00", got.End.DateTime)
		assert.Equal(t, "UTC", got.End.TimeZone)

		got.Id = "new1"
		got.HtmlLink = "https://calendar.google.com/event?eid=new1"
		_ = json.NewEncoder(w).Encode(got)
	})

	created, err := client.CreateEvent(context.Background(), "", EventInput{
		Summary:     "Review",
		Description: "Quarterly",
		Start:       "2026-03-05T10:00:00",
		End:         "2026-03-05T11:00:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "new1", created.ID)
	assert.Equal(t, "Review", created.Summary)
	assert.Equal(t, "2026-03-05T10:00:00", created.Start)
	assert.Equal(t, "https://calendar.google.com/event?eid=new1", created.HTMLLink)
}

func TestToEventSummaryNil(t *testing.T) {
	assert.Equal(t, EventSummary{}, toEventSummary(nil))
	assert.Empty(t, eventTime(nil))
}
