package calendar

import (
	calendar "google.golang.org/api/calendar/v3"
)

const (
	// DefaultCalendarID is the signed-in user's primary calendar.
	DefaultCalendarID = "primary"

	// DefaultMaxResults is the number of events listed when no limit is given.
	DefaultMaxResults = 10

	// DefaultTimeZone is used for created events.
	DefaultTimeZone = "UTC"

	untitled = "No title"
)

// EventInput describes an event to create. Start and End are ISO-8601
// date-times interpreted in TimeZone.
type EventInput struct {
	Summary     string
	Description string
	Location    string
	Start       string
	End         string
	TimeZone    string
}

// EventSummary is a calendar event reduced to the fields the tools return.
// Start and End hold the dateTime of timed events and the date of all-day
// events.
type EventSummary struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	HTMLLink    string `json:"html_link,omitempty"`
}

func toEventSummary(event *calendar.Event) EventSummary {
	if event == nil {
		return EventSummary{}
	}
	summary := event.Summary
	if summary == "" {
		summary = untitled
	}
	return EventSummary{
		ID:          event.Id,
		Summary:     summary,
		Start:       eventTime(event.Start),
		End:         eventTime(event.End),
		Location:    event.Location,
		Description: event.Description,
		HTMLLink:    event.HtmlLink,
	}
}

func eventTime(t *calendar.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}
