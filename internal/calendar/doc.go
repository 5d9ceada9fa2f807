// Package calendar provides a client for the Google Calendar API scoped to
// what the calendar tools need: listing upcoming events and creating events.
//
// Example usage:
//
//	ts := flow.TokenSource(ctx, userSub)
//	client, err := calendar.NewClient(ctx, google.NewHTTPClient(ctx, ts), metrics)
//	if err != nil {
//	    return err
//	}
//
//	events, err := client.ListUpcomingEvents(ctx, "primary", 10, time.Now())
package calendar
