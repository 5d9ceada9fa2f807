// Package calendar_tools provides the Google Calendar MCP tools.
//
// The tools act on the calendar of the session user. Google tokens are
// looked up per user and refreshed on demand; a user without a usable token
// is asked to sign in again.
package calendar_tools
