// Package resources provides read-only MCP resources scoped to the session
// user.
//
// user://profile describes the signed-in account and whether the server can
// currently act on its Google Calendar.
package resources
