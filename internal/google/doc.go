// Package google holds the Google specific pieces of the login flow: the
// OAuth endpoints, the requested scopes, and the plumbing that turns a
// user's stored tokens into an authenticated API client.
package google
