// Package server wires the login endpoints, the session protected MCP
// endpoint and the health probes into one HTTP server.
//
// # Key Components
//
// ServerContext holds the store, the OAuth flow, the session manager and the
// upstream clients. Calendar clients are created per user on first use and
// draw their Google tokens from the user's stored grant.
//
// HTTPServer serves:
//   - GET /auth/start: redirect to Google consent
//   - GET /auth/callback: finish login, issue a session and an exchange code
//   - GET /setup: redeem an exchange code for a session
//   - POST /auth/logout: revoke the presented session
//   - /mcp: the MCP streamable HTTP transport behind a bearer session check
//   - /healthz, /readyz, /healthz/detailed: probes
//
// The authentication routes are rate limited per client IP. Plain HTTP is
// only accepted for loopback base URLs.
package server
