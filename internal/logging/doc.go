// Package logging provides structured logging utilities for calweather.
//
// All components log through log/slog. This package keeps attribute names
// consistent and makes sure identities and credentials are never written
// to the log in the clear.
//
// # Key Features
//
//   - Logger construction for text or JSON output
//   - Hashed user and subject identifiers for correlation without PII
//   - Token masking that only reveals the length of a credential
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
//	logger := logging.WithComponent(slog.Default(), "session")
//	logger.Debug("session rejected",
//	    logging.Reason("revoked"),
//	    logging.SubjectHash(sub))
//
// # Security Considerations
//
// Session credentials, exchange codes, OAuth codes and provider tokens are
// only ever logged through SanitizeToken.
package logging
