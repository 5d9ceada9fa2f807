package store

import (
	"context"
	"log/slog"
	"strings"
)

// DefaultDatabaseURL is used when no database is configured.
const DefaultDatabaseURL = "sqlite:///mcp_sessions.db"

// Open returns the Store described by databaseURL.
//
// Accepted forms:
//
//	memory                  in-process store, nothing persisted
//	sqlite:///relative.db   SQLite file relative to the working directory
//	sqlite:////abs/path.db  SQLite file at an absolute path
//	/any/path.db            SQLite file
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (Store, error) {
	if databaseURL == "" {
		databaseURL = DefaultDatabaseURL
	}
	if databaseURL == "memory" {
		return NewMemoryStore(), nil
	}
	return OpenSQLite(ctx, SQLitePath(databaseURL), logger)
}

// SQLitePath strips the sqlite URL scheme from databaseURL.
func SQLitePath(databaseURL string) string {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite:///"):
		return strings.TrimPrefix(databaseURL, "sqlite:///")
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return strings.TrimPrefix(databaseURL, "sqlite://")
	default:
		return databaseURL
	}
}
