package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/teemow/calweather/internal/logging"
)

const sqliteDriverName = "calweather_sqlite3"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// busy_timeout must come before journal_mode.
			_, err := conn.Exec(`
				PRAGMA busy_timeout = 5000;
				PRAGMA journal_mode = WAL;
				PRAGMA synchronous  = NORMAL;
				PRAGMA temp_store   = MEMORY;
			`, nil)
			return err
		},
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	jti        TEXT PRIMARY KEY,
	user_sub   TEXT NOT NULL,
	user_email TEXT NOT NULL DEFAULT '',
	expires_at TEXT NOT NULL,
	created_at TEXT NOT NULL,
	revoked    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS user_tokens (
	user_sub         TEXT PRIMARY KEY,
	user_email       TEXT NOT NULL DEFAULT '',
	access_token     TEXT NOT NULL,
	refresh_token    TEXT NOT NULL DEFAULT '',
	token_expires_at TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS exchange_codes (
	code       TEXT PRIMARY KEY,
	user_sub   TEXT NOT NULL,
	expires_at TEXT NOT NULL,
	used       INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions (expires_at);
CREATE INDEX IF NOT EXISTS idx_exchange_codes_expires_at ON exchange_codes (expires_at);
`

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logging.WithComponent(logger, "store").Info("SQLite credential store ready", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (jti, user_sub, user_email, expires_at, created_at, revoked)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.JTI, rec.UserSub, rec.UserEmail, formatTime(rec.ExpiresAt), formatTime(rec.CreatedAt), boolToInt(rec.Revoked))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, jti string) (*SessionRecord, error) {
	var (
		rec                  SessionRecord
		expiresAt, createdAt string
		revoked              int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT jti, user_sub, user_email, expires_at, created_at, revoked FROM sessions WHERE jti = ?`, jti).
		Scan(&rec.JTI, &rec.UserSub, &rec.UserEmail, &expiresAt, &createdAt, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	if rec.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("session expires_at: %w", err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("session created_at: %w", err)
	}
	rec.Revoked = revoked != 0
	return &rec, nil
}

func (s *SQLiteStore) RevokeSession(ctx context.Context, jti string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET revoked = 1 WHERE jti = ?`, jti); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveUserTokens(ctx context.Context, rec UserTokenRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_tokens (user_sub, user_email, access_token, refresh_token, token_expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_sub) DO UPDATE SET
			user_email       = excluded.user_email,
			access_token     = excluded.access_token,
			refresh_token    = excluded.refresh_token,
			token_expires_at = excluded.token_expires_at,
			updated_at       = excluded.updated_at`,
		rec.UserSub, rec.UserEmail, rec.AccessToken, rec.RefreshToken, formatTime(rec.TokenExpiresAt), formatTime(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert user tokens: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUserTokens(ctx context.Context, userSub string) (*UserTokenRecord, error) {
	var (
		rec                  UserTokenRecord
		expiresAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_sub, user_email, access_token, refresh_token, token_expires_at, updated_at
		 FROM user_tokens WHERE user_sub = ?`, userSub).
		Scan(&rec.UserSub, &rec.UserEmail, &rec.AccessToken, &rec.RefreshToken, &expiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user tokens: %w", err)
	}

	if rec.TokenExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("user tokens token_expires_at: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("user tokens updated_at: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) SaveExchangeCode(ctx context.Context, rec ExchangeCodeRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchange_codes (code, user_sub, expires_at, used, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Code, rec.UserSub, formatTime(rec.ExpiresAt), boolToInt(rec.Used), formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert exchange code: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ConsumeExchangeCode(ctx context.Context, code string, now time.Time) (string, error) {
	var userSub string
	err := s.db.QueryRowContext(ctx,
		`UPDATE exchange_codes SET used = 1
		 WHERE code = ? AND used = 0 AND expires_at > ?
		 RETURNING user_sub`,
		code, formatTime(now)).Scan(&userSub)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrExchangeCodeInvalid
	}
	if err != nil {
		return "", fmt.Errorf("consume exchange code: %w", err)
	}
	return userSub, nil
}

func (s *SQLiteStore) Purge(ctx context.Context, now time.Time) (PurgeResult, error) {
	var res PurgeResult
	cutoff := formatTime(now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin purge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	r, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE revoked = 1 OR expires_at <= ?`, cutoff)
	if err != nil {
		return res, fmt.Errorf("purge sessions: %w", err)
	}
	res.Sessions, _ = r.RowsAffected()

	r, err = tx.ExecContext(ctx, `DELETE FROM exchange_codes WHERE used = 1 OR expires_at <= ?`, cutoff)
	if err != nil {
		return res, fmt.Errorf("purge exchange codes: %w", err)
	}
	res.ExchangeCodes, _ = r.RowsAffected()

	if err := tx.Commit(); err != nil {
		return PurgeResult{}, fmt.Errorf("commit purge: %w", err)
	}
	s.logger.Debug("Purged credential store",
		logging.Operation("store.purge"),
		slog.Int64("sessions", res.Sessions),
		slog.Int64("exchange_codes", res.ExchangeCodes))
	return res, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
