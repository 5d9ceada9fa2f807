// Package store is the durable credential store of calweather.
//
// It keeps three kinds of records: issued sessions (keyed by the session
// credential's jti), the provider tokens of each user (keyed by the provider
// subject) and short-lived exchange codes used to hand a session to a client
// out of band.
//
// # Implementations
//
//   - SQLiteStore persists everything in a single SQLite file through
//     github.com/mattn/go-sqlite3. Timestamps are stored as fixed-width
//     ISO-8601 UTC strings so that lexical comparison in SQL equals time
//     comparison.
//   - MemoryStore keeps records in process memory. It is used in tests and
//     when the service runs with DATABASE_URL=memory.
//
// # Concurrency
//
// ConsumeExchangeCode is a compare-and-set: the validity check and the
// transition of the used flag happen in one step, so at most one of any
// number of concurrent callers succeeds for a given code.
package store
