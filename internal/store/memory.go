package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]SessionRecord
	tokens   map[string]UserTokenRecord
	codes    map[string]ExchangeCodeRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]SessionRecord),
		tokens:   make(map[string]UserTokenRecord),
		codes:    make(map[string]ExchangeCodeRecord),
	}
}

func (s *MemoryStore) SaveSession(_ context.Context, rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.JTI] = rec
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, jti string) (*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[jti]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) RevokeSession(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.sessions[jti]; ok {
		rec.Revoked = true
		s.sessions[jti] = rec
	}
	return nil
}

func (s *MemoryStore) SaveUserTokens(_ context.Context, rec UserTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[rec.UserSub] = rec
	return nil
}

func (s *MemoryStore) GetUserTokens(_ context.Context, userSub string) (*UserTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tokens[userSub]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) SaveExchangeCode(_ context.Context, rec ExchangeCodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[rec.Code] = rec
	return nil
}

func (s *MemoryStore) ConsumeExchangeCode(_ context.Context, code string, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.codes[code]
	if !ok || rec.Used || !rec.ExpiresAt.After(now) {
		return "", ErrExchangeCodeInvalid
	}
	rec.Used = true
	s.codes[code] = rec
	return rec.UserSub, nil
}

func (s *MemoryStore) Purge(_ context.Context, now time.Time) (PurgeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res PurgeResult
	for jti, rec := range s.sessions {
		if rec.Revoked || !rec.ExpiresAt.After(now) {
			delete(s.sessions, jti)
			res.Sessions++
		}
	}
	for code, rec := range s.codes {
		if rec.Used || !rec.ExpiresAt.After(now) {
			delete(s.codes, code)
			res.ExchangeCodes++
		}
	}
	return res, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
