package api

import (
	"context"
	"strconv"
	"time"

	"github.com/jdsantos/quakewatch/internal/monitor"
)

const sessionKeyPrefix = "session:"

// SessionStore maps bearer tokens to user IDs on top of the shared cache, so
// sessions expire with the cache TTL and survive restarts when the cache is
// Redis-backed.
type SessionStore struct {
	cache monitor.Cache
	ttl   time.Duration
}

// NewSessionStore builds a SessionStore with the given session lifetime.
func NewSessionStore(cache monitor.Cache, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: cache, ttl: ttl}
}

// Save associates the token with the user for the session lifetime.
func (s *SessionStore) Save(ctx context.Context, token string, userID int64) {
	s.cache.Set(ctx, sessionKeyPrefix+token, strconv.FormatInt(userID, 10), s.ttl)
}

// Lookup resolves a token to its user ID.
func (s *SessionStore) Lookup(ctx context.Context, token string) (int64, bool) {
	value, ok := s.cache.Get(ctx, sessionKeyPrefix+token)
	if !ok {
		return 0, false
	}
	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return userID, true
}
