package kiosk

import (
	"context"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const (
	sessionKey       = "user"
	correlationIDKey = "cid"
)

// MemorySessionStore keeps the session for the lifetime of the process only.
type MemorySessionStore struct {
	cache *cache.Cache
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (s *MemorySessionStore) Load(ctx context.Context) (*Session, error) {
	if x, found := s.cache.Get(sessionKey); found {
		session := x.(Session)
		return &session, nil
	}
	return nil, nil
}

func (s *MemorySessionStore) Save(ctx context.Context, session Session) error {
	s.cache.Set(sessionKey, session, cache.NoExpiration)
	return nil
}

func (s *MemorySessionStore) Clear(ctx context.Context) error {
	s.cache.Delete(sessionKey)
	return nil
}

func (s *MemorySessionStore) CorrelationID(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.cache.Add(correlationIDKey, id, cache.NoExpiration); err != nil {
		x, _ := s.cache.Get(correlationIDKey)
		return x.(string), nil
	}
	return id, nil
}
