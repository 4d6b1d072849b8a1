package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"signquiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of SessionRepository.
// Notes:
//   - Sessions hold timers and subscribers, so the live objects stay in a
//     local map; sessions are never resumed on another instance.
//   - Redis carries a liveness marker per session (owner as value, TTL-bound)
//     so operators can see what is running across instances.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Save(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(session.ID()), session.Owner(), s.ttl).Err()
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok && s.ttl > 0 {
		_ = s.client.Expire(context.Background(), s.key(sessionID), s.ttl).Err()
	}
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}
