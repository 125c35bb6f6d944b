package societyadmin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const sessionKeyPrefix = "session:"

// Session ties a browser cookie to the backend bearer token obtained at login.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SessionStore struct {
	cache CacheRepository
	ttl   time.Duration
	now   func() time.Time
}

func NewSessionStore(cache CacheRepository, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: cache, ttl: ttl, now: time.Now}
}

func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

func (s *SessionStore) Create(ctx context.Context, username, role, token string) (Session, error) {
	now := s.now()
	session := Session{
		ID:        uuid.New().String(),
		Username:  username,
		Role:      role,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	b, err := json.Marshal(session)
	if err != nil {
		return Session{}, fmt.Errorf("unable to marshal session: %w", err)
	}

	if err := s.cache.Set(ctx, sessionKeyPrefix+session.ID, string(b), s.ttl); err != nil {
		return Session{}, fmt.Errorf("unable to save session: %w", err)
	}

	return session, nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Session{}, ErrSessionNotFound
	}

	raw, ok := s.cache.Get(ctx, sessionKeyPrefix+id)
	if !ok {
		return Session{}, ErrSessionNotFound
	}

	session := Session{}
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return Session{}, fmt.Errorf("unable to unmarshal session: %w", err)
	}

	if !s.now().Before(session.ExpiresAt) {
		_ = s.cache.Delete(ctx, sessionKeyPrefix+id)
		return Session{}, ErrSessionNotFound
	}

	return session, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.cache.Delete(ctx, sessionKeyPrefix+id); err != nil {
		return fmt.Errorf("unable to delete session: %w", err)
	}
	return nil
}
