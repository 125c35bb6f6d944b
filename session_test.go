package societyadmin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	cache := NewMemoryCache()
	store := NewSessionStore(cache, time.Hour)
	store.now = func() time.Time { return now }

	session, err := store.Create(ctx, "admin", "superadmin", "backend-token")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, now.Add(time.Hour), session.ExpiresAt)

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Username)
	assert.Equal(t, "superadmin", got.Role)
	assert.Equal(t, "backend-token", got.Token)

	require.NoError(t, store.Delete(ctx, session.ID))
	_, err = store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreRejectsUnknownIds(t *testing.T) {
	store := NewSessionStore(NewMemoryCache(), time.Hour)

	_, err := store.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = store.Get(context.Background(), "6f1c1f3e-4a4e-4d5c-9a57-5b0c8f1f1e2a")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	// the cache keeps the entry longer than the session is valid
	cache := NewMemoryCache()
	cache.now = func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }

	store := NewSessionStore(cache, time.Hour)
	store.now = func() time.Time { return now }

	session, err := store.Create(ctx, "admin", "", "token")
	require.NoError(t, err)

	now = now.Add(time.Hour)

	_, err = store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, ok := cache.Get(ctx, sessionKeyPrefix+session.ID)
	assert.False(t, ok, "expired sessions are removed from the cache")
}
