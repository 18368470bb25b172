package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devscout/pkg/session"
)

func TestMemoryStore_CRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		store := session.NewMemoryStore(time.Hour)
		s := session.New(testIdentity(), "tok")
		require.NoError(t, store.Create(ctx, s))

		got, err := store.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, s.Identity, got.Identity)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		store := session.NewMemoryStore(time.Hour)
		s := session.New(testIdentity(), "tok")
		require.NoError(t, store.Create(ctx, s))

		got, err := store.Get(ctx, s.ID)
		require.NoError(t, err)
		got.AccessToken = "mutated"

		again, err := store.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "tok", again.AccessToken)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		store := session.NewMemoryStore(time.Hour)
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("nil or blank session rejected", func(t *testing.T) {
		store := session.NewMemoryStore(time.Hour)
		assert.ErrorIs(t, store.Create(ctx, nil), session.ErrInvalidSession)
		assert.ErrorIs(t, store.Create(ctx, &session.Session{}), session.ErrInvalidSession)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store := session.NewMemoryStore(time.Hour)
		s := session.New(testIdentity(), "tok")
		require.NoError(t, store.Create(ctx, s))

		require.NoError(t, store.Delete(ctx, s.ID))
		require.NoError(t, store.Delete(ctx, s.ID))

		_, err := store.Get(ctx, s.ID)
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})
}

func TestMemoryStore_LazyExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := session.NewMemoryStore(50 * time.Millisecond)
	s := session.New(testIdentity(), "tok")
	require.NoError(t, store.Create(ctx, s))

	time.Sleep(60 * time.Millisecond)

	// The expired record is reported and removed by the read itself.
	_, err := store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, session.ErrSessionExpired)
	assert.Equal(t, 0, store.Len())

	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestMemoryStore_Touch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := session.NewMemoryStore(time.Hour)
	s := session.New(testIdentity(), "tok")
	s.LastAccessedAt = time.Now().Add(-30 * time.Minute)
	require.NoError(t, store.Create(ctx, s))

	now := time.Now()
	require.NoError(t, store.Touch(ctx, s.ID, now))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, now, got.LastAccessedAt, time.Second)

	assert.ErrorIs(t, store.Touch(ctx, "missing", now), session.ErrSessionNotFound)
}

func TestMemoryStore_ConcurrentGetTouch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Two tabs restoring the same session concurrently hit Get and
	// Touch on one record; run with -race.
	store := session.NewMemoryStore(time.Hour)
	s := session.New(testIdentity(), "tok")
	require.NoError(t, store.Create(ctx, s))

	const workers = 50

	var wg sync.WaitGroup
	wg.Add(workers * 2)
	for range workers {
		go func() {
			defer wg.Done()
			got, err := store.Get(ctx, s.ID)
			if assert.NoError(t, err) {
				assert.Equal(t, s.ID, got.ID)
			}
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Touch(ctx, s.ID, time.Now()))
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok", got.AccessToken)
}

func TestMemoryStore_DeleteByUserID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := session.NewMemoryStore(time.Hour)

	first := session.New(testIdentity(), "tok1")
	second := session.New(testIdentity(), "tok2")
	other := session.New(session.Identity{UserID: 99, Login: "other"}, "tok3")

	require.NoError(t, store.Create(ctx, first))
	require.NoError(t, store.Create(ctx, second))
	require.NoError(t, store.Create(ctx, other))

	require.NoError(t, store.DeleteByUserID(ctx, 42))

	_, err := store.Get(ctx, first.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = store.Get(ctx, second.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	// Unrelated users keep their sessions.
	_, err = store.Get(ctx, other.ID)
	assert.NoError(t, err)
}
