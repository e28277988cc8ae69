package redisstate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envsense/insight-engine/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, 0), mr
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	state, err := store.Get(context.Background(), "user-1", domain.CategoryAirQuality)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertState{}, state)
}

func TestStore_CompareAndSet(t *testing.T) {
	firedAt := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	t.Run("creates state from zero version", func(t *testing.T) {
		store, _ := newTestStore(t)
		next := domain.AlertState{
			Phase:        domain.PhaseActive,
			LastSeverity: domain.RiskHigh,
			LastFiredAt:  firedAt,
		}

		err := store.CompareAndSet(context.Background(), "user-1", domain.CategoryAirQuality,
			domain.AlertState{}, next)
		require.NoError(t, err)

		got, err := store.Get(context.Background(), "user-1", domain.CategoryAirQuality)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseActive, got.Phase)
		assert.Equal(t, domain.RiskHigh, got.LastSeverity)
		assert.True(t, got.LastFiredAt.Equal(firedAt))
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("advances version on each write", func(t *testing.T) {
		store, _ := newTestStore(t)
		ctx := context.Background()

		require.NoError(t, store.CompareAndSet(ctx, "user-1", domain.CategoryUV,
			domain.AlertState{}, domain.AlertState{Phase: domain.PhaseActive}))

		prev, err := store.Get(ctx, "user-1", domain.CategoryUV)
		require.NoError(t, err)

		require.NoError(t, store.CompareAndSet(ctx, "user-1", domain.CategoryUV,
			prev, domain.AlertState{Phase: domain.PhaseSuppressed}))

		got, err := store.Get(ctx, "user-1", domain.CategoryUV)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseSuppressed, got.Phase)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("rejects a stale version", func(t *testing.T) {
		store, _ := newTestStore(t)
		ctx := context.Background()
		stale := domain.AlertState{}

		require.NoError(t, store.CompareAndSet(ctx, "user-1", domain.CategoryAirQuality,
			stale, domain.AlertState{Phase: domain.PhaseActive}))

		err := store.CompareAndSet(ctx, "user-1", domain.CategoryAirQuality,
			stale, domain.AlertState{Phase: domain.PhaseSuppressed})
		assert.ErrorIs(t, err, domain.ErrStateConflict)

		// The winning write is untouched.
		got, err := store.Get(ctx, "user-1", domain.CategoryAirQuality)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseActive, got.Phase)
	})

	t.Run("keys are scoped per user and category", func(t *testing.T) {
		store, _ := newTestStore(t)
		ctx := context.Background()

		require.NoError(t, store.CompareAndSet(ctx, "user-1", domain.CategoryAirQuality,
			domain.AlertState{}, domain.AlertState{Phase: domain.PhaseActive}))

		other, err := store.Get(ctx, "user-2", domain.CategoryAirQuality)
		require.NoError(t, err)
		assert.Equal(t, domain.AlertState{}, other)

		uv, err := store.Get(ctx, "user-1", domain.CategoryUV)
		require.NoError(t, err)
		assert.Equal(t, domain.AlertState{}, uv)
	})
}

func TestStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := New(client, time.Hour)

	ctx := context.Background()
	require.NoError(t, store.CompareAndSet(ctx, "user-1", domain.CategoryAirQuality,
		domain.AlertState{}, domain.AlertState{Phase: domain.PhaseActive}))

	mr.FastForward(2 * time.Hour)

	got, err := store.Get(ctx, "user-1", domain.CategoryAirQuality)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertState{}, got)
}
