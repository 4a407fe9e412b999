package outbound

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/callwindow/internal/callwindow"
)

func newRedisStore(t *testing.T) (*RedisDeferralStore, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDeferralStore(client).WithPrefix("test:deferred"), client
}

func storeImplementations(t *testing.T) map[string]DeferralStore {
	redisStore, _ := newRedisStore(t)
	return map[string]DeferralStore{
		"redis":  redisStore,
		"memory": NewMemoryDeferralStore(),
	}
}

func deferred(id string, nextOpen time.Time) DeferredCall {
	return DeferredCall{
		ID:        id,
		Phone:     "+12125550100",
		Timezone:  "America/New_York",
		Window:    businessHours,
		NextOpen:  nextOpen,
		CreatedAt: nextOpen.Add(-time.Hour),
	}
}

func TestDeferralStoreAddGet(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, time.March, 12, 13, 0, 0, 0, time.UTC)
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Add(ctx, deferred("a", base)))

			got, err := store.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "a", got.ID)
			assert.Equal(t, "America/New_York", got.Timezone)
			assert.True(t, got.NextOpen.Equal(base))
			assert.Nil(t, got.Window.Days)

			_, err = store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.Error(t, store.Add(ctx, DeferredCall{}))
		})
	}
}

func TestDeferralStoreKeepsEmptyDays(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			call := deferred("never", time.Unix(0, 0).UTC())
			call.Window = callwindow.Window{StartHour: 9, EndHour: 17, Days: []int{}}
			require.NoError(t, store.Add(ctx, call))

			got, err := store.Get(ctx, "never")
			require.NoError(t, err)
			require.NotNil(t, got.Window.Days)
			assert.Empty(t, got.Window.Days)
		})
	}
}

func TestDeferralStoreDueOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, time.March, 12, 13, 0, 0, 0, time.UTC)
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Add(ctx, deferred("late", base.Add(2*time.Hour))))
			require.NoError(t, store.Add(ctx, deferred("first", base)))
			require.NoError(t, store.Add(ctx, deferred("second", base.Add(time.Hour))))
			require.NoError(t, store.Add(ctx, deferred("future", base.Add(48*time.Hour))))

			due, err := store.Due(ctx, base.Add(2*time.Hour), 0)
			require.NoError(t, err)
			require.Len(t, due, 3)
			assert.Equal(t, []string{"first", "second", "late"}, []string{due[0].ID, due[1].ID, due[2].ID})

			due, err = store.Due(ctx, base.Add(2*time.Hour), 2)
			require.NoError(t, err)
			require.Len(t, due, 2)
			assert.Equal(t, "first", due[0].ID)

			due, err = store.Due(ctx, base.Add(-time.Minute), 10)
			require.NoError(t, err)
			assert.Empty(t, due)
		})
	}
}

func TestDeferralStoreAddReschedules(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, time.March, 12, 13, 0, 0, 0, time.UTC)
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			call := deferred("a", base)
			require.NoError(t, store.Add(ctx, call))

			call.NextOpen = base.Add(24 * time.Hour)
			call.Attempts = 2
			require.NoError(t, store.Add(ctx, call))

			due, err := store.Due(ctx, base, 10)
			require.NoError(t, err)
			assert.Empty(t, due)

			got, err := store.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, 2, got.Attempts)
			assert.True(t, got.NextOpen.Equal(base.Add(24*time.Hour)))
		})
	}
}

func TestDeferralStoreRemove(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, time.March, 12, 13, 0, 0, 0, time.UTC)
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Add(ctx, deferred("a", base)))
			require.NoError(t, store.Remove(ctx, "a"))
			require.NoError(t, store.Remove(ctx, "a"))

			_, err := store.Get(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)
			due, err := store.Due(ctx, base, 10)
			require.NoError(t, err)
			assert.Empty(t, due)
		})
	}
}

func TestRedisDeferralStorePrunesOrphans(t *testing.T) {
	ctx := context.Background()
	store, client := newRedisStore(t)
	base := time.Date(2024, time.March, 12, 13, 0, 0, 0, time.UTC)

	require.NoError(t, store.Add(ctx, deferred("kept", base)))
	require.NoError(t, client.ZAdd(ctx, store.scheduleKey(), redis.Z{Score: float64(base.UnixMilli()), Member: "ghost"}).Err())

	due, err := store.Due(ctx, base, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "kept", due[0].ID)

	members, err := client.ZRange(ctx, store.scheduleKey(), 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, members)
}

func TestRedisDeferralStoreKeyLayout(t *testing.T) {
	ctx := context.Background()
	store, client := newRedisStore(t)
	base := time.Date(2024, time.March, 12, 13, 0, 0, 0, time.UTC)
	require.NoError(t, store.Add(ctx, deferred("a", base)))

	score, err := client.ZScore(ctx, "test:deferred:schedule", "a").Result()
	require.NoError(t, err)
	assert.Equal(t, float64(base.UnixMilli()), score)

	exists, err := client.HExists(ctx, "test:deferred:calls", "a").Result()
	require.NoError(t, err)
	assert.True(t, exists)
}
