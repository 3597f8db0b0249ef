package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	apporder "github.com/Zhima-Mochi/minishop-coordinator/internal/application/order"
	dominv "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/inventory"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestProductStoreReserveRelease(t *testing.T) {
	_, client := newTestClient(t)
	store := NewProductStore(client, "inv")
	ctx := context.Background()

	p, err := store.Create(ctx, &dominv.Product{Name: "Widget", Category: "tools", Price: 1299, AvailableQuantity: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)

	remaining, err := store.Reserve(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	_, err = store.Reserve(ctx, p.ID, 1)
	assert.ErrorIs(t, err, dominv.ErrInsufficientStock)

	remaining, err = store.Release(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	got, err := store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Name)
	assert.Equal(t, int64(1299), got.Price)
	assert.Equal(t, 2, got.AvailableQuantity)

	_, err = store.Reserve(ctx, 99, 1)
	assert.ErrorIs(t, err, dominv.ErrNotFound)
	_, err = store.Get(ctx, 99)
	assert.ErrorIs(t, err, dominv.ErrNotFound)
}

func TestProductStoreList(t *testing.T) {
	_, client := newTestClient(t)
	store := NewProductStore(client, "")
	ctx := context.Background()

	empty, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, name := range []string{"a", "b", "c"} {
		_, err := store.Create(ctx, &dominv.Product{Name: name, Category: "x"})
		require.NoError(t, err)
	}
	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[2].Name)
}

func TestProductStoreCreateNeverReusesIDs(t *testing.T) {
	_, client := newTestClient(t)
	store := NewProductStore(client, "inv")
	ctx := context.Background()

	explicit, err := store.Create(ctx, &dominv.Product{ID: 1, Name: "Explicit", Category: "x", AvailableQuantity: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), explicit.ID)
	_, err = store.Reserve(ctx, 1, 4)
	require.NoError(t, err)

	auto, err := store.Create(ctx, &dominv.Product{Name: "Auto", Category: "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), auto.ID)

	_, err = store.Create(ctx, &dominv.Product{ID: 2, Name: "Again", Category: "x", AvailableQuantity: 99})
	assert.ErrorIs(t, err, dominv.ErrConflict)

	kept, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Explicit", kept.Name)
	assert.Equal(t, 6, kept.AvailableQuantity)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestProductStoreConcurrentReserve(t *testing.T) {
	_, client := newTestClient(t)
	store := NewProductStore(client, "inv")
	ctx := context.Background()

	p, err := store.Create(ctx, &dominv.Product{Name: "Widget", Category: "tools", AvailableQuantity: 10})
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Reserve(ctx, p.ID, 1); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	got, err := store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, got.AvailableQuantity)
}

func TestIdempotencyStore(t *testing.T) {
	mr, client := newTestClient(t)
	s := NewIdempotencyStore(client, "ord")
	ctx := context.Background()

	_, claimed, err := s.Claim(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	_, _, err = s.Claim(ctx, "k1", time.Minute)
	assert.ErrorIs(t, err, apporder.ErrIdempotencyInFlight)

	require.NoError(t, s.Complete(ctx, "k1", "o-1", time.Minute))
	id, claimed, err := s.Claim(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "o-1", id)

	mr.FastForward(2 * time.Minute)
	_, claimed, err = s.Claim(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, s.Abandon(ctx, "k1"))
	assert.False(t, mr.Exists("ord:idempotency:k1"))
}

func TestIdempotencyClaimLeaseOutlivesCrash(t *testing.T) {
	mr, client := newTestClient(t)
	s := NewIdempotencyStore(client, "ord")
	ctx := context.Background()

	_, claimed, err := s.Claim(ctx, "k", 30*time.Second)
	require.NoError(t, err)
	require.True(t, claimed)

	// the claimant never completes; the lease frees the key shortly after
	mr.FastForward(10 * time.Second)
	_, _, err = s.Claim(ctx, "k", 30*time.Second)
	assert.ErrorIs(t, err, apporder.ErrIdempotencyInFlight)

	mr.FastForward(25 * time.Second)
	_, claimed, err = s.Claim(ctx, "k", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, s.Complete(ctx, "k", "o-1", 24*time.Hour))
	mr.FastForward(6 * time.Hour)
	id, claimed, err := s.Claim(ctx, "k", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "o-1", id)
}

func TestLocker(t *testing.T) {
	mr, client := newTestClient(t)
	l := NewLocker(client, "ord")
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("ord:lock:reconcile"))

	_, ok, err = l.TryLock(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlockKeepsForeignLease(t *testing.T) {
	mr, client := newTestClient(t)
	l := NewLocker(client, "")
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "job", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = l.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, unlock(ctx))
	assert.True(t, mr.Exists("lock:job"), "expired owner must not drop the new lease")
}
