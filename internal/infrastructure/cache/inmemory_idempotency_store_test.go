package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)}
	store := newInMemoryIdempotencyStore(time.Hour, clock.Now)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func deliveryKey(handler string) shared.DeliveryKey {
	return shared.DeliveryKey{Handler: handler, TenantID: uuid.New(), EventID: uuid.New()}
}

func TestInMemoryIdempotencyStore_Claim(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()
	key := deliveryKey("payroll")

	state, err := store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, shared.ClaimAcquired, state)

	state, err = store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, shared.ClaimInFlight, state, "lease still held")

	other := key
	other.Handler = "stock"
	state, err = store.Claim(ctx, other, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, shared.ClaimAcquired, state, "another handler claims independently")

	clock.Advance(time.Minute)
	state, err = store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, shared.ClaimAcquired, state, "an abandoned lease expires")
}

func TestInMemoryIdempotencyStore_Complete(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()
	key := deliveryKey("payroll")

	_, err := store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, key, time.Hour))

	clock.Advance(30 * time.Minute)
	state, err := store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, shared.ClaimCompleted, state, "completion outlives the lease")

	require.NoError(t, store.Release(ctx, key))
	state, err = store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, shared.ClaimCompleted, state, "release never drops a completed delivery")

	clock.Advance(time.Hour)
	state, err = store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, shared.ClaimAcquired, state)
}

func TestInMemoryIdempotencyStore_Release(t *testing.T) {
	store, _ := newClockedStore(t)
	ctx := context.Background()
	key := deliveryKey("payroll")

	_, err := store.Claim(ctx, key, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, key))
	require.NoError(t, store.Release(ctx, deliveryKey("never-claimed")))

	state, err := store.Claim(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, shared.ClaimAcquired, state)
}

func TestInMemoryIdempotencyStore_Sweep(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()
	short, long := deliveryKey("a"), deliveryKey("b")

	_, _ = store.Claim(ctx, short, time.Minute)
	_, _ = store.Claim(ctx, long, time.Minute)
	require.NoError(t, store.Complete(ctx, long, time.Hour))
	assert.Equal(t, 2, store.Len())

	clock.Advance(30 * time.Minute)
	store.sweep()
	assert.Equal(t, 1, store.Len())

	state, _ := store.Claim(ctx, long, time.Minute)
	assert.Equal(t, shared.ClaimCompleted, state, "unexpired completion survives the sweep")
}

func TestInMemoryIdempotencyStore_ConcurrentDeliveries(t *testing.T) {
	store, _ := newClockedStore(t)
	ctx := context.Background()
	key := deliveryKey("payroll")

	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if state, err := store.Claim(ctx, key, time.Hour); err == nil && state == shared.ClaimAcquired {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
