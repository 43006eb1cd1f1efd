//go:build unit

package lock_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"marketlink/internal/infra/lock"
	"marketlink/internal/pkg/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLeaseStore backs SetNX and the compare-and-delete script with a plain
// map, enough to drive the coordinator's acquire/release paths.
type fakeLeaseStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newFakeLeaseStore() *fakeLeaseStore {
	return &fakeLeaseStore{keys: map[string]string{}}
}

func (f *fakeLeaseStore) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, held := f.keys[key]; held {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLeaseStore) compareAndDelete(keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(keys) == 1 && len(args) == 1 && f.keys[keys[0]] == fmt.Sprint(args[0]) {
		delete(f.keys, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeLeaseStore) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args...)
}

func (f *fakeLeaseStore) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.compareAndDelete(keys, args...)
}

func (f *fakeLeaseStore) EvalRO(_ context.Context, _ string, _ []string, _ ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("unexpected EvalRO"))
}

func (f *fakeLeaseStore) EvalShaRO(_ context.Context, _ string, _ []string, _ ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("unexpected EvalShaRO"))
}

func (f *fakeLeaseStore) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeLeaseStore) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func (f *fakeLeaseStore) holder(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token, ok := f.keys[key]
	return token, ok
}

func testLockConfig() config.LockConfig {
	return config.LockConfig{
		TTL:          time.Second,
		AcquireWait:  10 * time.Millisecond,
		RetryBackoff: time.Millisecond,
	}
}

func TestStockKey(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	assert.Equal(t, "stock_lock:"+a.String(), lock.StockKey(a))
	assert.NotEqual(t, lock.StockKey(a), lock.StockKey(b))
}

func TestAcquire_GrantsLeaseOnFreeKey(t *testing.T) {
	store := newFakeLeaseStore()
	coordinator := lock.NewCoordinator(store, testLockConfig())
	key := lock.StockKey(uuid.New())

	token, err := coordinator.Acquire(context.Background(), key)

	require.NoError(t, err)
	require.NotEmpty(t, token)
	held, ok := store.holder(key)
	assert.True(t, ok)
	assert.Equal(t, token, held)
}

func TestAcquire_BusyAfterWaitBudgetExhausted(t *testing.T) {
	store := newFakeLeaseStore()
	coordinator := lock.NewCoordinator(store, testLockConfig())
	key := lock.StockKey(uuid.New())

	_, err := coordinator.Acquire(context.Background(), key)
	require.NoError(t, err)

	_, err = coordinator.Acquire(context.Background(), key)

	assert.ErrorIs(t, err, lock.ErrLeaseBusy)
}

func TestAcquire_RespectsContextCancellation(t *testing.T) {
	store := newFakeLeaseStore()
	cfg := testLockConfig()
	cfg.AcquireWait = time.Minute // budget must not be what ends the wait
	coordinator := lock.NewCoordinator(store, cfg)
	key := lock.StockKey(uuid.New())

	_, err := coordinator.Acquire(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = coordinator.Acquire(ctx, key)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRelease_DeletesHeldLease(t *testing.T) {
	store := newFakeLeaseStore()
	coordinator := lock.NewCoordinator(store, testLockConfig())
	key := lock.StockKey(uuid.New())

	token, err := coordinator.Acquire(context.Background(), key)
	require.NoError(t, err)

	err = coordinator.Release(context.Background(), key, token)

	require.NoError(t, err)
	_, ok := store.holder(key)
	assert.False(t, ok)
}

func TestRelease_NotHolderOnTokenMismatch(t *testing.T) {
	store := newFakeLeaseStore()
	coordinator := lock.NewCoordinator(store, testLockConfig())
	key := lock.StockKey(uuid.New())

	token, err := coordinator.Acquire(context.Background(), key)
	require.NoError(t, err)

	err = coordinator.Release(context.Background(), key, uuid.NewString())

	assert.ErrorIs(t, err, lock.ErrNotHolder)
	held, ok := store.holder(key)
	assert.True(t, ok, "mismatched token must not revoke the lease")
	assert.Equal(t, token, held)
}
