package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Strategy   string  `json:"strategy"`
	Confidence float64 `json:"confidence"`
}

func newMockCache(t *testing.T) (*RedisCache, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	t.Cleanup(func() { _ = db.Close() })
	return NewRedisCacheWithClient(db, WithLockOwner("owner-1")), mock
}

func TestRedisCache_SetGet(t *testing.T) {
	c, mock := newMockCache(t)
	ctx := context.Background()

	mock.ExpectSet("signalpilot:conditions:2025-09-01", []byte(`{"strategy":"pause","confidence":80}`), time.Minute).SetVal("OK")
	mock.ExpectGet("signalpilot:conditions:2025-09-01").SetVal(`{"strategy":"pause","confidence":80}`)
	mock.ExpectGet("signalpilot:conditions:2025-09-02").RedisNil()

	require.NoError(t, c.Set(ctx, "conditions:2025-09-01", snapshot{"pause", 80}, time.Minute))

	var got snapshot
	require.NoError(t, c.Get(ctx, "conditions:2025-09-01", &got))
	assert.Equal(t, snapshot{"pause", 80}, got)

	err := c.Get(ctx, "conditions:2025-09-02", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_Lock(t *testing.T) {
	c, mock := newMockCache(t)
	ctx := context.Background()

	mock.ExpectSetNX("signalpilot:lock:analysis:2025-09-01:17", "owner-1", 2*time.Minute).SetVal(true)
	mock.ExpectSetNX("signalpilot:lock:analysis:2025-09-01:17", "owner-1", 2*time.Minute).SetVal(false)
	mock.ExpectEval(unlockScript, []string{"signalpilot:lock:analysis:2025-09-01:17"}, "owner-1").SetVal(int64(1))
	mock.ExpectEval(unlockScript, []string{"signalpilot:lock:analysis:2025-09-01:17"}, "owner-1").SetVal(int64(0))

	ok, err := c.TryLock(ctx, "analysis:2025-09-01:17", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.TryLock(ctx, "analysis:2025-09-01:17", 2*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Unlock(ctx, "analysis:2025-09-01:17"))
	assert.ErrorIs(t, c.Unlock(ctx, "analysis:2025-09-01:17"), ErrLockNotHeld)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_IncrementAndPattern(t *testing.T) {
	c, mock := newMockCache(t)
	ctx := context.Background()

	mock.ExpectIncr("signalpilot:ingested:2025-09-01").SetVal(1)
	mock.ExpectExpire("signalpilot:ingested:2025-09-01", time.Hour).SetVal(true)
	mock.ExpectIncr("signalpilot:ingested:2025-09-01").SetVal(2)
	mock.ExpectScan(0, "signalpilot:conditions:2025-09-01:*", 100).SetVal([]string{"signalpilot:conditions:2025-09-01:0-23"}, 7)
	mock.ExpectUnlink("signalpilot:conditions:2025-09-01:0-23").SetVal(1)
	mock.ExpectScan(7, "signalpilot:conditions:2025-09-01:*", 100).SetVal(nil, 0)

	n, err := c.Increment(ctx, "ingested:2025-09-01", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = c.Increment(ctx, "ingested:2025-09-01", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, c.DeleteByPattern(ctx, "conditions:2025-09-01:*"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", snapshot{"infinity_conservative", 66}, 0))
	var got snapshot
	require.NoError(t, mc.Get(ctx, "a", &got))
	assert.Equal(t, "infinity_conservative", got.Strategy)

	require.NoError(t, mc.Set(ctx, "b", "raw", 0))
	require.NoError(t, mc.Get(ctx, "a", &got)) // a is now the most recent
	require.NoError(t, mc.Set(ctx, "c", 3, 0))
	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", new(string)), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "short", 1, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	ok, err := mc.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_LockCounterPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, _ := mc.TryLock(ctx, "h17", time.Minute)
	assert.True(t, ok)
	ok, _ = mc.TryLock(ctx, "h17", time.Minute)
	assert.False(t, ok)
	require.NoError(t, mc.Unlock(ctx, "h17"))
	assert.ErrorIs(t, mc.Unlock(ctx, "h17"), ErrLockNotHeld)

	for i := int64(1); i <= 3; i++ {
		n, err := mc.Increment(ctx, "n", 0)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	_ = mc.Set(ctx, "conditions:2025-09-01:0-23", 1, 0)
	_ = mc.Set(ctx, "conditions:2025-09-02:0-23", 1, 0)
	require.NoError(t, mc.DeleteByPattern(ctx, "conditions:2025-09-01:*"))
	ok, _ = mc.Exists(ctx, "conditions:2025-09-01:0-23")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "conditions:2025-09-02:0-23")
	assert.True(t, ok)
}

func TestGetOrCompute(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	calls := 0
	fn := func(context.Context) (snapshot, error) {
		calls++
		return snapshot{"pause", 50}, nil
	}
	v, hit, err := GetOrCompute(ctx, mc, "k", time.Minute, fn)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "pause", v.Strategy)

	v, hit, err = GetOrCompute(ctx, mc, "k", time.Minute, fn)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)

	_, _, err = GetOrCompute(ctx, nil, "k", time.Minute, func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}
