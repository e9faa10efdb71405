package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(context.Background(), "a")
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxInside)
	require.Zero(t, m.Len())
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	m := NewKeyedMutex()
	unlock, err := m.Lock(context.Background(), "b", "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "a")
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	unlock()
	unlock()
	require.Zero(t, m.Len())

	again, err := m.Lock(context.Background(), "a", "b")
	require.NoError(t, err)
	again()
}

func TestKeyedMutexDistinctKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex()
	unlockA, err := m.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := m.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLockerAcquireAndRelease(t *testing.T) {
	mr, client := newRedis(t)
	locker := NewRedisLocker(client, time.Minute, 50*time.Millisecond)

	unlock, err := locker.Lock(context.Background(), "inventory:stock:1:1:lock", "inventory:stock:1:2:lock")
	require.NoError(t, err)
	require.True(t, mr.Exists("inventory:stock:1:1:lock"))
	require.True(t, mr.Exists("inventory:stock:1:2:lock"))
	require.Equal(t, time.Minute, mr.TTL("inventory:stock:1:1:lock"))

	_, err = locker.Lock(context.Background(), "inventory:stock:1:2:lock")
	require.ErrorIs(t, err, ErrLockBusy)

	unlock()
	require.False(t, mr.Exists("inventory:stock:1:1:lock"))
	require.False(t, mr.Exists("inventory:stock:1:2:lock"))
}

func TestRedisLockerReleaseKeepsForeignToken(t *testing.T) {
	mr, client := newRedis(t)
	locker := NewRedisLocker(client, time.Second, 50*time.Millisecond)

	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)

	// Simulate expiry and takeover by another owner.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("k", "someone-else"))

	unlock()
	got, err := mr.Get("k")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestRedisLockerUnlockIsSafeToRepeat(t *testing.T) {
	mr, client := newRedis(t)
	locker := NewRedisLocker(client, time.Minute, 50*time.Millisecond)

	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock()
		}()
	}
	wg.Wait()
	require.False(t, mr.Exists("k"))

	next, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
	require.True(t, mr.Exists("k"))
	next()
	require.False(t, mr.Exists("k"))
}

func TestRedisLockerPartialFailureReleasesHeldKeys(t *testing.T) {
	mr, client := newRedis(t)
	require.NoError(t, mr.Set("b", "other"))
	locker := NewRedisLocker(client, time.Minute, 30*time.Millisecond)

	_, err := locker.Lock(context.Background(), "a", "b")
	require.ErrorIs(t, err, ErrLockBusy)
	require.False(t, mr.Exists("a"))
}
