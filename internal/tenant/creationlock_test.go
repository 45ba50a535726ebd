package tenant

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockRegistry_TestAndSet(t *testing.T) {
	r := NewLockRegistry(time.Minute)

	require.True(t, r.TryAcquire("acme"))
	require.False(t, r.TryAcquire("acme"))
	require.True(t, r.TryAcquire("other")) // tenants independientes

	r.Release("acme")
	require.True(t, r.TryAcquire("acme"))
}

func TestLockRegistry_ExpiredLockIsReclaimable(t *testing.T) {
	r := NewLockRegistry(50 * time.Millisecond)
	now := time.Now()
	r.now = func() time.Time { return now }

	require.True(t, r.TryAcquire("acme"))
	require.False(t, r.TryAcquire("acme"))

	// Pasado el timeout, el lock se considera abandonado.
	now = now.Add(60 * time.Millisecond)
	require.False(t, r.Held("acme"))
	require.True(t, r.TryAcquire("acme"))
}

func TestLockRegistry_SingleWinnerUnderContention(t *testing.T) {
	r := NewLockRegistry(time.Minute)

	const goroutines = 32
	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryAcquire("acme") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, wins)
}

func TestLockRegistry_WaitReleased(t *testing.T) {
	r := NewLockRegistry(time.Minute)
	require.True(t, r.TryAcquire("acme"))

	go func() {
		time.Sleep(60 * time.Millisecond)
		r.Release("acme")
	}()

	ok := r.WaitReleased(context.Background(), "acme", 500*time.Millisecond)
	require.True(t, ok)
}

func TestLockRegistry_WaitReleased_Timeout(t *testing.T) {
	r := NewLockRegistry(time.Minute)
	require.True(t, r.TryAcquire("acme"))

	start := time.Now()
	ok := r.WaitReleased(context.Background(), "acme", 80*time.Millisecond)
	require.False(t, ok)
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
