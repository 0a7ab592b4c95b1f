package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireEnforcesRate(t *testing.T) {
	// capacity 5, 50 tokens/sec: 20 acquisitions must take at least
	// (20-5)/50 = 300ms. Scaled-down version of the production shape so
	// the test stays fast while keeping the same lower-bound property.
	reg := NewRegistry(Setting{Rate: 50, Burst: 5}, 0)

	start := time.Now()
	for i := 0; i < 20; i++ {
		require.NoError(t, reg.Acquire(context.Background(), "duckduckgo"))
	}
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond,
		"20 acquisitions at rate=50 burst=5 must take at least 300ms")
}

func TestAcquireConcurrentSharesOneBucket(t *testing.T) {
	reg := NewRegistry(Setting{Rate: 100, Burst: 2}, 0)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reg.Acquire(context.Background(), "shared")
		}()
	}
	wg.Wait()

	// (12-2)/100 = 100ms lower bound regardless of caller count.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestAcquireSeparateKeysDoNotInterfere(t *testing.T) {
	reg := NewRegistry(Setting{Rate: 1, Burst: 1}, 0)
	// Each key has its own fresh burst token, so both complete at once.
	done := make(chan struct{})
	go func() {
		_ = reg.Acquire(context.Background(), "a")
		_ = reg.Acquire(context.Background(), "b")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("acquisitions on distinct keys should not serialize")
	}
}

func TestAcquireRespectsCancellation(t *testing.T) {
	reg := NewRegistry(Setting{Rate: 0.1, Burst: 1}, 0)
	require.NoError(t, reg.Acquire(context.Background(), "slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := reg.Acquire(ctx, "slow")
	assert.Error(t, err)
}

func TestConfigurePerKey(t *testing.T) {
	reg := NewRegistry(Setting{Rate: 0.01, Burst: 1}, 0)
	reg.Configure("fast", Setting{Rate: 1000, Burst: 10})

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, reg.Acquire(context.Background(), "fast"))
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestWaitObserverSeesDelays(t *testing.T) {
	reg := NewRegistry(Setting{Rate: 100, Burst: 1}, 0)
	var mu sync.Mutex
	var waits []time.Duration
	reg.SetWaitObserver(func(d time.Duration) {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, reg.Acquire(context.Background(), "observed"))
	}
	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, waits)
}
