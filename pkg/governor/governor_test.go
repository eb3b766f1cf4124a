package governor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphoreAcquireRelease(t *testing.T) {
	s := NewSemaphore(2)
	ctx := context.Background()

	require.NoError(t, s.Acquire(ctx, 2))
	assert.Equal(t, uint64(2), s.InUse())

	s.Release(1)
	assert.Equal(t, uint64(1), s.InUse())

	s.Release(1)
	assert.Equal(t, uint64(0), s.InUse())
}

func TestSemaphoreExceedsCapacity(t *testing.T) {
	s := NewSemaphore(4)
	err := s.Acquire(context.Background(), 5)
	assert.ErrorIs(t, err, ErrExceedsCapacity)
}

func TestSemaphoreTryAcquire(t *testing.T) {
	s := NewSemaphore(1)
	assert.True(t, s.TryAcquire(1))
	assert.False(t, s.TryAcquire(1))
	s.Release(1)
	assert.True(t, s.TryAcquire(1))
}

func TestSemaphoreBlocksUntilReleased(t *testing.T) {
	s := NewSemaphore(1)
	require.NoError(t, s.Acquire(context.Background(), 1))

	acquired := make(chan struct{})
	go func() {
		require.NoError(t, s.Acquire(context.Background(), 1))
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("acquire should have blocked while the only unit was held")
	case <-time.After(50 * time.Millisecond):
	}

	s.Release(1)

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("acquire should have unblocked after release")
	}
}

func TestSemaphoreAcquireCancellation(t *testing.T) {
	s := NewSemaphore(1)
	require.NoError(t, s.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Acquire(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSemaphoreConcurrentAcquireNeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	s := NewSemaphore(capacity)

	var wg sync.WaitGroup
	var mu sync.Mutex
	maxObserved := uint64(0)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, s.Acquire(context.Background(), 1))
			mu.Lock()
			if inUse := s.InUse(); inUse > maxObserved {
				maxObserved = inUse
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			s.Release(1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxObserved, uint64(capacity))
	assert.Equal(t, uint64(0), s.InUse())
}

func TestGovernorAcquireWithTimeout(t *testing.T) {
	g := New(Config{S3Permits: 1, MemPermits: 1024, CPUPermits: 1})
	require.NoError(t, g.S3.Acquire(context.Background(), 1))

	err := g.AcquireWithTimeout(context.Background(), g.S3, 1, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	g.S3.Release(1)
	require.NoError(t, g.AcquireWithTimeout(context.Background(), g.S3, 1, time.Second))
}
