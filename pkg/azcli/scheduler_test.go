package azcli

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_CeilingNeverExceeded(t *testing.T) {
	// Given a scheduler with a ceiling of 2
	sched := NewScheduler(2)

	var mu sync.Mutex
	maxObserved := 0

	// When 10 goroutines acquire and release slots concurrently
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sched.Acquire(context.Background()))
			defer sched.Release()

			stats := sched.Stats()
			mu.Lock()
			if stats.Running > maxObserved {
				maxObserved = stats.Running
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)
		}()
	}
	wg.Wait()

	// Then the observed running count never exceeds the ceiling
	assert.LessOrEqual(t, maxObserved, 2)
	assert.Equal(t, Stats{Running: 0, Queued: 0, MaxConcurrency: 2}, sched.Stats())
}

func TestScheduler_FIFOOrder(t *testing.T) {
	// Given a scheduler with a ceiling of 1 whose only slot is occupied
	sched := NewScheduler(1)
	require.NoError(t, sched.Acquire(context.Background()))

	started := make(chan string, 3)
	var wg sync.WaitGroup

	// When A, B, C queue up in that order
	for _, name := range []string{"A", "B", "C"} {
		queuedBefore := sched.Stats().Queued
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			assert.NoError(t, sched.Acquire(context.Background()))
			started <- name
			sched.Release()
		}(name)

		// Wait for this submission to reach the queue before the next one
		require.Eventually(t, func() bool {
			return sched.Stats().Queued == queuedBefore+1
		}, time.Second, time.Millisecond)
	}

	// And the occupied slot is released
	sched.Release()
	wg.Wait()
	close(started)

	// Then they start running in arrival order
	var order []string
	for name := range started {
		order = append(order, name)
	}
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestScheduler_CancelWhileQueued(t *testing.T) {
	// Given a scheduler whose only slot is occupied
	sched := NewScheduler(1)
	require.NoError(t, sched.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- sched.Acquire(ctx)
	}()

	require.Eventually(t, func() bool {
		return sched.Stats().Queued == 1
	}, time.Second, time.Millisecond)

	// When the queued request is cancelled
	cancel()

	// Then it resolves as cancelled and leaves the queue
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("queued Acquire did not resolve after cancellation")
	}
	assert.Equal(t, 0, sched.Stats().Queued)

	sched.Release()
}

func TestScheduler_AcquireWithCancelledContext(t *testing.T) {
	sched := NewScheduler(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// An already-cancelled submission never takes a slot
	err := sched.Acquire(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 0, sched.Stats().Running)
}

func TestScheduler_CancelAllDrainsQueue(t *testing.T) {
	// Given an occupied scheduler with two queued requests
	sched := NewScheduler(1)
	require.NoError(t, sched.Acquire(context.Background()))

	errCh := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errCh <- sched.Acquire(context.Background())
		}()
	}
	require.Eventually(t, func() bool {
		return sched.Stats().Queued == 2
	}, time.Second, time.Millisecond)

	// When everything is cancelled
	sched.CancelAll()

	// Then both queued requests resolve as cancelled
	for i := 0; i < 2; i++ {
		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, ErrCancelled)
		case <-time.After(time.Second):
			t.Fatal("queued Acquire did not resolve after CancelAll")
		}
	}
	assert.Equal(t, 0, sched.Stats().Queued)
}

func TestScheduler_ResetCleanliness(t *testing.T) {
	sched := NewScheduler(2)
	require.NoError(t, sched.Acquire(context.Background()))
	require.NoError(t, sched.Acquire(context.Background()))

	sched.CancelAll()
	sched.Reset()

	stats := sched.Stats()
	assert.Equal(t, 0, stats.Running)
	assert.Equal(t, 0, stats.Queued)
	assert.Equal(t, 2, stats.MaxConcurrency)
}

func TestScheduler_ReleaseOfPreResetWorkKeepsCeiling(t *testing.T) {
	// Given a ceiling of 1 with one request admitted, then abandoned by Reset
	sched := NewScheduler(1)
	require.NoError(t, sched.Acquire(context.Background()))
	sched.Reset()

	// And a new request holding the freshly zeroed slot
	require.NoError(t, sched.Acquire(context.Background()))

	// When the abandoned request finally finishes and releases
	sched.Release()

	// Then the new request still occupies the only slot
	assert.Equal(t, 1, sched.Stats().Running)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sched.Acquire(ctx), ErrCancelled)

	// And only the new request's own release frees the slot
	sched.Release()
	require.NoError(t, sched.Acquire(context.Background()))
	sched.Release()
}

func TestScheduler_StatsIdempotent(t *testing.T) {
	sched := NewScheduler(3)
	require.NoError(t, sched.Acquire(context.Background()))

	// Repeated reads with no intervening submissions are identical
	first := sched.Stats()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, sched.Stats())
	}

	sched.Release()
}

func TestScheduler_NonPositiveCeilingFallsBack(t *testing.T) {
	sched := NewScheduler(0)
	assert.Equal(t, DefaultMaxConcurrency, sched.Stats().MaxConcurrency)
}
