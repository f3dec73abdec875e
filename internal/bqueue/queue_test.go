package bqueue

// ============================================================================
// Bounded Queue Test File
// Purpose: Verify ring buffer invariants, blocking semantics, and close/reset
// ============================================================================

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQueueBasicRoundTrip covers spec.md §8 scenario 1.
func TestQueueBasicRoundTrip(t *testing.T) {
	q := New[int](8)
	ctx := context.Background()

	require.NoError(t, q.PutN(ctx, []int{0, 1, 2, 3, 4, 5}))
	got := make([]int, 3)
	require.NoError(t, q.GetN(ctx, got))
	assert.Equal(t, []int{0, 1, 2}, got)

	require.NoError(t, q.PutN(ctx, []int{6, 7, 8, 9}))
	assert.Equal(t, 7, q.Len())
	got7 := make([]int, 7)
	require.NoError(t, q.GetN(ctx, got7))
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9}, got7)

	require.NoError(t, q.Close())
	_, err := q.Get(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

// TestQueueTwoProducersTwoConsumers covers spec.md §8 scenario 2.
func TestQueueTwoProducersTwoConsumers(t *testing.T) {
	q := New[int](16)
	ctx := context.Background()
	const perProducer = 1000

	var wgProd sync.WaitGroup
	wgProd.Add(2)
	for p := 0; p < 2; p++ {
		go func() {
			defer wgProd.Done()
			for i := 0; i < perProducer; i++ {
				require.NoError(t, q.Put(ctx, 1))
			}
		}()
	}

	var mu sync.Mutex
	total := 0
	count := 0
	var wgCons sync.WaitGroup
	wgCons.Add(2)
	for c := 0; c < 2; c++ {
		go func() {
			defer wgCons.Done()
			for {
				v, err := q.Get(ctx)
				if errors.Is(err, ErrClosed) {
					return
				}
				require.NoError(t, err)
				mu.Lock()
				total += v
				count++
				mu.Unlock()
			}
		}()
	}

	wgProd.Wait()
	require.NoError(t, q.Close())
	wgCons.Wait()

	assert.Equal(t, 2*perProducer, count)
	assert.Equal(t, 2*perProducer, total)
}

func TestQueuePutBlocksUntilSpace(t *testing.T) {
	q := New[int](2)
	ctx := context.Background()
	require.NoError(t, q.PutN(ctx, []int{1, 2}))

	done := make(chan struct{})
	go func() {
		require.NoError(t, q.Put(ctx, 3))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Put should have blocked with a full queue")
	case <-time.After(50 * time.Millisecond):
	}

	v, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Put should have unblocked after Get freed space")
	}
}

func TestQueuePutNTimedTimesOut(t *testing.T) {
	q := New[int](1)
	require.NoError(t, q.Put(context.Background(), 1))

	start := time.Now()
	err := q.PutNTimed([]int{2}, 30*time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestQueueGetNTimedTimesOut(t *testing.T) {
	q := New[int](4)
	start := time.Now()
	err := q.GetNTimed(make([]int, 1), 30*time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestQueueCloseWakesWaiters(t *testing.T) {
	q := New[int](1)
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Get(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Close did not wake blocked Get")
	}
}

func TestQueueGetAtMost(t *testing.T) {
	q := New[int](8)
	ctx := context.Background()
	require.NoError(t, q.PutN(ctx, []int{1, 2, 3}))

	dst := make([]int, 5)
	n, err := q.GetAtMost(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2, 3}, dst[:n])

	require.NoError(t, q.Close())
	n, err = q.GetAtMost(ctx, dst)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestQueueResetRequiresClosed(t *testing.T) {
	q := New[int](2)
	assert.ErrorIs(t, q.Reset(), ErrNotQuiescent)

	require.NoError(t, q.Close())
	require.NoError(t, q.Reset())
	assert.False(t, q.IsClosed())
	assert.Equal(t, 0, q.Len())

	require.NoError(t, q.Put(context.Background(), 42))
	v, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestQueuePutNTooLarge(t *testing.T) {
	q := New[int](2)
	err := q.PutN(context.Background(), []int{1, 2, 3})
	assert.ErrorIs(t, err, ErrTooLarge)
}
