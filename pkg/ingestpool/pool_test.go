package ingestpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NonPositiveWorkersDefaultsToOne(t *testing.T) {
	p := New(0)
	require.NotNil(t, p)
	assert.Equal(t, 1, p.workers)
}

func TestRun_ProcessesEveryItem(t *testing.T) {
	p := New(4)
	items := []int{1, 2, 3, 4, 5}

	out := Run(context.Background(), p, items, func(ctx context.Context, n int) (int, error) {
		return n * n, nil
	})

	got := map[int]int{}
	for r := range out {
		require.NoError(t, r.Err)
		got[r.Index] = r.Value
	}

	assert.Len(t, got, len(items))
	for i, n := range items {
		assert.Equal(t, n*n, got[i])
	}
}

func TestRun_NeverExceedsWorkerBudget(t *testing.T) {
	p := New(2)
	items := make([]int, 20)

	var inFlight, maxSeen int64
	out := Run(context.Background(), p, items, func(ctx context.Context, n int) (int, error) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			max := atomic.LoadInt64(&maxSeen)
			if cur <= max || atomic.CompareAndSwapInt64(&maxSeen, max, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return n, nil
	})
	for range out {
	}

	assert.LessOrEqual(t, atomic.LoadInt64(&maxSeen), int64(2))
}

func TestRun_PropagatesPerItemErrors(t *testing.T) {
	p := New(3)
	items := []int{1, 2, 3}
	boom := errors.New("boom")

	out := Run(context.Background(), p, items, func(ctx context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})

	var failed int
	for r := range out {
		if r.Err != nil {
			failed++
			assert.Equal(t, boom, r.Err)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestRun_CancelledContextStopsRemainingWork(t *testing.T) {
	p := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []int{1, 2, 3}
	out := Run(ctx, p, items, func(ctx context.Context, n int) (int, error) {
		return n, nil
	})

	for r := range out {
		assert.Error(t, r.Err)
	}
}
