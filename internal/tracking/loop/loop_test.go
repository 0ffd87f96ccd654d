package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supernomad/internal/platform/logger"
	"supernomad/pkg/platform/sentinel"
)

func newLoop(t *testing.T, size int, opts ...Option) *Loop {
	t.Helper()
	l := New(size, append([]Option{WithLogger(logger.Discard())}, opts...)...)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// block occupies the loop until the returned release func is called.
func block(t *testing.T, l *Loop) (release func(), result <-chan error) {
	t.Helper()
	started := make(chan struct{})
	gate := make(chan struct{})
	res := make(chan error, 1)
	go func() {
		res <- l.Submit(context.Background(), func(context.Context) error {
			close(started)
			<-gate
			return nil
		})
	}()
	<-started
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }, res
}

func TestSubmitReturnsJobResult(t *testing.T) {
	l := newLoop(t, 4)
	boom := errors.New("boom")

	assert.NoError(t, l.Submit(context.Background(), func(context.Context) error { return nil }))
	assert.ErrorIs(t, l.Submit(context.Background(), func(context.Context) error { return boom }), boom)
	assert.Error(t, l.Submit(context.Background(), nil))
}

func TestJobsNeverOverlap(t *testing.T) {
	l := newLoop(t, 128)
	var inflight, maxInflight atomic.Int32
	counter := 0

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Submit(context.Background(), func(context.Context) error {
				n := inflight.Add(1)
				if n > maxInflight.Load() {
					maxInflight.Store(n)
				}
				counter++
				inflight.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInflight.Load())
	assert.Equal(t, 50, counter)
}

func TestJobsRunInArrivalOrder(t *testing.T) {
	l := newLoop(t, 16)
	release, _ := block(t, l)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Submit(context.Background(), func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		require.Eventually(t, func() bool { return len(l.queue) == i+1 }, time.Second, time.Millisecond)
	}

	release()
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestQueueFull(t *testing.T) {
	l := newLoop(t, 1, WithEnqueueTimeout(10*time.Millisecond))
	release, _ := block(t, l)
	defer release()

	go func() { _ = l.Submit(context.Background(), func(context.Context) error { return nil }) }()
	require.Eventually(t, func() bool { return len(l.queue) == 1 }, time.Second, time.Millisecond)

	err := l.Submit(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestCanceledJobIsSkipped(t *testing.T) {
	l := newLoop(t, 4)
	release, _ := block(t, l)

	ctx, cancel := context.WithCancel(context.Background())
	ran := atomic.Bool{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Submit(ctx, func(context.Context) error {
			ran.Store(true)
			return nil
		})
	}()
	require.Eventually(t, func() bool { return len(l.queue) == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	release()
	// A barrier job proves the canceled one has been dequeued.
	require.NoError(t, l.Submit(context.Background(), func(context.Context) error { return nil }))
	assert.False(t, ran.Load())
}

func TestStartedJobOutlivesCallerCancel(t *testing.T) {
	l := newLoop(t, 4)
	type key struct{}
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "req-1"))

	started := make(chan struct{})
	gate := make(chan struct{})
	jobErr := make(chan error, 1)
	submitErr := make(chan error, 1)
	go func() {
		submitErr <- l.Submit(ctx, func(jobCtx context.Context) error {
			close(started)
			<-gate
			assert.Equal(t, "req-1", jobCtx.Value(key{}))
			jobErr <- jobCtx.Err()
			return nil
		})
	}()
	<-started
	cancel()
	assert.ErrorIs(t, <-submitErr, context.Canceled)

	close(gate)
	assert.NoError(t, <-jobErr)
}

func TestPanicIsRecovered(t *testing.T) {
	l := newLoop(t, 4)
	err := l.Submit(context.Background(), func(context.Context) error { panic("bad sample") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad sample")

	assert.NoError(t, l.Submit(context.Background(), func(context.Context) error { return nil }))
}

func TestCloseLetsInflightFinishAndRejectsQueued(t *testing.T) {
	l := newLoop(t, 4)
	release, inflight := block(t, l)

	queued := make(chan error, 1)
	go func() {
		queued <- l.Submit(context.Background(), func(context.Context) error { return nil })
	}()
	require.Eventually(t, func() bool { return len(l.queue) == 1 }, time.Second, time.Millisecond)

	closed := make(chan struct{})
	go func() {
		_ = l.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("close returned before the in-flight job finished")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	<-closed
	assert.NoError(t, <-inflight)
	assert.ErrorIs(t, <-queued, ErrLoopClosed)

	err := l.Submit(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLoopClosed)
	assert.ErrorIs(t, err, sentinel.ErrClosed)
	assert.NoError(t, l.Close())
}
