// Package loop runs tracking work on a single goroutine. Location samples and
// user edits are submitted here so the registry and engine only ever see one
// mutation at a time, in arrival order.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"supernomad/internal/tracking/metrics"
	"supernomad/pkg/platform/sentinel"
)

const (
	DefaultQueueSize      = 64
	DefaultEnqueueTimeout = 100 * time.Millisecond
)

var (
	ErrQueueFull  = errors.New("tracking loop queue full")
	ErrLoopClosed = fmt.Errorf("tracking loop: %w", sentinel.ErrClosed)
)

// Job is one unit of serialized work.
type Job func(ctx context.Context) error

type queuedJob struct {
	ctx    context.Context
	job    Job
	result chan error
}

type Loop struct {
	queue          chan queuedJob
	enqueueTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics

	done    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
	once    sync.Once
}

type Option func(*Loop)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

// WithEnqueueTimeout bounds how long Submit waits for queue space before
// failing with ErrQueueFull.
func WithEnqueueTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.enqueueTimeout = d
		}
	}
}

// New starts the loop goroutine. A non-positive size uses DefaultQueueSize.
func New(size int, opts ...Option) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	l := &Loop{
		queue:          make(chan queuedJob, size),
		enqueueTimeout: DefaultEnqueueTimeout,
		logger:         slog.Default(),
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.run()
	return l
}

// Submit enqueues job and waits for it to finish, returning its error.
//
//   - ErrLoopClosed once Close was called, including for jobs still queued
//     at that moment.
//   - ErrQueueFull when no slot frees up within the enqueue timeout.
//   - ctx.Err() if ctx ends first. A job already dequeued still runs to
//     completion on a context that ctx can no longer cancel.
func (l *Loop) Submit(ctx context.Context, job Job) error {
	if job == nil {
		return fmt.Errorf("job is required")
	}
	if l.closed.Load() {
		return ErrLoopClosed
	}

	qj := queuedJob{ctx: ctx, job: job, result: make(chan error, 1)}
	timer := time.NewTimer(l.enqueueTimeout)
	defer timer.Stop()

	select {
	case l.queue <- qj:
		l.metrics.SetQueueDepth(len(l.queue))
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		l.metrics.IncrementRejected()
		return ErrQueueFull
	}

	select {
	case err := <-qj.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		select {
		case err := <-qj.result:
			return err
		default:
			return ErrLoopClosed
		}
	}
}

// Close stops intake. The in-flight job finishes; queued jobs fail with
// ErrLoopClosed. Close blocks until the loop goroutine exits and is safe to
// call more than once.
func (l *Loop) Close() error {
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
	<-l.stopped
	return nil
}

func (l *Loop) run() {
	defer close(l.stopped)
	for {
		select {
		case <-l.done:
			l.reject()
			return
		default:
		}

		select {
		case qj := <-l.queue:
			l.metrics.SetQueueDepth(len(l.queue))
			qj.result <- l.execute(qj)
		case <-l.done:
			l.reject()
			return
		}
	}
}

func (l *Loop) execute(qj queuedJob) (err error) {
	if err := qj.ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			l.logger.ErrorContext(qj.ctx, "tracking loop job panicked", "panic", r)
			err = fmt.Errorf("tracking loop job panicked: %v", r)
		}
		l.metrics.ObserveJob(start)
	}()
	return qj.job(context.WithoutCancel(qj.ctx))
}

func (l *Loop) reject() {
	n := 0
	for {
		select {
		case qj := <-l.queue:
			qj.result <- ErrLoopClosed
			n++
		default:
			if n > 0 {
				l.logger.Info("tracking loop closed with queued jobs", "rejected", n)
			}
			l.metrics.SetQueueDepth(0)
			return
		}
	}
}
