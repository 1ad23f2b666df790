// Package limiter bounds the number of simultaneously running tasks.
package limiter

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter admits tasks in FIFO order while at most Ceiling of them run.
// Waiters are queued by the underlying semaphore in arrival order.
type Limiter struct {
	name    string
	ceiling int64
	sem     *semaphore.Weighted
	active  atomic.Int64
	queued  atomic.Int64
}

// New creates a Limiter with ceiling n. n must be at least 1.
func New(name string, n int) (*Limiter, error) {
	if n < 1 {
		return nil, fmt.Errorf("limiter ceiling must be >= 1, got %d", n)
	}
	return &Limiter{
		name:    name,
		ceiling: int64(n),
		sem:     semaphore.NewWeighted(int64(n)),
	}, nil
}

// Ceiling returns the maximum number of concurrently active tasks.
func (l *Limiter) Ceiling() int {
	return int(l.ceiling)
}

// Active returns the number of tasks currently running.
func (l *Limiter) Active() int {
	return int(l.active.Load())
}

// Queued returns the number of tasks waiting for admission.
func (l *Limiter) Queued() int {
	return int(l.queued.Load())
}

// Do waits for a permit, runs fn, and releases the permit when fn returns.
// If ctx is done before admission, fn is not run and ctx.Err() is returned.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()
	return fn(ctx)
}

// Go waits for a permit in the caller's goroutine, then runs fn in a new
// goroutine that releases the permit when fn returns. Calling Go in a loop
// admits tasks in loop order. If ctx is done before admission, fn is not run.
func (l *Limiter) Go(ctx context.Context, fn func(context.Context)) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	go func() {
		defer l.release()
		fn(ctx)
	}()
	return nil
}

func (l *Limiter) acquire(ctx context.Context) error {
	QueuedGauge.WithLabelValues(l.name).Set(float64(l.queued.Add(1)))
	err := l.sem.Acquire(ctx, 1)
	QueuedGauge.WithLabelValues(l.name).Set(float64(l.queued.Add(-1)))
	if err != nil {
		RejectedTotal.WithLabelValues(l.name).Inc()
		return fmt.Errorf("acquire permit: %w", err)
	}
	ActiveGauge.WithLabelValues(l.name).Set(float64(l.active.Add(1)))
	AdmittedTotal.WithLabelValues(l.name).Inc()
	return nil
}

func (l *Limiter) release() {
	ActiveGauge.WithLabelValues(l.name).Set(float64(l.active.Add(-1)))
	l.sem.Release(1)
}

// Schedule runs fn under l and returns its result.
func Schedule[T any](ctx context.Context, l *Limiter, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := l.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
