// Package flight deduplicates concurrent computations that share a key.
package flight

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Group runs at most one computation per key at a time. Callers arriving
// while a computation is running wait for and share its result. Results,
// including failures, are never retained once the computation settles.
type Group[T any] struct {
	name   string
	group  singleflight.Group
	logger *zap.Logger
}

// New creates a Group. name labels metrics and logs.
func New[T any](name string, logger *zap.Logger) *Group[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Group[T]{name: name, logger: logger}
}

// Run executes fn for key unless an execution for key is already in progress,
// in which case it waits for that execution. shared reports whether the result
// was delivered to more than one caller.
//
// fn runs on a context detached from the caller, so a caller giving up does
// not fail the other waiters. A caller whose ctx is done stops waiting and
// gets ctx.Err().
func (g *Group[T]) Run(ctx context.Context, key string, fn func(context.Context) (T, error)) (v T, shared bool, err error) {
	detached := context.WithoutCancel(ctx)

	ch := g.group.DoChan(key, func() (result any, err error) {
		// Forget before returning so that waiters released with this result
		// can immediately start a fresh execution.
		defer g.group.Forget(key)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("flight %s: panic: %v", key, r)
			}
		}()

		ExecutionsTotal.WithLabelValues(g.name).Inc()
		InFlight.WithLabelValues(g.name).Inc()
		defer InFlight.WithLabelValues(g.name).Dec()

		return fn(detached)
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Shared {
			SharedTotal.WithLabelValues(g.name).Inc()
		}
		if res.Err != nil {
			g.logger.Debug("flight-failed",
				zap.String("group", g.name),
				zap.String("key", key),
				zap.Error(res.Err))
			var zero T
			return zero, res.Shared, res.Err
		}
		out, _ := res.Val.(T)
		return out, res.Shared, nil
	}
}
