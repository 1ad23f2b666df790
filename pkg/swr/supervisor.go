package swr

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Supervisor runs fire-and-forget tasks, logs their failures and lets
// shutdown wait for them.
type Supervisor struct {
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewSupervisor creates a Supervisor. Tasks receive a context that is
// cancelled by Close.
func NewSupervisor(logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Spawn starts fn in its own goroutine and returns immediately. It returns
// false if the supervisor is closed.
func (s *Supervisor) Spawn(name, key string, fn func(ctx context.Context) error) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("supervisor-closed-task-dropped",
			zap.String("task", name),
			zap.String("key", key))
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	taskID := uuid.NewString()
	TasksActive.Inc()

	go func() {
		defer s.wg.Done()
		defer TasksActive.Dec()

		err := s.runTask(fn)
		if err != nil {
			TasksTotal.WithLabelValues(name, "failure").Inc()
			s.logger.Warn("background-task-failed",
				zap.String("task", name),
				zap.String("task-id", taskID),
				zap.String("key", key),
				zap.Error(err))
			return
		}
		TasksTotal.WithLabelValues(name, "success").Inc()
		s.logger.Debug("background-task-completed",
			zap.String("task", name),
			zap.String("task-id", taskID),
			zap.String("key", key))
	}()

	return true
}

func (s *Supervisor) runTask(fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(s.ctx)
}

// Wait blocks until every spawned task has returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Close stops accepting tasks, cancels running ones and waits for them.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Info("supervisor-closed")
}
