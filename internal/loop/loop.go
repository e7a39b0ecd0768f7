// Package loop provides the cooperative task queue every store is driven from.
//
// A Loop runs posted tasks one at a time, in order, on a single goroutine.
// Posting a task is the "end of the current execution window" primitive the
// pub/sub store uses to coalesce a burst of writes into one notification
// flush: the flush runs only after the task that caused the writes returns.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
	"git.home.luguber.info/inful/treestate/internal/logfields"
)

// Scheduler accepts tasks to run after the current one completes.
type Scheduler interface {
	Post(task func())
}

// ErrClosed is returned by Do once the loop has been closed.
var ErrClosed = ferrors.RuntimeError("event loop is closed").Build()

// Loop is a FIFO task queue drained by Run.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// New creates a loop. Nothing runs until Run is called.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Post enqueues task. Tasks posted after Close are dropped.
func (l *Loop) Post(task func()) {
	if task == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.logger.Debug("Dropping task posted to closed loop")
		return
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop and waits for it to finish. It must not be called
// from a task running on the same loop.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}

	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "waiting for event loop").Build()
	}
}

// Run drains tasks until ctx is canceled or Close is called. Tasks already
// queued when Close is called still run.
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })

	for {
		for {
			task, ok := l.next()
			if !ok {
				break
			}
			l.runTask(task)
		}

		l.mu.Lock()
		closed := l.closed && len(l.queue) == 0
		l.mu.Unlock()
		if closed {
			return
		}

		select {
		case <-ctx.Done():
			l.Close()
			return
		case <-l.wake:
		}
	}
}

// Close stops intake; Run returns once the queue is empty.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Event loop task panicked", logfields.Error(fmt.Errorf("%v", r)))
		}
	}()
	task()
}
