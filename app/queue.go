package app

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type task func(ctx context.Context)

// taskQueue runs tasks one at a time in FIFO order. push never blocks, so
// channel and player callbacks can enqueue from any goroutine.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []task
	closed bool
	wake   chan struct{}
	quit   chan struct{}
	done   chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (q *taskQueue) push(t task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *taskQueue) pop() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || len(q.tasks) == 0 {
		return nil, false
	}
	t := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	return t, true
}

// run is the worker loop. timeout, when positive, bounds each task. onPanic
// receives anything a task panics with.
func (q *taskQueue) run(ctx context.Context, timeout time.Duration, onPanic func(error)) {
	defer close(q.done)
	for {
		if t, ok := q.pop(); ok {
			q.exec(ctx, t, timeout, onPanic)
			continue
		}
		select {
		case <-q.quit:
			return
		case <-q.wake:
		}
	}
}

func (q *taskQueue) exec(ctx context.Context, t task, timeout time.Duration, onPanic func(error)) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(fmt.Errorf("task panic: %v", r))
		}
	}()
	t(ctx)
}

// close stops accepting tasks and drops those not yet started. It returns
// how many were dropped. The task in flight, if any, runs to completion.
func (q *taskQueue) close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0
	}
	q.closed = true
	dropped := len(q.tasks)
	q.tasks = nil
	close(q.quit)
	return dropped
}

func (q *taskQueue) wait() {
	<-q.done
}
