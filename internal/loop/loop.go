// Package loop runs closures one at a time, in the order they were posted,
// on a single goroutine. Posting never blocks.
package loop

import (
	"errors"
	"sync"
)

var ErrStopped = errors.New("loop is stopped")

type Loop struct {
	mu      sync.Mutex
	tasks   []func()
	stopped bool

	wake   chan struct{}
	exited chan struct{}
}

func New() *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		exited: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.exited)
	for {
		l.mu.Lock()
		tasks, stopped := l.tasks, l.stopped
		l.tasks = nil
		l.mu.Unlock()

		for _, fn := range tasks {
			fn()
		}
		if len(tasks) > 0 {
			continue
		}
		if stopped {
			return
		}
		<-l.wake
	}
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Post queues fn. It reports false when the loop was stopped and fn will
// never run.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	l.signal()
	return true
}

// Do runs fn on the loop and waits for its result. It must not be called
// from the loop goroutine itself.
func (l *Loop) Do(fn func() error) error {
	errc := make(chan error, 1)
	if !l.Post(func() { errc <- fn() }) {
		return ErrStopped
	}
	return <-errc
}

// Stop refuses further posts. Tasks already queued still run.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.signal()
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} { return l.exited }
