// internal/host/loop.go
package host

import (
	"context"
	"runtime"
	"sync"
)

// TickLoop is a single-threaded callback loop standing in for the host
// application's main thread. All scheduled callbacks run on one locked OS
// thread, one at a time, in scheduling order.
type TickLoop struct {
	mu      sync.Mutex
	pending []func()
	running bool
	stopped bool

	// wake nudges the loop goroutine when work or a stop request arrives
	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewTickLoop creates a tick loop. Call Start before scheduling work.
func NewTickLoop() *TickLoop {
	return &TickLoop{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the loop goroutine.
func (l *TickLoop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return ErrAlreadyRunning
	}
	if l.stopped {
		return ErrNotRunning
	}
	l.running = true
	go l.run()
	return nil
}

// Schedule queues fn to run on the loop thread. Scheduling after Stop is a
// no-op; the scheduler's shutdown path resolves any work that never ran.
func (l *TickLoop) Schedule(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Stop shuts the loop down and waits for the current callback to finish,
// or for ctx to expire.
func (l *TickLoop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return ErrNotRunning
	}
	l.running = false
	l.stopped = true
	l.mu.Unlock()

	close(l.stop)

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the loop body. The OS thread lock mirrors the host constraint that
// scene state is owned by exactly one thread.
func (l *TickLoop) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.done)

	for {
		select {
		case <-l.stop:
			return
		case <-l.wake:
			l.drain()
		}
	}
}

// drain runs all currently pending callbacks in order.
func (l *TickLoop) drain() {
	for {
		l.mu.Lock()
		if len(l.pending) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.pending[0]
		l.pending = l.pending[1:]
		l.mu.Unlock()

		fn()
	}
}

// IsRunning reports whether the loop is accepting work.
func (l *TickLoop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
