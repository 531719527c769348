// internal/schedule/scheduler.go
package schedule

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Scheduler errors
var (
	// ErrQueueFull indicates the job queue reached its depth bound
	ErrQueueFull = errors.New("job queue is full")

	// ErrClosed indicates the scheduler is shut down and not accepting jobs
	ErrClosed = errors.New("scheduler is closed")
)

// Host is the cooperative scheduling primitive the host application exposes:
// run a callback on its main thread at its next idle opportunity. The host
// offers no job queue of its own; the Scheduler builds one on top.
type Host interface {
	// Schedule queues fn to run on the host's main thread. Callbacks run
	// one at a time and must never panic.
	Schedule(fn func())
}

// Executor runs one script payload on the host thread. Implementations must
// capture every failure in the returned Outcome and must not panic; the tick
// callback that invokes them cannot afford to fail.
type Executor interface {
	Execute(code string, report func(msg string)) Outcome
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(code string, report func(msg string)) Outcome

// Execute implements Executor.
func (f ExecutorFunc) Execute(code string, report func(msg string)) Outcome {
	return f(code, report)
}

// Config holds scheduler configuration.
type Config struct {
	// MaxQueueDepth bounds the number of jobs waiting for the host thread.
	MaxQueueDepth int
}

// Scheduler marshals jobs from connection handlers onto the host's tick
// thread. Jobs run strictly in submission order; no job begins before the
// previous one's outcome is resolved.
type Scheduler struct {
	host Host
	exec Executor

	// mu guards queue and armed only. It is held for the brief
	// enqueue/dequeue operations, never across payload execution.
	mu     sync.Mutex
	queue  []*Job
	armed  bool
	closed bool

	maxDepth int

	executed atomic.Int64
	failed   atomic.Int64
}

// New creates a scheduler over the given host tick primitive and executor.
func New(h Host, exec Executor, cfg Config) *Scheduler {
	depth := cfg.MaxQueueDepth
	if depth < 1 {
		depth = 64
	}
	return &Scheduler{
		host:     h,
		exec:     exec,
		maxDepth: depth,
	}
}

// Submit enqueues a job and arms the host tick callback if none is pending.
// It returns immediately; the caller waits on the job's Result channel.
func (s *Scheduler) Submit(job *Job) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if len(s.queue) >= s.maxDepth {
		s.mu.Unlock()
		return ErrQueueFull
	}
	s.queue = append(s.queue, job)
	arm := !s.armed
	if arm {
		s.armed = true
	}
	s.mu.Unlock()

	if arm {
		s.host.Schedule(s.tick)
	}
	return nil
}

// tick runs on the host thread. It pops the oldest job, executes it, and
// resolves its result slot, then re-arms itself if more jobs are waiting.
func (s *Scheduler) tick() {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.armed = false
		s.mu.Unlock()
		return
	}
	job := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	out := s.exec.Execute(job.Code, job.report)

	s.executed.Add(1)
	if !out.OK {
		s.failed.Add(1)
	}
	job.resolve(out)

	s.mu.Lock()
	rearm := len(s.queue) > 0 && !s.closed
	if !rearm {
		s.armed = false
	}
	s.mu.Unlock()

	if rearm {
		s.host.Schedule(s.tick)
	}
}

// Close stops intake and resolves every still-queued job with a scheduler
// failure so its handler can synthesize a terminal response. A job already
// dispatched to the host thread runs to completion.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	stranded := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, job := range stranded {
		job.resolve(Outcome{
			OK:      false,
			Message: "bridge shut down before the script could run",
		})
	}
}

// QueueDepth returns the number of jobs waiting for the host thread.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stats returns the number of jobs executed and how many of those failed.
func (s *Scheduler) Stats() (executed, failed int64) {
	return s.executed.Load(), s.failed.Load()
}
