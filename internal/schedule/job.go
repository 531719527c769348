// Package schedule provides the host-affinity job queue for the bridge.
//
// The host application is single-threaded and must never be driven
// concurrently, so every submitted script funnels through one FIFO queue
// drained by a callback on the host's own tick thread. Connection handlers
// submit jobs and block on the job's result slot; the tick callback executes
// jobs one at a time, in submission order, and resolves each slot exactly
// once.
//
// Architecture:
//
//	handler goroutine → Scheduler.Submit → [FIFO queue] → host tick → Executor
//	                 ← result slot (buffered, single assignment) ←
package schedule

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// statusBufferSize bounds a job's progress sink. The handler drains the sink
// concurrently while the job runs; if a script emits faster than the
// connection drains, further events are dropped rather than blocking the
// host thread.
const statusBufferSize = 256

// Outcome is the terminal result of a job: success, or a failure captured at
// the execution boundary. Immutable once constructed.
type Outcome struct {
	// OK indicates the script completed without error
	OK bool

	// Message describes the failure when OK is false
	Message string

	// Trace is the diagnostic backtrace captured at the failure site
	Trace string
}

// Job is one submitted script payload and its progress/result state, from
// submission to terminal resolution.
type Job struct {
	// ID uniquely identifies this job
	ID string

	// Code is the script payload to execute
	Code string

	status  chan string
	result  chan Outcome
	once    sync.Once
	dropped atomic.Int64
}

// NewJob creates a job for the given script payload.
func NewJob(code string) *Job {
	return &Job{
		ID:     uuid.New().String(),
		Code:   code,
		status: make(chan string, statusBufferSize),
		result: make(chan Outcome, 1),
	}
}

// Status returns the ordered stream of progress messages emitted by the
// script. All messages precede the value on Result.
func (j *Job) Status() <-chan string {
	return j.status
}

// Result returns the single-assignment result slot. Exactly one Outcome is
// delivered, written only by the host-thread execution path (or by the
// scheduler's shutdown path for jobs that never ran).
func (j *Job) Result() <-chan Outcome {
	return j.result
}

// Dropped returns the number of progress messages discarded because the
// sink was full.
func (j *Job) Dropped() int64 {
	return j.dropped.Load()
}

// report appends a progress message to the status sink without ever
// blocking the calling (host) thread.
func (j *Job) report(msg string) {
	select {
	case j.status <- msg:
	default:
		j.dropped.Add(1)
	}
}

// resolve writes the job's outcome. At most one write wins; later calls are
// ignored, which keeps the exactly-one-terminal invariant intact even if a
// shutdown races the tick callback.
func (j *Job) resolve(out Outcome) {
	j.once.Do(func() {
		j.result <- out
	})
}
