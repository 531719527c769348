// Package host models the single-threaded application that owns the scene.
//
// The real host (Blender) runs scheduled callbacks on its main thread via
// its own timer mechanism. TickLoop is the in-process equivalent: one
// dedicated OS-thread-locked goroutine that drains scheduled callbacks in
// order, giving scripts the same single-threaded execution guarantee.
package host

import "errors"

// Loop errors
var (
	// ErrAlreadyRunning indicates the loop has already been started
	ErrAlreadyRunning = errors.New("host loop is already running")

	// ErrNotRunning indicates the loop is not currently running
	ErrNotRunning = errors.New("host loop is not running")
)

// Host exposes the cooperative "run this on my next tick" primitive of the
// host application's main thread.
type Host interface {
	// Schedule queues fn to run on the host's main thread at its next idle
	// opportunity. Callbacks never run concurrently with one another.
	Schedule(fn func())
}
