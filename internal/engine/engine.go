// Package engine executes submitted script payloads on the host thread.
//
// The engine is opaque to the bridge core: it is handed a payload and a
// status-report callback, and either finishes or fails with a message and a
// diagnostic trace. Run wraps every invocation in an isolating boundary so
// that no failure, including a panic, can propagate into the host tick
// callback.
package engine

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Engine runs one script payload. Exec is only ever called from the host
// thread, one payload at a time; implementations need no internal locking
// for per-execution state.
type Engine interface {
	// Exec runs code. report delivers intermediate status messages emitted
	// by the script through its injected send_status capability.
	Exec(code string, report func(msg string)) error
}

// ExecError is a script failure captured at the execution boundary.
type ExecError struct {
	// Message is the failure description
	Message string

	// Trace is the diagnostic context captured at the raise site
	Trace string
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	return e.Message
}

// Run invokes eng.Exec inside the isolating call boundary. Any error or
// panic is converted into an ExecError; a nil return means success. Run
// itself never panics.
func Run(eng Engine, code string, report func(msg string)) (execErr *ExecError) {
	defer func() {
		if r := recover(); r != nil {
			execErr = &ExecError{
				Message: fmt.Sprintf("script execution panicked: %v", r),
				Trace:   string(debug.Stack()),
			}
		}
	}()

	err := eng.Exec(code, report)
	if err == nil {
		return nil
	}

	var ee *ExecError
	if errors.As(err, &ee) {
		return ee
	}
	return &ExecError{Message: err.Error(), Trace: err.Error()}
}
