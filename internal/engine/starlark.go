// internal/engine/starlark.go
package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// StarlarkEngine executes payloads with the Starlark interpreter. Top-level
// definitions persist across executions, standing in for the host's
// persistent scene state: an object a script defines is visible to every
// later script.
type StarlarkEngine struct {
	opts *syntax.FileOptions

	// base holds host-provided bindings available to every script.
	base starlark.StringDict

	// globals accumulates top-level definitions from completed scripts.
	// Only the host thread touches it.
	globals starlark.StringDict
}

// NewStarlark creates a Starlark engine. predeclared may carry additional
// host bindings; send_status and scene_info are always injected.
func NewStarlark(predeclared starlark.StringDict) *StarlarkEngine {
	base := make(starlark.StringDict, len(predeclared))
	for name, value := range predeclared {
		base[name] = value
	}
	return &StarlarkEngine{
		opts: &syntax.FileOptions{
			Set:             true,
			While:           true,
			TopLevelControl: true,
			GlobalReassign:  true,
			Recursion:       true,
		},
		base:    base,
		globals: make(starlark.StringDict),
	}
}

// Exec implements Engine. Failures return an *ExecError carrying the
// interpreter's message and backtrace.
func (e *StarlarkEngine) Exec(code string, report func(msg string)) error {
	thread := &starlark.Thread{
		Name: "bridge-job",
		Print: func(_ *starlark.Thread, msg string) {
			report(msg)
		},
	}

	predeclared := make(starlark.StringDict, len(e.base)+len(e.globals)+2)
	for name, value := range e.base {
		predeclared[name] = value
	}
	for name, value := range e.globals {
		predeclared[name] = value
	}
	predeclared["send_status"] = starlark.NewBuiltin("send_status", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var msg string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &msg); err != nil {
			return nil, err
		}
		report(msg)
		return starlark.None, nil
	})
	predeclared["scene_info"] = starlark.NewBuiltin("scene_info", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		return starlark.String(e.inventory()), nil
	})

	globals, err := starlark.ExecFileOptions(e.opts, thread, "payload.star", code, predeclared)
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return &ExecError{Message: evalErr.Msg, Trace: evalErr.Backtrace()}
		}
		// Syntax and resolve errors carry their position in the message.
		return &ExecError{Message: err.Error(), Trace: err.Error()}
	}

	for name, value := range globals {
		e.globals[name] = value
	}
	return nil
}

// inventory summarizes the persistent top-level state as "name=Type" pairs,
// the stand-in host's answer to a scene inventory query.
func (e *StarlarkEngine) inventory() string {
	if len(e.globals) == 0 {
		return "scene is empty"
	}
	entries := make([]string, 0, len(e.globals))
	for name, value := range e.globals {
		entries = append(entries, fmt.Sprintf("%s=%s", name, value.Type()))
	}
	sort.Strings(entries)
	return strings.Join(entries, ", ")
}
