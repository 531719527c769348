// internal/engine/engine_test.go
package engine

import (
	"errors"
	"strings"
	"testing"
)

// fakeEngine lets tests drive Run's boundary behavior directly.
type fakeEngine struct {
	exec func(code string, report func(msg string)) error
}

func (f *fakeEngine) Exec(code string, report func(msg string)) error {
	return f.exec(code, report)
}

func TestRunSuccess(t *testing.T) {
	eng := &fakeEngine{exec: func(code string, report func(msg string)) error {
		report("working")
		return nil
	}}

	var got []string
	execErr := Run(eng, "anything", func(msg string) { got = append(got, msg) })
	if execErr != nil {
		t.Fatalf("expected success, got %v", execErr)
	}
	if len(got) != 1 || got[0] != "working" {
		t.Errorf("expected one report, got %v", got)
	}
}

func TestRunPassesThroughExecError(t *testing.T) {
	want := &ExecError{Message: "bad payload", Trace: "line 3"}
	eng := &fakeEngine{exec: func(code string, report func(msg string)) error {
		return want
	}}

	execErr := Run(eng, "anything", func(string) {})
	if execErr != want {
		t.Errorf("expected the original ExecError, got %v", execErr)
	}
}

func TestRunWrapsPlainError(t *testing.T) {
	eng := &fakeEngine{exec: func(code string, report func(msg string)) error {
		return errors.New("engine exploded")
	}}

	execErr := Run(eng, "anything", func(string) {})
	if execErr == nil {
		t.Fatal("expected an ExecError")
	}
	if execErr.Message != "engine exploded" {
		t.Errorf("expected wrapped message, got %q", execErr.Message)
	}
	if execErr.Trace == "" {
		t.Error("expected a non-empty trace")
	}
}

func TestRunRecoversPanic(t *testing.T) {
	eng := &fakeEngine{exec: func(code string, report func(msg string)) error {
		panic("host state corrupted")
	}}

	execErr := Run(eng, "anything", func(string) {})
	if execErr == nil {
		t.Fatal("expected an ExecError from the panic")
	}
	if !strings.Contains(execErr.Message, "host state corrupted") {
		t.Errorf("expected panic value in message, got %q", execErr.Message)
	}
	if execErr.Trace == "" {
		t.Error("expected a stack trace")
	}
}
