// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"syscall"
)

// Exit statuses for failures that happen before the command runs. They
// follow the convention shared by env(1), chroot(1) and container
// runtimes so callers can tell launcher failures from command failures.
const (
	ExitSetupFailure  = 125
	ExitNotExecutable = 126
	ExitNotFound      = 127
)

// ErrOutOfOrder is returned when a root swap transition is attempted
// from any state other than its predecessor.
var ErrOutOfOrder = errors.New("transition out of order")

// TransitionError reports the root swap transition that failed.
type TransitionError struct {
	From State
	To   State
	Err  error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s -> %s: %v", e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// ExitCode is ExitSetupFailure; the command never ran.
func (e *TransitionError) ExitCode() int { return ExitSetupFailure }

// PivotError reports a failed pivot_root.
type PivotError struct {
	NewRoot string
	PutOld  string
	Err     error
}

func (e *PivotError) Error() string {
	return fmt.Sprintf("pivot_root %s %s: %v", e.NewRoot, e.PutOld, e.Err)
}

func (e *PivotError) Unwrap() error { return e.Err }

// LaunchError reports a command that could not be executed.
type LaunchError struct {
	Command string
	Err     error

	// Code is ExitNotFound or ExitNotExecutable.
	Code int
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitCode returns ExitNotFound or ExitNotExecutable.
func (e *LaunchError) ExitCode() int { return e.Code }

// execError classifies an execve failure. ENOENT after a successful
// lookup means the interpreter or dynamic loader is missing, which
// shells report as not found too.
func execError(command string, err error) *LaunchError {
	code := ExitNotExecutable
	if errors.Is(err, syscall.ENOENT) {
		code = ExitNotFound
	}
	return &LaunchError{Command: command, Err: err, Code: code}
}

// ExitError is returned by [Sandbox.Run] when the launch did not exit
// zero. The stage has already printed a diagnostic for launcher
// failures, so callers should exit with Code without printing again.
type ExitError struct {
	Code int

	// Signal is set when the process was killed by a signal; Code is
	// then 128 plus the signal number.
	Signal syscall.Signal
}

func (e *ExitError) Error() string {
	if e.Signal != 0 {
		return fmt.Sprintf("command killed by signal %d (%s)", int(e.Signal), e.Signal)
	}
	return fmt.Sprintf("command exited with code %d", e.Code)
}

// ExitCode returns Code.
func (e *ExitError) ExitCode() int { return e.Code }

// IsExitError checks if an error is an ExitError and returns the code.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
