// SPDX-License-Identifier: MPL-2.0

package checker

import (
	"fmt"
)

const (
	// VerdictClean means the checker ran and found nothing.
	VerdictClean Verdict = iota
	// VerdictFlagged means the checker reported comments.
	VerdictFlagged
	// VerdictIndeterminate means no check was performed.
	VerdictIndeterminate
)

const (
	// KindNotFound means no checker path was available.
	KindNotFound ErrorKind = "not-found"
	// KindStaleReference means the path no longer names a regular file.
	KindStaleReference ErrorKind = "stale-reference"
	// KindSpawn means the process could not be started.
	KindSpawn ErrorKind = "spawn-failure"
	// KindProtocol means the process exited with a status outside the protocol.
	KindProtocol ErrorKind = "protocol-violation"
	// KindTimeout means the process outlived the configured timeout.
	KindTimeout ErrorKind = "timeout"
	// KindCanceled means the caller's context ended before the process did.
	KindCanceled ErrorKind = "canceled"
)

const (
	exitClean   = 0
	exitFlagged = 2
)

type (
	// Verdict is the interpreted outcome of one invocation.
	Verdict int

	// ErrorKind classifies why an invocation was indeterminate.
	ErrorKind string

	// InvocationError describes an indeterminate invocation. It never
	// escapes Run; it is surfaced through diagnostics and tests.
	InvocationError struct {
		Kind     ErrorKind
		Path     string
		ExitCode int
		Err      error
	}

	// CheckResult is the only outcome callers see. Flagged is false for both
	// a clean check and a check that could not be performed.
	CheckResult struct {
		Flagged bool
		Message string
	}
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictClean:
		return "clean"
	case VerdictFlagged:
		return "flagged"
	case VerdictIndeterminate:
		return "indeterminate"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("checker %s", e.Kind)
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Kind == KindProtocol {
		msg += fmt.Sprintf(": exit code %d", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *InvocationError) Unwrap() error { return e.Err }

// verdictForExit maps a process exit status onto the checker protocol.
func verdictForExit(code int) Verdict {
	switch code {
	case exitClean:
		return VerdictClean
	case exitFlagged:
		return VerdictFlagged
	default:
		return VerdictIndeterminate
	}
}
