// SPDX-License-Identifier: MPL-2.0

package checker

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"

	"github.com/checkhook/checkhook/internal/diag"
	"github.com/checkhook/checkhook/internal/locate"
)

const (
	// DefaultTimeout bounds a single checker run.
	DefaultTimeout = 30 * time.Second

	// waitDelay caps how long Wait blocks on inherited pipes after the
	// process is killed.
	waitDelay = 2 * time.Second

	payloadPreviewBytes = 200
)

type (
	// Invoker runs the checker binary with the stdin/exit-code protocol.
	Invoker struct {
		timeout time.Duration
		logger  *log.Logger
	}

	// InvokerOption configures an Invoker.
	InvokerOption func(*Invoker)
)

// WithTimeout bounds each run. Zero disables the bound.
func WithTimeout(d time.Duration) InvokerOption {
	return func(i *Invoker) {
		if d >= 0 {
			i.timeout = d
		}
	}
}

// WithInvokerLogger sets the diagnostic logger.
func WithInvokerLogger(l *log.Logger) InvokerOption {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewInvoker creates an Invoker.
func NewInvoker(opts ...InvokerOption) *Invoker {
	i := &Invoker{
		timeout: DefaultTimeout,
		logger:  diag.Discard(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run checks payload with the binary at path. It never fails: anything other
// than a flagged verdict yields a zero CheckResult.
func (i *Invoker) Run(ctx context.Context, path string, payload *HookInput) CheckResult {
	verdict, stderr, err := i.invoke(ctx, path, payload)
	if err != nil {
		var invErr *InvocationError
		if errors.As(err, &invErr) {
			i.logger.Debug("check not performed", "kind", invErr.Kind, "err", err, "stderr", stderr)
		} else {
			i.logger.Debug("check not performed", "err", err)
		}
	}
	if verdict != VerdictFlagged {
		return CheckResult{}
	}
	return CheckResult{Flagged: true, Message: stderr}
}

// invoke performs one run and reports the raw verdict. A non-nil error is
// always an *InvocationError and implies VerdictIndeterminate.
func (i *Invoker) invoke(ctx context.Context, path string, payload *HookInput) (Verdict, string, error) {
	if path == "" {
		return VerdictIndeterminate, "", &InvocationError{Kind: KindNotFound}
	}
	if !locate.Exists(path) {
		return VerdictIndeterminate, "", &InvocationError{Kind: KindStaleReference, Path: path}
	}

	input, err := payload.Encode()
	if err != nil {
		return VerdictIndeterminate, "", &InvocationError{Kind: KindProtocol, Path: path, ExitCode: -1, Err: err}
	}
	i.logger.Debug("running comment-checker", "path", path, "input", preview(input, payloadPreviewBytes))

	runCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, path)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	// Run returns only after stdin is fully written and both outputs are drained.
	runErr := cmd.Run()
	exitCode := cmd.ProcessState.ExitCode() // -1 when the process never started
	i.logger.Debug("comment-checker exited", "exit_code", exitCode,
		"stdout_len", stdout.Len(), "stderr_len", stderr.Len())

	if runErr == nil {
		return VerdictClean, stderr.String(), nil
	}

	if ctxErr := runCtx.Err(); ctxErr != nil {
		kind := KindCanceled
		if errors.Is(ctxErr, context.DeadlineExceeded) && ctx.Err() == nil {
			kind = KindTimeout
		}
		return VerdictIndeterminate, stderr.String(), &InvocationError{Kind: kind, Path: path, ExitCode: exitCode, Err: ctxErr}
	}

	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		return VerdictIndeterminate, stderr.String(), &InvocationError{Kind: KindSpawn, Path: path, ExitCode: -1, Err: runErr}
	}

	verdict := verdictForExit(exitErr.ExitCode())
	if verdict == VerdictIndeterminate {
		return verdict, stderr.String(), &InvocationError{Kind: KindProtocol, Path: path, ExitCode: exitErr.ExitCode(), Err: runErr}
	}
	return verdict, stderr.String(), nil
}
