// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError is a user-facing failure: what checkhook was doing, on
	// which path, what to try next, and the catalogue entry explaining it.
	ActionableError struct {
		Operation string
		Resource  string
		Hints     []string
		Cause     error
		IssueID   Id
	}

	// ErrorContext accumulates the parts of an ActionableError.
	//
	//	return issue.NewErrorContext().
	//		WithOperation("install comment checker").
	//		WithResource(cacheDir).
	//		WithIssue(issue.RateLimitedId).
	//		Wrap(err).
	//		BuildError()
	ErrorContext struct {
		err ActionableError
	}
)

func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Error renders "failed to <operation>[: <resource>][: <cause>]".
func (e *ActionableError) Error() string {
	parts := []string{"failed to " + e.Operation}
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format appends the hints, one bullet per line, to Error. Verbose output
// also lists every error in the cause chain.
func (e *ActionableError) Format(verbose bool) string {
	var sb strings.Builder
	sb.WriteString(e.Error())

	if len(e.Hints) > 0 {
		sb.WriteByte('\n')
	}
	for _, h := range e.Hints {
		sb.WriteString("\n  • " + h)
	}

	if verbose && e.Cause != nil {
		sb.WriteString("\n\nError chain:")
		depth := 1
		for err := e.Cause; err != nil; err = errors.Unwrap(err) {
			fmt.Fprintf(&sb, "\n  %d. %s", depth, err.Error())
			depth++
		}
	}
	return sb.String()
}

// Issue returns the linked catalogue entry, or nil when none is linked.
func (e *ActionableError) Issue() *Issue {
	return Get(e.IssueID)
}

// WithOperation names the failed step as a verb phrase, e.g. "load configuration".
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.err.Operation = op
	return c
}

// WithResource names the file or directory involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.err.Resource = res
	return c
}

// WithHint adds one thing the user can try.
func (c *ErrorContext) WithHint(hint string) *ErrorContext {
	c.err.Hints = append(c.err.Hints, hint)
	return c
}

// WithIssue links the catalogue entry rendered below the error.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.err.IssueID = id
	return c
}

func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.err.Cause = err
	return c
}

// BuildError returns the accumulated *ActionableError, or nil when no
// operation was named.
func (c *ErrorContext) BuildError() error {
	if c.err.Operation == "" {
		return nil
	}
	ae := c.err
	ae.Hints = append([]string(nil), c.err.Hints...)
	return &ae
}
