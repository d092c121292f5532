// Package ggnetrr defines the control plane's error taxonomy.
//
// Components raise the most specific Kind available; the orchestrator
// inspects Kind via errors.As to decide whether to roll back a partially
// completed operation, and the API layer maps Kind to an HTTP status class.
// This mirrors the teacher's sentinel-error convention in pkg/models
// (errors.New + errors.Is), extended with a Kind enum because this domain's
// callers need a machine-checkable classification, not just more sentinels.
package ggnetrr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for caller-visible status mapping.
type Kind string

const (
	// Validation indicates bad input or a disallowed state transition.
	// Not retryable; surfaced as a 400-class response.
	Validation Kind = "validation"

	// Conflict indicates a uniqueness violation (an existing live Session
	// or Target for the machine). Not retryable; surfaced as a 409.
	Conflict Kind = "conflict"

	// NotFound indicates a referenced row is absent. 404-class.
	NotFound Kind = "not_found"

	// ExternalToolFailure indicates a non-zero exit from the iSCSI target
	// CLI, the DHCP validator/reload, or the image conversion tool.
	// Triggers component-local rollback in the orchestrator; 500-class.
	ExternalToolFailure Kind = "external_tool_failure"

	// Timeout indicates a subprocess exceeded its deadline. The orchestrator
	// rolls back on it like any other start failure; surfaced as a 504. No
	// watchdog work is queued for it.
	Timeout Kind = "timeout"

	// Internal indicates a programmer error or invariant breach. Logged
	// with a stack trace by the caller; surfaced as an opaque 500.
	Internal Kind = "internal"
)

// Error wraps an underlying error with a Kind for classification.
type Error struct {
	Kind    Kind
	Op      string // the operation that failed, e.g. "iscsi.create_target"
	Err     error
	Stderr  string // captured subprocess stderr, if any
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s: %v (stderr: %s)", e.Op, e.Kind, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with the given Kind and operation name. Returns nil if err
// is nil, so it composes with `return ggnetrr.New(...)` idioms.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithStderr attaches captured subprocess stderr to a Kind-wrapped error.
func WithStderr(kind Kind, op string, err error, stderr string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err, Stderr: stderr}
}

// KindOf extracts the Kind from err, defaulting to Internal if err was not
// produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
