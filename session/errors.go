package session

import "github.com/pkg/errors"

// The error kinds surfaced by the runtime. Test with errors.Is.
var (
	// ErrConfiguration marks schema mismatches discovered at session-setup
	// time (output-count mismatch, missing output shape, unknown value
	// names). Fatal, never retried: it is surfaced before any data flows.
	ErrConfiguration = errors.New("configuration error")

	// ErrExecution marks a failed invocation: a kernel failed, an
	// allocation failed, or a deferred output was left unresolved. Fatal to
	// that invocation; no partial output is exposed.
	ErrExecution = errors.New("execution error")

	// ErrCancelled is returned when an execution stops because its
	// cancellation latch triggered. Cancellation is not a failure; it is
	// reported distinctly from ErrExecution.
	ErrCancelled = errors.New("execution cancelled")
)
