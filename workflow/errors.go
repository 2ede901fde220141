package workflow

import (
	"errors"
	"fmt"
)

// ErrNoProgress describes a run with no runnable messages and no pending
// requests. Run.Execute does not return it: in that situation the run
// completes and emits a WorkflowOutputEvent holding the SharedState
// snapshot.
var ErrNoProgress = errors.New("workflow: no progress: no runnable messages and no pending requests")

// ErrUnknownRequestID is returned by Run.SendResponses when the supplied
// request id does not match any outstanding RequestInfoEvent.
var ErrUnknownRequestID = errors.New("workflow: unknown request id")

// ErrMaxSuperstepsExceeded is returned when a run exceeds its configured
// superstep budget without completing, guarding against unbounded loops.
var ErrMaxSuperstepsExceeded = errors.New("workflow: exceeded maximum supersteps")

// ErrDuplicateResponseHandler is wrapped in the *ConfigError that
// Builder.Build returns when two
// ResponseHandlers on the same executor declare the same
// (RequestType, ResponseType) pair.
var ErrDuplicateResponseHandler = errors.New("workflow: duplicate response handler for request/response type pair")

// ConfigError reports a problem discovered while validating a Workflow's
// executors and edges, before any Run starts.
type ConfigError struct {
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("workflow: config error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("workflow: config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// HandlerError wraps an error returned by a Handler or ResponseHandler
// with the executor it came from.
type HandlerError struct {
	ExecutorID string
	Message    string
	Cause      error
}

func (e *HandlerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("workflow: executor %q: %s: %v", e.ExecutorID, e.Message, e.Cause)
	}
	return fmt.Sprintf("workflow: executor %q: %s", e.ExecutorID, e.Message)
}

func (e *HandlerError) Unwrap() error { return e.Cause }

// PartitionError reports a PartitioningEdgeGroup index outside the
// configured target range. This is always a fatal configuration bug, not a
// retryable runtime condition.
type PartitionError struct {
	Source     string
	Index      int
	NumTargets int
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("workflow: partition index %d out of range [0,%d) for source %q", e.Index, e.NumTargets, e.Source)
}

// CancelledError wraps context cancellation encountered mid-run.
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string { return fmt.Sprintf("workflow: run cancelled: %v", e.Cause) }
func (e *CancelledError) Unwrap() error { return e.Cause }
