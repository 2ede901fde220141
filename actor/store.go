package actor

import "context"

// StateStore persists per-actor state. Implementations must serialize
// writes and deletes for a given actorID; the actor runtime relies on this
// to let a handler call WriteState after every mutation without its own
// locking, the same contract workflow/store.Store gives the workflow
// runner for superstep state.
type StateStore interface {
	// ReadState returns the actor's full state map, or an empty map if
	// none has been written yet.
	ReadState(ctx context.Context, actorID string) (map[string]any, error)

	// WriteState overwrites the actor's full state map atomically.
	WriteState(ctx context.Context, actorID string, state map[string]any) error

	// DeleteState removes all persisted state for actorID.
	DeleteState(ctx context.Context, actorID string) error
}
