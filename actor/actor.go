package actor

import "context"

// Actor is a long-lived, addressable unit of behavior. The runtime creates
// one per Id on first request and calls Handle for every message received
// for that id, one at a time — no two Handle calls for the same actor ever
// run concurrently.
type Actor interface {
	Handle(ctx context.Context, actx *Context, req Request) (any, error)
}

// Disposer is implemented by actors that hold resources needing an
// explicit teardown (open files, subprocess handles, network clients).
// Runtime.Stop calls Dispose once an actor's task has drained, whether it
// exists normally or is force-stopped.
type Disposer interface {
	Dispose(ctx context.Context, actx *Context)
}

// Factory creates the Actor instance backing a freshly addressed Id. The
// Runtime calls it at most once per Id for its lifetime.
type Factory func(id Id) Actor
