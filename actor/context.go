package actor

import (
	"context"
	"sync"
)

const defaultRetentionCap = 128

// Context is the per-actor handle passed to Actor.Handle. It owns the
// actor's inbox (managed by the runtime, not exposed here), the table of
// in-flight and recently-completed RequestEntry values, and access to
// durable state scoped to this actor.
type Context struct {
	ID    Id
	store StateStore

	mu      sync.Mutex
	entries map[string]*RequestEntry
	lru     *retentionLRU

	stateMu sync.Mutex
	state   map[string]any
	loaded  bool
}

func newContext(id Id, store StateStore, retentionCap int) *Context {
	if retentionCap <= 0 {
		retentionCap = defaultRetentionCap
	}
	return &Context{
		ID:      id,
		store:   store,
		entries: make(map[string]*RequestEntry),
		lru:     newRetentionLRU(retentionCap),
	}
}

func (c *Context) register(entry *RequestEntry) {
	c.mu.Lock()
	c.entries[entry.Request.MessageID] = entry
	c.mu.Unlock()
}

func (c *Context) lookup(messageID string) (*RequestEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[messageID]
	return e, ok
}

// retire marks messageID as completed, enforcing the bounded retention
// window: once more than the cap's worth of completed entries accumulate,
// the oldest are dropped so late readers see NotFound instead of the
// runtime growing its entry table without bound.
func (c *Context) retire(messageID string) {
	c.lru.touch(messageID)
	evicted := c.lru.evictOverflow()
	if len(evicted) == 0 {
		return
	}
	c.mu.Lock()
	for _, id := range evicted {
		delete(c.entries, id)
	}
	c.mu.Unlock()
}

// OnProgressUpdate posts a Pending update for an in-flight request. Called
// by a handler mid-Handle to report streaming progress.
func (c *Context) OnProgressUpdate(messageID string, data any) {
	if e, ok := c.lookup(messageID); ok {
		e.postProgress(data)
	}
}

// ReadState returns this actor's persisted state, loading it from the
// store on first access and caching it for the life of the actor.
func (c *Context) ReadState(ctx context.Context) (map[string]any, error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.loaded {
		return c.state, nil
	}
	state, err := c.store.ReadState(ctx, c.ID.String())
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = make(map[string]any)
	}
	c.state = state
	c.loaded = true
	return c.state, nil
}

// WriteState sets key in this actor's state and persists the whole map,
// per spec.md's requirement that a handler call writeState after every
// mutation so the actor tolerates restart.
func (c *Context) WriteState(ctx context.Context, key string, value any) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if !c.loaded {
		state, err := c.store.ReadState(ctx, c.ID.String())
		if err != nil {
			return err
		}
		if state == nil {
			state = make(map[string]any)
		}
		c.state = state
		c.loaded = true
	}
	c.state[key] = value
	return c.store.WriteState(ctx, c.ID.String(), c.state)
}

// DeleteState clears all persisted state for this actor.
func (c *Context) DeleteState(ctx context.Context) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = make(map[string]any)
	c.loaded = true
	return c.store.DeleteState(ctx, c.ID.String())
}
