// Package agent defines the Agent contract — a callable conversational
// turn over a Thread — and the two ways it gets actor semantics: wrapped
// locally by AgentActor, or dispatched remotely through AgentProxy.
package agent

import (
	"context"

	"github.com/meshrun/meshrun/chatmodel"
)

// Thread is conversation-scoped state an Agent carries across turns: the
// accumulated message history plus whatever else an implementation stores
// under arbitrary keys (tool scratch state, summaries, ...).
type Thread struct {
	ID       string
	Messages []chatmodel.Message
	Extra    map[string]any
}

// NewThread returns an empty Thread addressed by id.
func NewThread(id string) *Thread {
	return &Thread{ID: id, Extra: make(map[string]any)}
}

// Append adds messages to the thread's history, returning the thread for
// chaining.
func (t *Thread) Append(messages ...chatmodel.Message) *Thread {
	t.Messages = append(t.Messages, messages...)
	return t
}

// RunResponse is what an Agent's Run call produces: the assistant messages
// generated this turn plus the thread they were appended to. Only the new
// messages are carried, not the whole history, so callers can log/stream
// just the turn's delta.
type RunResponse struct {
	Messages []chatmodel.Message
	Thread   *Thread
}

// RunUpdate is one increment of a streaming Run: either partial content
// for the turn in progress, or nil Content with Done set once Thread
// reflects the finished turn.
type RunUpdate struct {
	Content chatmodel.Content
	Thread  *Thread
	Done    bool
}

// Agent is the minimal conversational contract: accept new messages plus
// the thread they continue, produce a response. RunStream is optional;
// implementations that can't stream simply don't implement Streamer.
type Agent interface {
	Run(ctx context.Context, messages []chatmodel.Message, thread *Thread) (RunResponse, error)
}

// Streamer is implemented by agents that can emit incremental updates
// instead of only a final RunResponse.
type Streamer interface {
	RunStream(ctx context.Context, messages []chatmodel.Message, thread *Thread) (<-chan RunUpdate, error)
}
