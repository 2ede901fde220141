package agent

import (
	"context"
	"fmt"

	"github.com/meshrun/meshrun/actor"
	"github.com/meshrun/meshrun/chatmodel"
)

// threadStateKey is the fixed key an AgentActor persists its Thread under,
// per spec.md's "agent_thread" layout: implementations must treat unknown
// keys as opaque, so this is the one key every AgentActor-backed actor
// agrees on.
const threadStateKey = "agent_thread"

// MethodRun and MethodRunStream are the two ActorRequest methods an
// AgentActor understands.
const (
	MethodRun       = "run"
	MethodRunStream = "run_stream"
)

// RunParams is the payload carried by a "run"/"run_stream" ActorRequest.
type RunParams struct {
	Messages       []chatmodel.Message
	ConversationID string
}

// ErrorEnvelope is the Data carried by a Failed ActorResponse produced by
// an AgentActor.
type ErrorEnvelope struct {
	Message string
	Kind    string
}

func (e ErrorEnvelope) Error() string { return e.Message }

// threadSnapshot is the JSON-friendly shape a Thread is persisted as,
// since the state store only knows how to round-trip plain maps/slices.
type threadSnapshot struct {
	ID       string
	Messages []chatmodel.Message
}

// AgentActor wraps an arbitrary Agent with actor semantics: on a "run"
// request it restores the addressed conversation's Thread from actor
// state, invokes the Agent, persists the updated Thread, and completes
// the request with the resulting RunResponse. A "run_stream" request
// instead forwards each Streamer update as a progress update before
// completing with the final RunResponse.
type AgentActor struct {
	Agent Agent
}

// NewAgentActor wraps agent as an actor.Actor.
func NewAgentActor(agent Agent) *AgentActor {
	return &AgentActor{Agent: agent}
}

// Factory returns an actor.Factory that builds an AgentActor around agent
// for every instance id addressed, so a single AgentActor type can be
// registered once per agent name.
func Factory(agent Agent) actor.Factory {
	return func(actor.Id) actor.Actor { return NewAgentActor(agent) }
}

func (a *AgentActor) Handle(ctx context.Context, actx *actor.Context, req actor.Request) (any, error) {
	params, ok := req.Params.(RunParams)
	if !ok {
		return nil, fmt.Errorf("agent: unexpected params type %T for method %q", req.Params, req.Method)
	}

	thread, err := a.restoreThread(ctx, actx, params.ConversationID)
	if err != nil {
		return nil, err
	}

	switch req.Method {
	case MethodRun:
		return a.run(ctx, actx, params, thread)
	case MethodRunStream:
		return a.runStream(ctx, actx, req.MessageID, params, thread)
	default:
		return nil, fmt.Errorf("agent: unknown method %q", req.Method)
	}
}

func (a *AgentActor) restoreThread(ctx context.Context, actx *actor.Context, conversationID string) (*Thread, error) {
	state, err := actx.ReadState(ctx)
	if err != nil {
		return nil, err
	}
	raw, ok := state[threadStateKey]
	if !ok {
		return NewThread(conversationID), nil
	}
	snap, ok := raw.(threadSnapshot)
	if !ok {
		return NewThread(conversationID), nil
	}
	return &Thread{ID: snap.ID, Messages: snap.Messages, Extra: make(map[string]any)}, nil
}

func (a *AgentActor) persistThread(ctx context.Context, actx *actor.Context, thread *Thread) error {
	return actx.WriteState(ctx, threadStateKey, threadSnapshot{ID: thread.ID, Messages: thread.Messages})
}

func (a *AgentActor) run(ctx context.Context, actx *actor.Context, params RunParams, thread *Thread) (any, error) {
	resp, err := a.Agent.Run(ctx, params.Messages, thread)
	if err != nil {
		return nil, ErrorEnvelope{Message: err.Error(), Kind: "agent_error"}
	}
	if err := a.persistThread(ctx, actx, resp.Thread); err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *AgentActor) runStream(ctx context.Context, actx *actor.Context, messageID string, params RunParams, thread *Thread) (any, error) {
	streamer, ok := a.Agent.(Streamer)
	if !ok {
		return nil, fmt.Errorf("agent: does not support streaming")
	}
	updates, err := streamer.RunStream(ctx, params.Messages, thread)
	if err != nil {
		return nil, ErrorEnvelope{Message: err.Error(), Kind: "agent_error"}
	}

	var final *Thread
	for update := range updates {
		if update.Done {
			final = update.Thread
			continue
		}
		actx.OnProgressUpdate(messageID, update)
	}
	if final == nil {
		final = thread
	}
	if err := a.persistThread(ctx, actx, final); err != nil {
		return nil, err
	}
	return RunResponse{Thread: final}, nil
}
