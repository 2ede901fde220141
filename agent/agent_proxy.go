package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meshrun/meshrun/actor"
	"github.com/meshrun/meshrun/chatmodel"
)

const proxyMarkerKey = "__proxy_thread__"

// ProxyThread is the Thread type AgentProxy requires: its ID doubles as
// the actor instance id, so it must satisfy the same validation an
// actor.Id does. Passing any other Thread to AgentProxy.Run is a type
// error, since a plain Thread's ID carries no such guarantee.
type ProxyThread struct {
	Thread
}

// NewProxyThread returns a ProxyThread with a fresh UUID (hyphens
// included, which satisfies the actor instance id pattern) when id is
// empty, or the given id after validating it.
func NewProxyThread(id string) (*ProxyThread, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if _, err := actor.NewId("proxy", id); err != nil {
		return nil, fmt.Errorf("agent: invalid proxy thread id: %w", err)
	}
	t := &ProxyThread{Thread{ID: id, Extra: make(map[string]any)}}
	t.Extra[proxyMarkerKey] = true
	return t, nil
}

// AsThread returns the embedded Thread, so a ProxyThread can be passed
// anywhere a *Thread is expected, e.g. to AgentProxy.Run.
func (p *ProxyThread) AsThread() *Thread { return &p.Thread }

// AgentProxy presents the same Run/RunStream surface as a local Agent but
// dispatches every call through an actor.Runtime, addressing
// actor.Id{Type: AgentName, Instance: thread.ID}. It satisfies the Agent
// interface so it can be used anywhere a local agent.Agent is expected.
type AgentProxy struct {
	Runtime   *actor.Runtime
	AgentName string
}

// NewAgentProxy builds a proxy for the agent registered under agentName.
func NewAgentProxy(runtime *actor.Runtime, agentName string) *AgentProxy {
	return &AgentProxy{Runtime: runtime, AgentName: agentName}
}

func (p *AgentProxy) targetID(thread *Thread) (actor.Id, error) {
	if thread == nil || thread.Extra[proxyMarkerKey] != true {
		return actor.Id{}, fmt.Errorf("agent: proxy requires a *ProxyThread built by NewProxyThread, got a plain Thread")
	}
	return actor.NewId(p.AgentName, thread.ID)
}

// Run sends a "run" request to the remote agent actor and waits for its
// result. thread must be backed by a ProxyThread (see NewProxyThread);
// any other Thread is rejected as a type error.
func (p *AgentProxy) Run(ctx context.Context, messages []chatmodel.Message, thread *Thread) (RunResponse, error) {
	id, err := p.targetID(thread)
	if err != nil {
		return RunResponse{}, err
	}
	params := RunParams{Messages: messages, ConversationID: thread.ID}

	handle, err := p.Runtime.SendRequest(ctx, id, actor.NewRequest(MethodRun, params))
	if err != nil {
		return RunResponse{}, err
	}
	resp, err := handle.GetResponse(ctx)
	if err != nil {
		return RunResponse{}, err
	}
	return decodeRunResponse(resp)
}

// RunStream mirrors Run but iterates WatchUpdates instead of blocking for
// the final result, satisfying the Streamer interface.
func (p *AgentProxy) RunStream(ctx context.Context, messages []chatmodel.Message, thread *Thread) (<-chan RunUpdate, error) {
	id, err := p.targetID(thread)
	if err != nil {
		return nil, err
	}
	params := RunParams{Messages: messages, ConversationID: thread.ID}

	handle, err := p.Runtime.SendRequest(ctx, id, actor.NewRequest(MethodRunStream, params))
	if err != nil {
		return nil, err
	}

	out := make(chan RunUpdate, 16)
	go func() {
		defer close(out)
		for progress := range handle.WatchUpdates(ctx) {
			if payload, ok := progress.Data.(actor.ProgressUpdate); ok {
				if update, ok := payload.Data.(RunUpdate); ok {
					out <- update
				}
			}
		}
		resp, err := handle.GetResponse(ctx)
		if err != nil {
			return
		}
		final, err := decodeRunResponse(resp)
		if err != nil {
			return
		}
		out <- RunUpdate{Thread: final.Thread, Done: true}
	}()
	return out, nil
}

func decodeRunResponse(resp actor.Response) (RunResponse, error) {
	switch resp.Status {
	case actor.StatusCompleted:
		rr, ok := resp.Data.(RunResponse)
		if !ok {
			return RunResponse{}, fmt.Errorf("agent: proxy received unexpected response payload %T", resp.Data)
		}
		return rr, nil
	case actor.StatusFailed:
		if env, ok := resp.Data.(ErrorEnvelope); ok {
			return RunResponse{}, env
		}
		return RunResponse{}, fmt.Errorf("agent: remote agent failed: %s", resp.Err)
	default:
		return RunResponse{}, fmt.Errorf("agent: protocol violation, status %s after GetResponse", resp.Status)
	}
}
