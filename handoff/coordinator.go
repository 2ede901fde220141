package handoff

import (
	"context"
	"fmt"

	"github.com/meshrun/meshrun/agent"
	"github.com/meshrun/meshrun/chatmodel"
	"github.com/meshrun/meshrun/workflow"
)

// InteractionMode selects how the coordinator proceeds once a participant
// replies without producing a handoff.
type InteractionMode int

const (
	// HumanInLoop pauses for a fresh user turn after every non-handoff
	// reply (the default).
	HumanInLoop InteractionMode = iota
	// Autonomous, with ReturnToPreviousEnabled set, re-invokes the agent
	// that just replied without user input until TerminationCondition
	// fires or AutonomousTurnLimit is reached. Without
	// ReturnToPreviousEnabled, control returns to CoordinatorID and the run
	// pauses for a user turn, as in HumanInLoop.
	Autonomous
)

// TerminationCondition reports whether the conversation should end. It may
// inspect the full accumulated conversation.
type TerminationCondition func(conversation []chatmodel.Message) bool

// Config configures a Coordinator. CoordinatorID must be a key in
// Participants; AllowedHandoffs maps a source participant id to the set of
// ids it may hand off to.
type Config struct {
	CoordinatorID           string
	Participants            Participants
	AllowedHandoffs         map[string][]string
	Mode                    InteractionMode
	ReturnToPreviousEnabled bool
	AutonomousTurnLimit     int
	TerminationCondition    TerminationCondition
}

// maxChainedDispatches bounds how many handoffs/autonomous re-invocations
// a single incoming turn may trigger before the coordinator gives up and
// surfaces an error, guarding against a handoff cycle no allowedHandoffs
// graph or termination condition catches (mirrors workflow's own
// max-supersteps guard against runaway dataflow).
const maxChainedDispatches = 64

// AwaitingTurn is the payload carried by the RequestInfoEvent emitted when
// the coordinator pauses for a fresh user turn in human-in-loop mode.
type AwaitingTurn struct {
	AwaitingAgentID string
	Conversation    []chatmodel.Message
}

// conversationState is the coordinator's checkpointed state, stored under
// a dedicated SharedState key.
type conversationState struct {
	CurrentAgentID    string
	PreviousAgentID   string
	TurnsInAutonomous int
	Conversation      []chatmodel.Message
	Failed            bool
}

const stateKey = "handoff_state"

// Coordinator orchestrates a conversation across a coordinator agent and a
// set of specialists, built as a workflow.Workflow with a single
// self-looping executor implementing the state machine described in
// spec.md.
type Coordinator struct {
	cfg      Config
	allowed  map[string]map[string]bool
	resolver *resolver
	wf       *workflow.Workflow
}

// New validates cfg and builds the underlying workflow.
func New(cfg Config) (*Coordinator, error) {
	if err := cfg.Participants.validate(); err != nil {
		return nil, err
	}
	if cfg.CoordinatorID == "" {
		return nil, fmt.Errorf("handoff: CoordinatorID is required")
	}
	ids := make(map[string]bool)
	for _, id := range cfg.Participants.ids() {
		ids[id] = true
	}
	if !ids[cfg.CoordinatorID] {
		return nil, fmt.Errorf("handoff: coordinator id %q is not among the participants", cfg.CoordinatorID)
	}
	if cfg.Mode == Autonomous && cfg.AutonomousTurnLimit <= 0 {
		return nil, fmt.Errorf("handoff: AutonomousTurnLimit must be > 0 in autonomous mode")
	}

	allowed := make(map[string]map[string]bool, len(cfg.AllowedHandoffs))
	for src, targets := range cfg.AllowedHandoffs {
		if !ids[src] {
			return nil, fmt.Errorf("handoff: handoff source %q is not among the participants", src)
		}
		set := make(map[string]bool, len(targets))
		for _, t := range targets {
			if !ids[t] {
				return nil, fmt.Errorf("handoff: handoff target %q is not among the participants", t)
			}
			set[t] = true
		}
		allowed[src] = set
	}

	c := &Coordinator{cfg: cfg, allowed: allowed, resolver: newResolver(cfg.Participants)}

	ex := &coordinatorExecutor{c: c}
	wf, err := workflow.NewBuilder().
		AddExecutor(ex).
		StartAt(ex.ID()).
		Build()
	if err != nil {
		return nil, err
	}
	c.wf = wf
	return c, nil
}

// Workflow returns the underlying workflow.Workflow, for callers that want
// to drive it directly with workflow.NewRunner.
func (c *Coordinator) Workflow() *workflow.Workflow { return c.wf }

// coordinatorExecutor is the sole node in the coordinator's workflow: it
// receives either a fresh user chatmodel.Message (first turn) or a
// resumed one (after a human-in-loop pause) and runs the state machine
// until it either pauses again, terminates, or fails.
type coordinatorExecutor struct {
	c *Coordinator
}

func (e *coordinatorExecutor) ID() string { return "coordinator" }

func (e *coordinatorExecutor) Handlers() []workflow.Handler {
	return []workflow.Handler{
		workflow.NewHandler(func(ctx *workflow.Context, msg chatmodel.Message) error {
			return e.c.advance(ctx, msg)
		}),
	}
}

func (e *coordinatorExecutor) ResponseHandlers() []workflow.ResponseHandler {
	return []workflow.ResponseHandler{
		workflow.NewResponseHandler(func(ctx *workflow.Context, _ AwaitingTurn, response chatmodel.Message) error {
			return e.c.advance(ctx, response)
		}),
	}
}

func (c *Coordinator) loadState(ctx *workflow.Context) conversationState {
	raw, ok := ctx.State.Get(stateKey)
	if !ok {
		return conversationState{CurrentAgentID: c.cfg.CoordinatorID}
	}
	st, ok := raw.(conversationState)
	if !ok {
		return conversationState{CurrentAgentID: c.cfg.CoordinatorID}
	}
	return st
}

func (c *Coordinator) saveState(ctx *workflow.Context, st conversationState) {
	ctx.State.Set(stateKey, st)
}

// advance runs the state machine starting from a newly arrived turn
// (either the first user message, or a response to a prior
// RequestInfoEvent), chaining handoffs and autonomous re-invocations until
// it pauses, terminates, or fails.
func (c *Coordinator) advance(ctx *workflow.Context, turn chatmodel.Message) error {
	st := c.loadState(ctx)
	if turn.Role != "" {
		st.Conversation = append(st.Conversation, turn)
	}

	for i := 0; i < maxChainedDispatches; i++ {
		participant, err := c.resolver.get(st.CurrentAgentID)
		if err != nil {
			st.Failed = true
			c.saveState(ctx, st)
			ctx.Yield(workflow.ErrorEvent{ExecutorID: ctx.ExecutorID, Kind: workflow.ErrorKindConfig, Err: err})
			return nil
		}

		resp, err := participant.Run(context.Background(), conversationTail(st), agent.NewThread(st.CurrentAgentID))
		if err != nil {
			st.Failed = true
			c.saveState(ctx, st)
			ctx.Yield(workflow.ErrorEvent{ExecutorID: ctx.ExecutorID, Kind: workflow.ErrorKindHandler, Err: err})
			return nil
		}
		st.Conversation = append(st.Conversation, resp.Messages...)

		var reply chatmodel.Message
		if len(resp.Messages) > 0 {
			reply = resp.Messages[len(resp.Messages)-1]
		}

		if target, ok := DetectHandoff(reply, c.allowed[st.CurrentAgentID]); ok {
			st.PreviousAgentID = st.CurrentAgentID
			st.CurrentAgentID = target
			continue
		}

		if c.cfg.TerminationCondition != nil && c.cfg.TerminationCondition(st.Conversation) {
			c.saveState(ctx, st)
			return nil
		}

		if c.cfg.ReturnToPreviousEnabled {
			if c.cfg.Mode == Autonomous {
				st.TurnsInAutonomous++
				if st.TurnsInAutonomous >= c.cfg.AutonomousTurnLimit {
					c.saveState(ctx, st)
					return nil
				}
				continue
			}
			c.saveState(ctx, st)
			ctx.RequestInfo(AwaitingTurn{AwaitingAgentID: st.CurrentAgentID, Conversation: st.Conversation})
			return nil
		}

		if st.CurrentAgentID != c.cfg.CoordinatorID {
			st.PreviousAgentID = st.CurrentAgentID
			st.CurrentAgentID = c.cfg.CoordinatorID
		}
		c.saveState(ctx, st)
		ctx.RequestInfo(AwaitingTurn{AwaitingAgentID: st.CurrentAgentID, Conversation: st.Conversation})
		return nil
	}

	st.Failed = true
	c.saveState(ctx, st)
	ctx.Yield(workflow.ErrorEvent{
		ExecutorID: ctx.ExecutorID,
		Kind:       workflow.ErrorKindConfig,
		Err:        fmt.Errorf("handoff: exceeded %d chained dispatches without pausing or terminating", maxChainedDispatches),
	})
	return nil
}

func conversationTail(st conversationState) []chatmodel.Message {
	return st.Conversation
}
