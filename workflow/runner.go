package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/meshrun/meshrun/telemetry"
)

// Runner executes a Workflow as a bounded pipeline of supersteps: within one
// superstep, every message queued before it began is routed to matching
// edge groups and handled sequentially; the next superstep begins once the
// current one drains. This generalizes the teacher's Engine[S]
// (graph/engine.go) from a single generic state type and concurrent node
// execution to this module's any-typed Message/SharedState model, run
// single-threaded per Run (spec.md: "Single-threaded cooperative per run";
// cross-run parallelism is left to the caller).
type Runner struct {
	wf  *Workflow
	cfg *runnerConfig
}

// NewRunner validates opts and returns a Runner for wf.
func NewRunner(wf *Workflow, opts ...Option) (*Runner, error) {
	cfg := defaultRunnerConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return &Runner{wf: wf, cfg: cfg}, nil
}

// Run is one in-progress or paused execution of a Workflow.
type Run struct {
	runID     string
	wf        *Workflow
	cfg       *runnerConfig
	state     *SharedState
	superstep int
	frontier  *frontier
	requests  *requestTable
	events    []Event
	output    any
	done      bool
	err       error

	// resolvedPrompts holds the original RequestInfo payload for an
	// executor whose outstanding request SendResponses just resolved, so
	// the next stepSuperstep can route the incoming response through that
	// executor's ResponseHandler instead of a fresh Handler. Consumed (and
	// deleted) the moment the response message is processed.
	resolvedPrompts map[string]any
}

// NewRun starts a fresh Run, seeding the frontier with input delivered to
// the workflow's start executor.
func (r *Runner) NewRun(ctx context.Context, runID string, input any) (*Run, error) {
	run := &Run{
		runID:           runID,
		wf:              r.wf,
		cfg:             r.cfg,
		state:           NewSharedState(),
		frontier:        newFrontier(r.cfg.queueDepth),
		requests:        newRequestTable(),
		resolvedPrompts: make(map[string]any),
	}
	target := r.wf.startID
	err := run.frontier.Enqueue(ctx, workItem{
		Superstep: 0,
		OrderKey:  computeOrderKey("__start__", 0),
		TargetID:  target,
		Message:   Message{Data: input, TargetID: &target},
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// checkpointSnapshot is the subset of store.Checkpoint a Run needs to
// reconstruct itself; kept as a local type so this file doesn't need to
// import workflow/store just to resume.
type checkpointSnapshot struct {
	RunID           string
	Superstep       int
	SharedState     map[string]any
	Frontier        []byte
	PendingRequests []byte
}

// ResumeRun reconstructs a Run from a persisted checkpoint.
func (r *Runner) ResumeRun(ctx context.Context, ck checkpointSnapshot) (*Run, error) {
	items, err := decodeFrontier(ck.Frontier)
	if err != nil {
		return nil, fmt.Errorf("workflow: decode frontier: %w", err)
	}
	pending, err := decodePendingRequests(ck.PendingRequests)
	if err != nil {
		return nil, fmt.Errorf("workflow: decode pending requests: %w", err)
	}
	run := &Run{
		runID:           ck.RunID,
		wf:              r.wf,
		cfg:             r.cfg,
		state:           NewSharedState(),
		superstep:       ck.Superstep,
		frontier:        newFrontier(r.cfg.queueDepth),
		requests:        newRequestTable(),
		resolvedPrompts: make(map[string]any),
	}
	run.state.Restore(ck.SharedState)
	run.requests.Restore(pending)
	for _, item := range items {
		if err := run.frontier.Enqueue(ctx, item); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// Events returns every Event produced since the run started.
func (run *Run) Events() []Event { return run.events }

// Output returns the run's final output and whether it has terminated.
func (run *Run) Output() (any, bool) { return run.output, run.done }

// Err returns the error the run aborted with, if any.
func (run *Run) Err() error { return run.err }

// Execute advances the run until it terminates, pauses on a
// RequestInfoEvent, or ctx is cancelled, returning the events produced
// since the previous call.
func (run *Run) Execute(ctx context.Context) ([]Event, error) {
	start := len(run.events)
	for {
		if ctx.Err() != nil {
			run.emitEvent(ErrorEvent{RunID: run.runID, Superstep: run.superstep, Kind: ErrorKindCancelled, Err: ctx.Err()})
			run.err = &CancelledError{Cause: ctx.Err()}
			return run.events[start:], run.err
		}

		paused, err := run.stepSuperstep(ctx)
		if err != nil {
			return run.events[start:], err
		}
		if run.done || paused {
			return run.events[start:], nil
		}
		if run.cfg.maxSupersteps > 0 && run.superstep >= run.cfg.maxSupersteps {
			run.err = ErrMaxSuperstepsExceeded
			run.emitEvent(ErrorEvent{RunID: run.runID, Superstep: run.superstep, Kind: ErrorKindConfig, Err: run.err})
			return run.events[start:], run.err
		}
	}
}

// produced is one executor's output data for a single superstep, paired
// with the executor that emitted it, used to feed edge-group routing after
// every handler in the superstep has run.
type produced struct {
	executorID string
	data       any
}

// stepSuperstep drains the current frontier, dispatches every item to its
// target (a fresh handler invocation, or a response to a pending
// RequestInfo), collects emitted output, routes it through the workflow's
// edge groups into the next superstep's frontier, and checkpoints if
// configured.
func (run *Run) stepSuperstep(ctx context.Context) (paused bool, err error) {
	items := run.frontier.DrainSuperstep()
	if len(items) == 0 {
		if run.requests.Len() > 0 {
			return true, nil
		}
		run.output = run.state.Snapshot()
		run.done = true
		run.emitEvent(WorkflowOutputEvent{RunID: run.runID, Output: run.output})
		return false, nil
	}

	var producedList []produced
	var directMessages []Message

	for _, item := range items {
		if prompt, ok := run.resolvedPrompts[item.TargetID]; ok {
			delete(run.resolvedPrompts, item.TargetID)
			rh, ok := run.wf.lookupResponseHandler(item.TargetID, prompt, item.Message.Data)
			if !ok {
				ev := ErrorEvent{RunID: run.runID, Superstep: run.superstep, ExecutorID: item.TargetID, Kind: ErrorKindNoResponseHandler, Err: fmt.Errorf("workflow: no response handler on %q", item.TargetID)}
				run.emitEvent(ev)
				if run.shouldAbort(item.TargetID, ev.Err) {
					run.err = ev.Err
					return false, run.err
				}
				continue
			}
			emitted, pauseID, handlerErr := run.invokeResponseHandler(item.TargetID, rh, prompt, item.Message.Data)
			if handlerErr != nil {
				ev := ErrorEvent{RunID: run.runID, Superstep: run.superstep, ExecutorID: item.TargetID, Kind: ErrorKindHandler, Err: handlerErr}
				run.emitEvent(ev)
				if run.shouldAbort(item.TargetID, handlerErr) {
					run.err = handlerErr
					return false, run.err
				}
				continue
			}
			if pauseID != "" {
				paused = true
				continue
			}
			for _, m := range emitted {
				if m.TargetID != nil {
					directMessages = append(directMessages, m)
				} else {
					producedList = append(producedList, produced{executorID: item.TargetID, data: m.Data})
				}
			}
			continue
		}

		handler, ok := run.wf.lookupHandler(item.TargetID, item.Message.Data)
		if !ok {
			ev := ErrorEvent{RunID: run.runID, Superstep: run.superstep, ExecutorID: item.TargetID, Kind: ErrorKindNoHandler, Err: fmt.Errorf("workflow: no handler on %q for %T", item.TargetID, item.Message.Data)}
			run.emitEvent(ev)
			continue
		}

		run.emitEvent(ExecutorInvoked{RunID: run.runID, Superstep: run.superstep, ExecutorID: item.TargetID, Input: item.Message.Data})

		emitted, pauseID, handlerErr := run.invokeHandler(item.TargetID, handler, item.Message.Data)
		if handlerErr != nil {
			ev := ErrorEvent{RunID: run.runID, Superstep: run.superstep, ExecutorID: item.TargetID, Kind: ErrorKindHandler, Err: handlerErr}
			run.emitEvent(ev)
			if run.shouldAbort(item.TargetID, handlerErr) {
				run.err = handlerErr
				return false, run.err
			}
			continue
		}
		if pauseID != "" {
			paused = true
			continue
		}

		run.emitEvent(ExecutorCompleted{RunID: run.runID, Superstep: run.superstep, ExecutorID: item.TargetID, Output: emitted})
		for _, m := range emitted {
			if m.TargetID != nil {
				directMessages = append(directMessages, m)
			} else {
				producedList = append(producedList, produced{executorID: item.TargetID, data: m.Data})
			}
		}
	}

	nextMessages := append([]Message{}, directMessages...)
	nextMessages = append(nextMessages, run.routeProduced(producedList)...)

	for i, msg := range nextMessages {
		if msg.TargetID == nil {
			continue
		}
		if err := run.frontier.Enqueue(ctx, workItem{
			Superstep: run.superstep + 1,
			OrderKey:  computeOrderKey(msg.SourceID, i),
			TargetID:  *msg.TargetID,
			Message:   msg,
		}); err != nil {
			return false, err
		}
	}

	run.superstep++

	if run.cfg.store != nil && run.superstep%run.cfg.checkpointEvery == 0 {
		if err := run.checkpoint(ctx, ""); err != nil {
			return false, err
		}
	}

	return paused, nil
}

// routeProduced runs every EdgeGroup against this superstep's executor
// outputs. FanInEdgeGroups accumulate every matching source's output from
// the whole superstep before calling Aggregate once; the other four
// EdgeGroup shapes route per-output via Route.
func (run *Run) routeProduced(producedList []produced) []Message {
	var out []Message
	fanInSources := make(map[int]map[string]any)

	for _, p := range producedList {
		for gi, g := range run.wf.edgeGroups {
			if fanIn, ok := g.(FanInEdgeGroup); ok {
				if !containsString(fanIn.Sources, p.executorID) {
					continue
				}
				if fanInSources[gi] == nil {
					fanInSources[gi] = make(map[string]any)
				}
				fanInSources[gi][p.executorID] = p.data
				continue
			}
			out = append(out, g.Route(p.executorID, p.data)...)
		}
	}

	for gi, bySource := range fanInSources {
		fanIn := run.wf.edgeGroups[gi].(FanInEdgeGroup)
		if msg, ready := fanIn.Aggregate(bySource); ready {
			out = append(out, msg)
		}
	}
	return out
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// invokeHandler dispatches data to handler.Fn, applying the executor's
// configured RetryPolicy (if any) with exponential backoff between
// attempts, and returns any messages the handler emitted via
// Context.SendMessage, or a non-empty pauseID if it called
// Context.RequestInfo instead.
func (run *Run) invokeHandler(executorID string, handler Handler, data any) (emitted []Message, pauseID string, err error) {
	invoke := func() ([]Message, string, error) {
		var emitted []Message
		var yielded []Event
		var requestID string
		var requestPayload any

		c := &Context{
			RunID:      run.runID,
			Superstep:  run.superstep,
			ExecutorID: executorID,
			State:      run.state,
			emit:       func(msg Message) { emitted = append(emitted, msg) },
			request: func(req any) string {
				id := fmt.Sprintf("%s-%d-%d", executorID, run.superstep, run.requests.Len())
				run.requests.Add(id, executorID, req)
				requestID = id
				requestPayload = req
				return id
			},
			events: func(ev Event) { yielded = append(yielded, ev) },
		}

		callErr := handler.Fn(c, data)
		for _, ev := range yielded {
			run.emitEvent(ev)
		}
		if callErr != nil {
			return nil, "", callErr
		}
		if requestID != "" {
			run.emitEvent(RequestInfoEvent{RunID: run.runID, RequestID: requestID, ExecutorID: executorID, Request: requestPayload})
			return nil, requestID, nil
		}
		return emitted, "", nil
	}

	return run.withRetry(executorID, invoke)
}

// invokeResponseHandler mirrors invokeHandler for the Request/Response
// Mixin's resolution path.
func (run *Run) invokeResponseHandler(executorID string, rh ResponseHandler, original, response any) (emitted []Message, pauseID string, err error) {
	invoke := func() ([]Message, string, error) {
		var emitted []Message
		var yielded []Event
		var requestID string
		var requestPayload any

		c := &Context{
			RunID:      run.runID,
			Superstep:  run.superstep,
			ExecutorID: executorID,
			State:      run.state,
			emit:       func(msg Message) { emitted = append(emitted, msg) },
			request: func(req any) string {
				id := fmt.Sprintf("%s-%d-%d", executorID, run.superstep, run.requests.Len())
				run.requests.Add(id, executorID, req)
				requestID = id
				requestPayload = req
				return id
			},
			events: func(ev Event) { yielded = append(yielded, ev) },
		}

		callErr := rh.Fn(c, original, response)
		for _, ev := range yielded {
			run.emitEvent(ev)
		}
		if callErr != nil {
			return nil, "", callErr
		}
		if requestID != "" {
			run.emitEvent(RequestInfoEvent{RunID: run.runID, RequestID: requestID, ExecutorID: executorID, Request: requestPayload})
			return nil, requestID, nil
		}
		return emitted, "", nil
	}

	return run.withRetry(executorID, invoke)
}

func (run *Run) withRetry(executorID string, invoke func() ([]Message, string, error)) ([]Message, string, error) {
	policy := run.cfg.executorPolicies[executorID]
	attempts := 1
	if policy != nil {
		attempts = policy.MaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		emitted, pauseID, err := invoke()
		if err == nil {
			return emitted, pauseID, nil
		}
		lastErr = err
		if policy == nil || policy.Retryable == nil || !policy.Retryable(err) {
			break
		}
		if attempt+1 < attempts {
			time.Sleep(computeBackoff(attempt, policy.BaseDelay, policy.MaxDelay, nil))
		}
	}
	return nil, "", lastErr
}

func (run *Run) shouldAbort(executorID string, err error) bool {
	if run.cfg.supervisor == nil {
		return true
	}
	return run.cfg.supervisor(executorID, err) == SupervisorAbort
}

func (run *Run) emitEvent(ev Event) {
	run.events = append(run.events, ev)
	run.cfg.logger.Log(telemetry.Event{RunID: run.runID, Step: run.superstep, Message: fmt.Sprintf("%T", ev)})
}

// SendResponses resolves outstanding RequestInfoEvents by id, queuing a
// synthetic message targeted at the originating executor so the next
// Execute call routes it through that executor's ResponseHandler.
func (run *Run) SendResponses(ctx context.Context, responses map[string]any) error {
	for id, response := range responses {
		pending, ok := run.requests.Resolve(id)
		if !ok {
			return ErrUnknownRequestID
		}
		run.resolvedPrompts[pending.ExecutorID] = pending.Prompt
		target := pending.ExecutorID
		if err := run.frontier.Enqueue(ctx, workItem{
			Superstep: run.superstep,
			OrderKey:  computeOrderKey(pending.ExecutorID, 0),
			TargetID:  target,
			Message:   Message{Data: response, TargetID: &target},
		}); err != nil {
			return err
		}
	}
	return nil
}

func (run *Run) checkpoint(ctx context.Context, label string) error {
	ck, err := saveCheckpoint(run.runID, run.superstep, run.state, run.frontier.Items(), run.requests.Snapshot(), label)
	if err != nil {
		return err
	}
	if label != "" {
		return run.cfg.store.SaveLabeled(ctx, label, ck)
	}
	return run.cfg.store.SaveCheckpoint(ctx, ck)
}
