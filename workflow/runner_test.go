package workflow

import (
	"context"
	"testing"

	"github.com/meshrun/meshrun/workflow/store"
)

type forwardExecutor struct{ id string }

func (f forwardExecutor) ID() string { return f.id }
func (f forwardExecutor) Handlers() []Handler {
	return []Handler{NewHandler(func(ctx *Context, data int) error {
		ctx.SendMessage(data, nil)
		return nil
	})}
}

type scaleExecutor struct {
	id     string
	factor int
}

func (s scaleExecutor) ID() string { return s.id }
func (s scaleExecutor) Handlers() []Handler {
	return []Handler{NewHandler(func(ctx *Context, data int) error {
		ctx.SendMessage(data*s.factor, nil)
		return nil
	})}
}

type captureExecutor struct{ id string }

func (c captureExecutor) ID() string { return c.id }
func (c captureExecutor) Handlers() []Handler {
	return []Handler{NewHandler(func(ctx *Context, data int) error {
		ctx.State.Set("result", data)
		return nil
	})}
}

func buildFanInWorkflow(t *testing.T) *Workflow {
	t.Helper()
	wf, err := NewBuilder().
		AddExecutor(forwardExecutor{id: "split"}).
		AddExecutor(scaleExecutor{id: "workerA", factor: 2}).
		AddExecutor(scaleExecutor{id: "workerB", factor: 3}).
		AddExecutor(captureExecutor{id: "merge"}).
		StartAt("split").
		AddEdgeGroup(FanOutEdgeGroup{
			Source: "split",
			Edges: []Edge{
				{SourceID: "split", TargetID: "workerA"},
				{SourceID: "split", TargetID: "workerB"},
			},
		}).
		AddEdgeGroup(FanInEdgeGroup{
			Sources: []string{"workerA", "workerB"},
			Target:  "merge",
			Aggregator: func(bySource map[string]any) any {
				return bySource["workerA"].(int) + bySource["workerB"].(int)
			},
		}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return wf
}

func TestRunner_FanOutThenFanInProducesAggregatedResult(t *testing.T) {
	wf := buildFanInWorkflow(t)
	runner, err := NewRunner(wf)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	run, err := runner.NewRun(context.Background(), "run-fanin", 5)
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	if _, err := run.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	output, done := run.Output()
	if !done {
		t.Fatal("expected run to terminate")
	}
	snapshot, ok := output.(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any output, got %T", output)
	}
	if got := snapshot["result"]; got != 25 {
		t.Errorf("expected result 25 (5*2 + 5*3), got %v", got)
	}
}

type askExecutor struct{ id string }

func (a askExecutor) ID() string { return a.id }
func (a askExecutor) Handlers() []Handler {
	return []Handler{NewHandler(func(ctx *Context, data string) error {
		ctx.RequestInfo(data)
		return nil
	})}
}
func (a askExecutor) ResponseHandlers() []ResponseHandler {
	return []ResponseHandler{NewResponseHandler(func(ctx *Context, original string, response string) error {
		ctx.State.Set("answer", response)
		return nil
	})}
}

func TestRunner_PausesOnRequestInfoAndResumesOnSendResponses(t *testing.T) {
	wf, err := NewBuilder().AddExecutor(askExecutor{id: "asker"}).StartAt("asker").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	runner, err := NewRunner(wf)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	run, err := runner.NewRun(context.Background(), "run-pause", "what is your name?")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	events, err := run.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var requestID string
	for _, ev := range events {
		if ri, ok := ev.(RequestInfoEvent); ok {
			requestID = ri.RequestID
		}
	}
	if requestID == "" {
		t.Fatal("expected a RequestInfoEvent")
	}
	if _, done := run.Output(); done {
		t.Fatal("expected run to still be paused")
	}

	if err := run.SendResponses(context.Background(), map[string]any{requestID: "Ada"}); err != nil {
		t.Fatalf("SendResponses: %v", err)
	}

	if _, err := run.Execute(context.Background()); err != nil {
		t.Fatalf("Execute after resume: %v", err)
	}
	output, done := run.Output()
	if !done {
		t.Fatal("expected run to terminate after resume")
	}
	snapshot := output.(map[string]any)
	if snapshot["answer"] != "Ada" {
		t.Errorf("expected answer 'Ada', got %v", snapshot["answer"])
	}
}

func TestRunner_UnknownRequestIDIsRejected(t *testing.T) {
	wf, _ := NewBuilder().AddExecutor(askExecutor{id: "asker"}).StartAt("asker").Build()
	runner, _ := NewRunner(wf)
	run, _ := runner.NewRun(context.Background(), "run-bad-id", "hi")
	_, _ = run.Execute(context.Background())

	err := run.SendResponses(context.Background(), map[string]any{"not-a-real-id": "x"})
	if err != ErrUnknownRequestID {
		t.Errorf("expected ErrUnknownRequestID, got %v", err)
	}
}

func TestRunner_SavesCheckpointsToConfiguredStore(t *testing.T) {
	wf := buildFanInWorkflow(t)
	mem := store.NewMemoryStore()
	runner, err := NewRunner(wf, WithCheckpointStore(mem), WithCheckpointEvery(1))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	run, err := runner.NewRun(context.Background(), "run-checkpoint", 5)
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	if _, err := run.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	latest, err := mem.LoadLatest(context.Background(), "run-checkpoint")
	if err != nil {
		t.Fatalf("expected a checkpoint to have been saved: %v", err)
	}
	if latest.Superstep == 0 {
		t.Errorf("expected at least one superstep to have been checkpointed")
	}
}

func TestRunner_MaxSupersteppsAborted(t *testing.T) {
	wf, err := NewBuilder().
		AddExecutor(mustLoopExecutor{id: "loop"}).
		StartAt("loop").
		AddEdgeGroup(SingleEdgeGroup{Edge: Edge{SourceID: "loop", TargetID: "loop"}}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	runner, err := NewRunner(wf, WithMaxSupersteps(3))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	run, err := runner.NewRun(context.Background(), "run-loop", 0)
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	_, err = run.Execute(context.Background())
	if err != ErrMaxSuperstepsExceeded {
		t.Fatalf("expected ErrMaxSuperstepsExceeded, got %v", err)
	}
}

type mustLoopExecutor struct{ id string }

func (m mustLoopExecutor) ID() string { return m.id }
func (m mustLoopExecutor) Handlers() []Handler {
	return []Handler{NewHandler(func(ctx *Context, data int) error {
		ctx.SendMessage(data+1, nil)
		return nil
	})}
}
