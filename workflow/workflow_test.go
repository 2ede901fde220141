package workflow

import (
	"context"
	"errors"
	"testing"
)

type echoExecutor struct {
	id string
}

func (e echoExecutor) ID() string { return e.id }
func (e echoExecutor) Handlers() []Handler {
	return []Handler{NewHandler(func(ctx *Context, data string) error {
		ctx.SendMessage(data+"-echoed", nil)
		return nil
	})}
}

func TestBuilder_RequiresStartExecutor(t *testing.T) {
	_, err := NewBuilder().AddExecutor(echoExecutor{id: "a"}).Build()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError for missing start, got %v", err)
	}
}

func TestBuilder_RejectsUnknownStartExecutor(t *testing.T) {
	_, err := NewBuilder().AddExecutor(echoExecutor{id: "a"}).StartAt("b").Build()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError for unknown start executor, got %v", err)
	}
}

func TestBuilder_RejectsEdgeGroupReferencingUnknownSource(t *testing.T) {
	_, err := NewBuilder().
		AddExecutor(echoExecutor{id: "a"}).
		StartAt("a").
		AddEdgeGroup(SingleEdgeGroup{Edge: Edge{SourceID: "ghost", TargetID: "a"}}).
		Build()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError for unknown edge source, got %v", err)
	}
}

func TestBuilder_RejectsDuplicateResponseHandlers(t *testing.T) {
	dup := dupResponseExecutor{id: "a"}
	_, err := NewBuilder().AddExecutor(dup).StartAt("a").Build()
	if !errors.Is(err, ErrDuplicateResponseHandler) {
		t.Fatalf("expected ErrDuplicateResponseHandler, got %v", err)
	}
}

type dupResponseExecutor struct{ id string }

func (d dupResponseExecutor) ID() string          { return d.id }
func (d dupResponseExecutor) Handlers() []Handler { return nil }
func (d dupResponseExecutor) ResponseHandlers() []ResponseHandler {
	rh := NewResponseHandler(func(ctx *Context, original string, response string) error { return nil })
	return []ResponseHandler{rh, rh}
}

func TestSingleExecutorWorkflow_ProducesOutput(t *testing.T) {
	wf, err := NewBuilder().AddExecutor(echoExecutor{id: "start"}).StartAt("start").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	runner, err := NewRunner(wf)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	run, err := runner.NewRun(context.Background(), "run-1", "hello")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	events, err := run.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var sawOutput bool
	for _, ev := range events {
		if out, ok := ev.(WorkflowOutputEvent); ok {
			sawOutput = true
			_ = out
		}
	}
	if !sawOutput {
		t.Fatalf("expected a WorkflowOutputEvent, got events: %#v", events)
	}
	if output, done := run.Output(); !done {
		t.Errorf("expected run to be done, output=%v", output)
	}
}
