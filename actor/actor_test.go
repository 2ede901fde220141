package actor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/meshrun/meshrun/actor/store"
)

type echoActor struct{}

func (echoActor) Handle(ctx context.Context, actx *Context, req Request) (any, error) {
	actx.OnProgressUpdate(req.MessageID, "starting")
	if err := actx.WriteState(ctx, "last_method", req.Method); err != nil {
		return nil, err
	}
	return fmt.Sprintf("echo:%v", req.Params), nil
}

func newTestRuntime() (*Runtime, *Registry) {
	reg := NewRegistry()
	reg.Register("echo", func(Id) Actor { return echoActor{} })
	rt := NewRuntime(reg, store.NewMemoryStore())
	return rt, reg
}

func TestRuntime_SendRequestRoundTrips(t *testing.T) {
	rt, _ := newTestRuntime()
	id, err := NewId("echo", "thread-1")
	if err != nil {
		t.Fatalf("NewId: %v", err)
	}

	handle, err := rt.SendRequest(context.Background(), id, NewRequest("run", "hi"))
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	resp, err := handle.GetResponse(context.Background())
	if err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	if resp.Status != StatusCompleted {
		t.Fatalf("expected StatusCompleted, got %v (%s)", resp.Status, resp.Err)
	}
	if resp.Data != "echo:hi" {
		t.Errorf("expected 'echo:hi', got %v", resp.Data)
	}
}

func TestRuntime_SameActorProcessesSerially(t *testing.T) {
	rt, reg := newTestRuntime()
	var order []int
	reg.Register("serial", func(Id) Actor {
		return handlerFunc(func(ctx context.Context, actx *Context, req Request) (any, error) {
			n := req.Params.(int)
			order = append(order, n)
			return n, nil
		})
	})
	id, _ := NewId("serial", "only")

	var handles []*ResponseHandle
	for i := 0; i < 5; i++ {
		h, err := rt.SendRequest(context.Background(), id, NewRequest("run", i))
		if err != nil {
			t.Fatalf("SendRequest: %v", err)
		}
		handles = append(handles, h)
	}
	for _, h := range handles {
		if _, err := h.GetResponse(context.Background()); err != nil {
			t.Fatalf("GetResponse: %v", err)
		}
	}
	for i, n := range order {
		if n != i {
			t.Fatalf("expected serialized FIFO order, got %v", order)
		}
	}
}

type handlerFunc func(ctx context.Context, actx *Context, req Request) (any, error)

func (f handlerFunc) Handle(ctx context.Context, actx *Context, req Request) (any, error) {
	return f(ctx, actx, req)
}

func TestRuntime_UnknownTypeIsRejected(t *testing.T) {
	rt, _ := newTestRuntime()
	id, _ := NewId("ghost", "x")
	if _, err := rt.SendRequest(context.Background(), id, NewRequest("run", nil)); err == nil {
		t.Fatal("expected an error for an unregistered actor type")
	}
}

func TestRuntime_StopFailsInFlightRequests(t *testing.T) {
	rt, reg := newTestRuntime()
	block := make(chan struct{})
	reg.Register("blocker", func(Id) Actor {
		return handlerFunc(func(ctx context.Context, actx *Context, req Request) (any, error) {
			<-block
			return nil, nil
		})
	})
	id, _ := NewId("blocker", "x")

	handle, err := rt.SendRequest(context.Background(), id, NewRequest("run", nil))
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	done := make(chan struct{})
	go func() {
		_ = rt.Stop(context.Background(), 50*time.Millisecond)
		close(done)
	}()
	<-done
	close(block)

	resp, err := handle.GetResponse(context.Background())
	if err != nil {
		t.Fatalf("GetResponse: %v", err)
	}
	if resp.Status != StatusFailed {
		t.Fatalf("expected StatusFailed for a request still in flight at Stop, got %v", resp.Status)
	}
}

func TestNewId_RejectsInvalidInstance(t *testing.T) {
	if _, err := NewId("echo", "bad id with spaces"); err == nil {
		t.Fatal("expected an error for an instance id containing spaces")
	}
}

func TestRetentionLRU_EvictsOldestBeyondCap(t *testing.T) {
	lru := newRetentionLRU(2)
	lru.touch("a")
	lru.touch("b")
	lru.touch("c")
	evicted := lru.evictOverflow()
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("expected 'a' evicted, got %v", evicted)
	}
}
